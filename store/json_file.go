package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JsonFileStore stores each collection as a separate JSON file on disk.
//
// Layout:
//
//	data_dir/
//	  counters.json   # "counters" collection
//	  ideas.json      # "ideas" collection
//
// Each file holds the collection's insert sequence and its documents.
// Writes go to a temp file that is renamed over the original, so readers
// never see a half-written collection.
type JsonFileStore struct {
	mu  sync.RWMutex
	dir string
}

type jsonCollection struct {
	Seq       uint64               `json:"seq"`
	Documents map[string]*Document `json:"documents"`
}

func NewJsonFileStore(dir string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &JsonFileStore{dir: dir}, nil
}

func (s *JsonFileStore) collectionPath(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *JsonFileStore) load(collection string) (*jsonCollection, error) {
	path := s.collectionPath(collection)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &jsonCollection{Documents: map[string]*Document{}}, nil
		}
		return nil, err
	}
	var coll jsonCollection
	if err := json.Unmarshal(data, &coll); err != nil {
		return nil, fmt.Errorf("corrupt collection file %s: %w", path, err)
	}
	if coll.Documents == nil {
		coll.Documents = map[string]*Document{}
	}
	return &coll, nil
}

func (s *JsonFileStore) save(collection string, coll *jsonCollection) error {
	b, err := json.MarshalIndent(coll, "", "  ")
	if err != nil {
		return err
	}
	path := s.collectionPath(collection)
	tmp, err := os.CreateTemp(s.dir, "."+collection+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *JsonFileStore) Get(_ context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	doc, ok := coll.Documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *JsonFileStore) Insert(_ context.Context, collection string, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.load(collection)
	if err != nil {
		return err
	}
	if _, exists := coll.Documents[doc.ID]; exists {
		return ErrConflict
	}
	coll.Seq++
	stored := doc.Clone()
	stored.Seq = coll.Seq
	coll.Documents[doc.ID] = stored
	if err := s.save(collection, coll); err != nil {
		return err
	}
	doc.Seq = stored.Seq
	return nil
}

func (s *JsonFileStore) Update(_ context.Context, collection, id string, fn func(*Document) error) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	cur, ok := coll.Documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := applyUpdate(cur, fn)
	if err != nil {
		return nil, err
	}
	coll.Documents[id] = next
	if err := s.save(collection, coll); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (s *JsonFileStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.load(collection)
	if err != nil {
		return err
	}
	if _, ok := coll.Documents[id]; !ok {
		return ErrNotFound
	}
	delete(coll.Documents, id)
	return s.save(collection, coll)
}

func (s *JsonFileStore) List(_ context.Context, collection string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(coll.Documents))
	for id, doc := range coll.Documents {
		doc.ID = id
		docs = append(docs, doc)
	}
	sortBySeq(docs)
	return docs, nil
}

func (s *JsonFileStore) Close() error { return nil }

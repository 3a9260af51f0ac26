package store

import (
	"context"
	"sync"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	seq  uint64
	docs map[string]*Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
	}
}

// collection returns the named collection, creating it when create is set.
// Callers hold m.mu.
func (m *MemoryStore) collection(name string, create bool) *memCollection {
	coll, ok := m.collections[name]
	if !ok && create {
		coll = &memCollection{docs: make(map[string]*Document)}
		m.collections[name] = coll
	}
	return coll
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collection(collection, false)
	if coll == nil {
		return nil, ErrNotFound
	}
	doc, ok := coll.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *MemoryStore) Insert(_ context.Context, collection string, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection, true)
	if _, exists := coll.docs[doc.ID]; exists {
		return ErrConflict
	}
	coll.seq++
	doc.Seq = coll.seq
	coll.docs[doc.ID] = doc.Clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fn func(*Document) error) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection, false)
	if coll == nil {
		return nil, ErrNotFound
	}
	cur, ok := coll.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := applyUpdate(cur, fn)
	if err != nil {
		return nil, err
	}
	coll.docs[id] = next
	return next.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection, false)
	if coll == nil {
		return ErrNotFound
	}
	if _, exists := coll.docs[id]; !exists {
		return ErrNotFound
	}
	delete(coll.docs, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context, collection string) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collection(collection, false)
	if coll == nil {
		return []*Document{}, nil
	}
	docs := make([]*Document, 0, len(coll.docs))
	for _, doc := range coll.docs {
		docs = append(docs, doc.Clone())
	}
	sortBySeq(docs)
	return docs, nil
}

func (m *MemoryStore) Close() error { return nil }

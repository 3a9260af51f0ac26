package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

// BoltStore keeps each collection in its own bolt bucket, keyed by
// document id. The bucket's sequence counter supplies Document.Seq.
// bolt allows a single writer at a time, so Update is atomic without
// extra locking.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

func (bs *BoltStore) Close() error {
	return bs.db.Close()
}

func (bs *BoltStore) Get(_ context.Context, collection, id string) (*Document, error) {
	var doc *Document
	err := bs.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		var err error
		doc, err = decodeDocument(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (bs *BoltStore) Insert(_ context.Context, collection string, doc *Document) error {
	var seq uint64
	err := bs.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		if b.Get([]byte(doc.ID)) != nil {
			return ErrConflict
		}
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		stored := doc.Clone()
		stored.Seq = seq
		v, err := encodeDocument(stored)
		if err != nil {
			return err
		}
		return b.Put([]byte(doc.ID), v)
	})
	if err != nil {
		return err
	}
	doc.Seq = seq
	return nil
}

func (bs *BoltStore) Update(_ context.Context, collection, id string, fn func(*Document) error) (*Document, error) {
	var next *Document
	err := bs.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		cur, err := decodeDocument(v)
		if err != nil {
			return err
		}
		next, err = applyUpdate(cur, fn)
		if err != nil {
			return err
		}
		nv, err := encodeDocument(next)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), nv)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (bs *BoltStore) Delete(_ context.Context, collection, id string) error {
	return bs.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil || b.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}

func (bs *BoltStore) List(_ context.Context, collection string) ([]*Document, error) {
	docs := []*Document{}
	err := bs.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			doc, err := decodeDocument(v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortBySeq(docs)
	return docs, nil
}

package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger"

	"github.com/stevemurr/simple-record-server/log"
)

// maxTxnRetries bounds how often a conflicting badger transaction is replayed.
const maxTxnRetries = 100

// BadgerStore keeps documents in a badger database. Keys are
//
//	<collection> 0x00 'd' 0x00 <id>   document
//	<collection> 0x00 's'             insert sequence (uint64, big endian)
//
// Writes use badger's optimistic transactions; a commit that loses a race
// with another writer of the same keys is retried from scratch, which
// gives Update compare-and-swap semantics.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger routes badger's internal messages into our logger. Its info
// chatter is demoted to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any)   { log.Errorf("badger: "+format, args...) }
func (badgerLogger) Warningf(format string, args ...any) { log.Warnf("badger: "+format, args...) }
func (badgerLogger) Infof(format string, args ...any)    { log.Debugf("badger: "+format, args...) }
func (badgerLogger) Debugf(format string, args ...any)   { log.Debugf("badger: "+format, args...) }

func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}

func docPrefix(collection string) []byte {
	return []byte(collection + "\x00d\x00")
}

func docKey(collection, id string) []byte {
	return append(docPrefix(collection), id...)
}

func seqKey(collection string) []byte {
	return []byte(collection + "\x00s")
}

// retry replays fn while badger reports a transaction conflict.
func (bs *BadgerStore) retry(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = bs.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getDocument(txn *badger.Txn, key []byte) (*Document, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeDocument(v)
}

func (bs *BadgerStore) Get(_ context.Context, collection, id string) (*Document, error) {
	var doc *Document
	err := bs.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = getDocument(txn, docKey(collection, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func nextSeq(txn *badger.Txn, collection string) (uint64, error) {
	var seq uint64
	item, err := txn.Get(seqKey(collection))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		v, err := item.ValueCopy(nil)
		if err != nil {
			return 0, err
		}
		if len(v) != 8 {
			return 0, fmt.Errorf("corrupt sequence for collection %q", collection)
		}
		seq = binary.BigEndian.Uint64(v)
	}
	seq++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	if err := txn.Set(seqKey(collection), buf[:]); err != nil {
		return 0, err
	}
	return seq, nil
}

func (bs *BadgerStore) Insert(_ context.Context, collection string, doc *Document) error {
	var seq uint64
	err := bs.retry(func(txn *badger.Txn) error {
		key := docKey(collection, doc.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrConflict
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		var err error
		seq, err = nextSeq(txn, collection)
		if err != nil {
			return err
		}
		stored := doc.Clone()
		stored.Seq = seq
		v, err := encodeDocument(stored)
		if err != nil {
			return err
		}
		return txn.Set(key, v)
	})
	if err != nil {
		return err
	}
	doc.Seq = seq
	return nil
}

func (bs *BadgerStore) Update(_ context.Context, collection, id string, fn func(*Document) error) (*Document, error) {
	var next *Document
	err := bs.retry(func(txn *badger.Txn) error {
		key := docKey(collection, id)
		cur, err := getDocument(txn, key)
		if err != nil {
			return err
		}
		next, err = applyUpdate(cur, fn)
		if err != nil {
			return err
		}
		v, err := encodeDocument(next)
		if err != nil {
			return err
		}
		return txn.Set(key, v)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (bs *BadgerStore) Delete(_ context.Context, collection, id string) error {
	return bs.retry(func(txn *badger.Txn) error {
		key := docKey(collection, id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

func (bs *BadgerStore) List(_ context.Context, collection string) ([]*Document, error) {
	docs := []*Document{}
	prefix := docPrefix(collection)
	err := bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			doc, err := decodeDocument(v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortBySeq(docs)
	return docs, nil
}

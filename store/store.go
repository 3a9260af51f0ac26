// Package store defines the backing store interface and implementations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotFound is returned when no document exists for an id.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned by Insert when the id is already taken.
	ErrConflict = errors.New("document already exists")
)

// Document is the unit stored in a collection. Value holds a JSON scalar
// (float64, string or bool once decoded). Seq is assigned by Insert and
// grows with every insert into the same collection.
type Document struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
	Seq   uint64 `json:"seq"`
}

// Clone returns a copy of d. Scalar values need no deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Store is the interface that all backing stores must implement.
// It operates on named collections, where each collection contains
// documents keyed by a string identifier.
type Store interface {
	// Get returns a single document by id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Insert adds a new document and sets doc.Seq. Returns ErrConflict if
	// the id already exists; the stored document is left untouched.
	Insert(ctx context.Context, collection string, doc *Document) error

	// Update applies fn to the stored document and persists the result.
	// The read, fn and the write happen as one atomic step with respect to
	// other writers of the same collection. If fn returns an error nothing
	// is written and that error is returned. Returns ErrNotFound if absent.
	Update(ctx context.Context, collection, id string, fn func(*Document) error) (*Document, error)

	// Delete removes a document. It returns only after the removal has been
	// accepted by the backend. Returns ErrNotFound if absent.
	Delete(ctx context.Context, collection, id string) error

	// List returns every document of a collection in insertion order.
	List(ctx context.Context, collection string) ([]*Document, error)

	// Close releases the backend's resources.
	Close() error
}

func encodeDocument(doc *Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document %q: %w", doc.ID, err)
	}
	return b, nil
}

func decodeDocument(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

func sortBySeq(docs []*Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
}

// applyUpdate runs fn on a copy of cur and rejects attempts to change the
// identity fields.
func applyUpdate(cur *Document, fn func(*Document) error) (*Document, error) {
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.Seq = cur.Seq
	return next, nil
}

// Package record implements the create/read/update/delete/list operations
// on a single collection of records held in a store.Store.
//
// A record is an id with one scalar value: a counter (number) or a free
// text idea (string). Every operation either succeeds or returns an
// *Error whose Code tells the caller how to report it.
package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/stevemurr/simple-record-server/log"
	"github.com/stevemurr/simple-record-server/store"
)

// Record is the public shape of a stored document.
type Record struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

// CreateInput is the payload of a create. A nil Value defaults to 0.
type CreateInput struct {
	ID    string `json:"id" validate:"required,max=256,record_id"`
	Value any    `json:"value"`
}

// Service runs record operations against one collection of a store.
type Service struct {
	store      store.Store
	collection string
}

// NewService returns a Service backed by s. The store stays owned by the
// caller; the service never closes it.
func NewService(s store.Store, collection string) *Service {
	return &Service{store: s, collection: collection}
}

// Collection returns the collection the service operates on.
func (s *Service) Collection() string {
	return s.collection
}

func fromDocument(doc *store.Document) Record {
	return Record{ID: doc.ID, Value: doc.Value}
}

// translate maps store errors onto the record error taxonomy.
func translate(err error, id, op string) error {
	var recErr *Error
	switch {
	case errors.As(err, &recErr):
		return recErr
	case errors.Is(err, store.ErrNotFound):
		return notFoundError(id)
	case errors.Is(err, store.ErrConflict):
		return conflictError(id)
	default:
		return storeError(fmt.Sprintf("unable to %s", op), err)
	}
}

// Create inserts a new record. It fails with CodeConflict if the id is
// taken, leaving the existing record as it was.
func (s *Service) Create(ctx context.Context, in CreateInput) (Record, error) {
	if err := validateStruct(in); err != nil {
		return Record{}, err
	}
	if in.Value == nil {
		in.Value = float64(0)
	}
	if err := checkValue(in.Value); err != nil {
		return Record{}, err
	}
	doc := &store.Document{ID: in.ID, Value: in.Value}
	if err := s.store.Insert(ctx, s.collection, doc); err != nil {
		return Record{}, translate(err, in.ID, "create record")
	}
	log.Debugf("created record %q in %s (seq %d)", doc.ID, s.collection, doc.Seq)
	return fromDocument(doc), nil
}

func (s *Service) Read(ctx context.Context, id string) (Record, error) {
	if err := validateID(id); err != nil {
		return Record{}, err
	}
	doc, err := s.store.Get(ctx, s.collection, id)
	if err != nil {
		return Record{}, translate(err, id, "read record")
	}
	return fromDocument(doc), nil
}

// Update replaces the value of an existing record.
func (s *Service) Update(ctx context.Context, id string, value any) (Record, error) {
	if err := validateID(id); err != nil {
		return Record{}, err
	}
	if err := checkValue(value); err != nil {
		return Record{}, err
	}
	doc, err := s.store.Update(ctx, s.collection, id, func(d *store.Document) error {
		d.Value = value
		return nil
	})
	if err != nil {
		return Record{}, translate(err, id, "update record")
	}
	log.Debugf("updated record %q in %s", id, s.collection)
	return fromDocument(doc), nil
}

// Increment adds one to a counter record. Records holding a non-numeric
// value are rejected with CodeValidation.
func (s *Service) Increment(ctx context.Context, id string) (Record, error) {
	if err := validateID(id); err != nil {
		return Record{}, err
	}
	doc, err := s.store.Update(ctx, s.collection, id, func(d *store.Document) error {
		n, ok := d.Value.(float64)
		if !ok {
			return validationError(fmt.Sprintf("record %q is not a counter", id), nil)
		}
		d.Value = n + 1
		return nil
	})
	if err != nil {
		return Record{}, translate(err, id, "increment record")
	}
	return fromDocument(doc), nil
}

// Delete removes a record. It returns once the store has accepted the
// removal.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.collection, id); err != nil {
		return translate(err, id, "delete record")
	}
	log.Debugf("deleted record %q from %s", id, s.collection)
	return nil
}

// List returns every record, newest first.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	docs, err := s.store.List(ctx, s.collection)
	if err != nil {
		return nil, translate(err, "", "load records")
	}
	records := make([]Record, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		records = append(records, fromDocument(docs[i]))
	}
	return records, nil
}

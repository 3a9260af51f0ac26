package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// SqliteStore stores all collections in a single SQLite database.
//
// Tables:
//
//	documents(collection, id, seq, data)  PRIMARY KEY (collection, id)
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (s *SqliteStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(ctx, s.db, collection, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SqliteStore) get(ctx context.Context, q queryer, collection, id string) (*Document, error) {
	var (
		raw string
		seq uint64
	)
	err := q.QueryRowContext(ctx,
		"SELECT seq, data FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&seq, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument([]byte(raw))
	if err != nil {
		return nil, err
	}
	doc.ID = id
	doc.Seq = seq
	return doc, nil
}

func (s *SqliteStore) Insert(ctx context.Context, collection string, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq uint64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM documents WHERE collection = ?",
		collection,
	).Scan(&seq); err != nil {
		return err
	}
	stored := doc.Clone()
	stored.Seq = seq
	b, err := encodeDocument(stored)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO documents (collection, id, seq, data) VALUES (?, ?, ?, ?)",
		collection, doc.ID, seq, string(b),
	); err != nil {
		if isPrimaryKeyViolation(err) {
			return ErrConflict
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	doc.Seq = seq
	return nil
}

func (s *SqliteStore) Update(ctx context.Context, collection, id string, fn func(*Document) error) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cur, err := s.get(ctx, tx, collection, id)
	if err != nil {
		return nil, err
	}
	next, err := applyUpdate(cur, fn)
	if err != nil {
		return nil, err
	}
	b, err := encodeDocument(next)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET data = ? WHERE collection = ? AND id = ?",
		string(b), collection, id,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *SqliteStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SqliteStore) List(ctx context.Context, collection string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, seq, data FROM documents WHERE collection = ? ORDER BY seq",
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := []*Document{}
	for rows.Next() {
		var (
			id, raw string
			seq     uint64
		)
		if err := rows.Scan(&id, &seq, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeDocument([]byte(raw))
		if err != nil {
			return nil, err
		}
		doc.ID = id
		doc.Seq = seq
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

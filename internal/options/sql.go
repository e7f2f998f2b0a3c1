package options

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"sync"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/lib-x/entsqlite"
)

const optionsTable = "hls_options"

const createOptionsTable = `CREATE TABLE IF NOT EXISTS hls_options (
	name varchar(191) NOT NULL PRIMARY KEY,
	value text NOT NULL
)`

// SQLStore keeps options in a SQLite table of (name, value) rows.
type SQLStore struct {
	db *stdsql.DB
	// serialises read-modify-write cycles
	mu sync.Mutex
}

// OpenSQLStore opens the database at dsn and creates the options table.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := stdsql.Open(dialect.SQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to sqlite: %w", err)
	}
	s, err := NewSQLStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and migrates the options table.
func NewSQLStore(ctx context.Context, db *stdsql.DB) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, createOptionsTable); err != nil {
		return nil, fmt.Errorf("failed creating schema resources: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *stdsql.Row
}

func (s *SQLStore) get(ctx context.Context, q queryer, key string) ([]byte, bool, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("value").
		From(entsql.Table(optionsTable)).
		Where(entsql.EQ("name", key)).
		Query()

	var value string
	err := q.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.get(ctx, s.db, key)
}

func (s *SQLStore) Update(ctx context.Context, key string, fn UpdateFunc) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cur, ok, err := s.get(ctx, tx, key)
	if err != nil {
		return err
	}
	next, err := fn(cur, ok)
	if err != nil {
		return err
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(optionsTable).
		Columns("name", "value").
		Values(key, string(next)).
		OnConflict(
			entsql.ConflictColumns("name"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert option %s: %w", key, err)
	}
	return tx.Commit()
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Delete(optionsTable).
		Where(entsql.EQ("name", key)).
		Query()
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

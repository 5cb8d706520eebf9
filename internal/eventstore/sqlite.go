package eventstore

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore creates a SQLite-backed history.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, wrap(ErrDatabaseOpenFailed, err)
	}
	// SQLite allows one writer; an in-memory database also exists per connection.
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(context.Background(), db, sqliteDialect)
	if err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, err
	}
	return &SQLiteStore{sqlStore: s}, nil
}

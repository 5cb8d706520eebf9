package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/buildwatch/internal/notify"
)

// dialect captures the SQL differences between the supported databases.
type dialect struct {
	name        string
	idColumn    string
	placeholder func(n int) string
}

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		idColumn:    "id INTEGER PRIMARY KEY AUTOINCREMENT",
		placeholder: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:        "postgres",
		idColumn:    "id BIGSERIAL PRIMARY KEY",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS changes (
		` + d.idColumn + `,
		event_id TEXT NOT NULL,
		server TEXT NOT NULL,
		job_key TEXT NOT NULL,
		previous_color TEXT NOT NULL,
		previous_build INTEGER NOT NULL,
		color TEXT NOT NULL,
		build_id INTEGER NOT NULL,
		culprits TEXT NOT NULL,
		recorded_at BIGINT NOT NULL
	)`,
		`CREATE INDEX IF NOT EXISTS idx_changes_server ON changes(server)`,
		`CREATE INDEX IF NOT EXISTS idx_changes_recorded_at ON changes(recorded_at)`,
	}
}

// sqlStore implements Store on database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	mu      sync.RWMutex
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*sqlStore, error) {
	s := &sqlStore{db: db, dialect: d}
	for _, stmt := range d.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, wrap(ErrInitializeSchemaFailed, err)
		}
	}
	return s, nil
}

// Append inserts the changes of event in a single transaction.
func (s *sqlStore) Append(ctx context.Context, event notify.Event) error {
	if len(event.Changes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(ErrAppendFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	p := s.dialect.placeholder
	insert := fmt.Sprintf(`INSERT INTO changes
		(event_id, server, job_key, previous_color, previous_build, color, build_id, culprits, recorded_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9))

	recordedAt := event.Time
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	for _, c := range event.Changes {
		culprits := c.Current.Culprits
		if culprits == nil {
			culprits = []string{}
		}
		culpritsJSON, err := json.Marshal(culprits)
		if err != nil {
			return wrap(ErrAppendFailed, err)
		}
		if _, err := tx.ExecContext(ctx, insert,
			event.ID, event.Server, c.Key(),
			c.Previous.Color, c.Previous.BuildID,
			c.Current.Color, c.Current.BuildID,
			string(culpritsJSON), recordedAt.UnixMilli(),
		); err != nil {
			return wrap(ErrAppendFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrap(ErrAppendFailed, err)
	}
	return nil
}

// Recent returns the newest changes matching q.
func (s *sqlStore) Recent(ctx context.Context, q Query) ([]Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	p := s.dialect.placeholder
	if q.Server != "" {
		args = append(args, q.Server)
		where = append(where, "server = "+p(len(args)))
	}
	if q.KeyPrefix != "" {
		args = append(args, escapeLike(q.KeyPrefix)+"%")
		where = append(where, "job_key LIKE "+p(len(args))+` ESCAPE '\'`)
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since.UnixMilli())
		where = append(where, "recorded_at >= "+p(len(args)))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	args = append(args, limit)

	query := `SELECT id, event_id, server, job_key, previous_color, previous_build, color, build_id, culprits, recorded_at FROM changes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT " + p(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	return scanChanges(rows)
}

func scanChanges(rows *sql.Rows) ([]Change, error) {
	changes := []Change{}
	for rows.Next() {
		var c Change
		var culpritsJSON string
		var recordedAt int64
		if err := rows.Scan(&c.ID, &c.EventID, &c.Server, &c.Key,
			&c.PreviousColor, &c.PreviousBuild, &c.Color, &c.BuildID,
			&culpritsJSON, &recordedAt); err != nil {
			return nil, wrap(ErrQueryFailed, fmt.Errorf("scan change: %w", err))
		}
		if err := json.Unmarshal([]byte(culpritsJSON), &c.Culprits); err != nil {
			return nil, wrap(ErrQueryFailed, fmt.Errorf("unmarshal culprits: %w", err))
		}
		c.RecordedAt = time.UnixMilli(recordedAt).UTC()
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrQueryFailed, fmt.Errorf("iterate rows: %w", err))
	}
	return changes, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

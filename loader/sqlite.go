package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/trilochan-behera-dev/database-query/table"
)

// SQLite is a Source backed by a SQLite database. Each table is read in
// full on first use and then served from memory.
type SQLite struct {
	db      *sql.DB
	catalog table.Catalog

	mu     sync.Mutex
	tables map[string]*table.Table
}

// OpenSQLite opens the database file at path.
func OpenSQLite(ctx context.Context, path string, catalog table.Catalog) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return NewSQLite(db, catalog), nil
}

// NewSQLite wraps an open database handle.
func NewSQLite(db *sql.DB, catalog table.Catalog) *SQLite {
	return &SQLite{db: db, catalog: catalog, tables: make(map[string]*table.Table)}
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Table implements table.Source.
func (s *SQLite) Table(name string) (*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	t, err := s.read(context.Background(), name)
	if err != nil {
		return nil, err
	}
	s.tables[name] = t
	return t, nil
}

func (s *SQLite) read(ctx context.Context, name string) (*table.Table, error) {
	var found string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, table.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite lookup %q: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT * FROM "`+strings.ReplaceAll(name, `"`, `""`)+`"`)
	if err != nil {
		return nil, fmt.Errorf("sqlite read %q: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := table.NewTable(name, columns)
	raw := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite scan %q: %w", name, err)
		}
		vals := make([]table.Value, len(columns))
		for i, x := range raw {
			vals[i] = table.FromInterface(x)
		}
		t.AddRow(vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite read %q: %w", name, err)
	}

	if schema := s.catalog.Lookup(name); schema != nil {
		if err := schema.Apply(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

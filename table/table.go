package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by a Source asked for a table it does not have.
var ErrNotFound = errors.New("table not found")

// Source hands out tables by name. Implementations are read-only.
type Source interface {
	Table(name string) (*Table, error)
}

// Table is the core data structure: a named, ordered sequence of documents.
// Columns lists the schema's field names; it may be empty when the table was
// built without one.
type Table struct {
	Name    string
	Columns []string
	Rows    []*Doc
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns []string) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
		Rows:    nil,
	}
}

// ColIndex returns the index of a column by name, or -1.
func (t *Table) ColIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AddRow appends a row given positionally in column order. Missing trailing
// values become null.
func (t *Table) AddRow(values []Value) {
	d := &Doc{
		keys: make([]string, len(t.Columns)),
		vals: make([]Value, len(t.Columns)),
	}
	copy(d.keys, t.Columns)
	for i := range t.Columns {
		if i < len(values) {
			d.vals[i] = values[i]
		}
	}
	t.Rows = append(t.Rows, d)
}

// Append adds a document as is. Its fields are added to Columns if new.
func (t *Table) Append(d *Doc) {
	for _, k := range d.keys {
		if t.ColIndex(k) < 0 {
			t.Columns = append(t.Columns, k)
		}
	}
	t.Rows = append(t.Rows, d)
}

// String returns a compact representation of the table.
func (t *Table) String() string {
	if len(t.Rows) == 0 {
		return fmt.Sprintf("%s[%s] (0 rows)", t.Name, strings.Join(t.Columns, ", "))
	}

	var sb strings.Builder
	sb.WriteString("[ ")
	for i, r := range t.Rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.String())
	}
	sb.WriteString(" ]")
	return sb.String()
}

// Store is an in-memory Source.
type Store struct {
	tables map[string]*Table
}

// NewStore creates a store holding the given tables.
func NewStore(tables ...*Table) *Store {
	s := &Store{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		s.Add(t)
	}
	return s
}

// Add registers a table under its name, replacing any previous one.
func (s *Store) Add(t *Table) {
	s.tables[t.Name] = t
}

// Table implements Source.
func (s *Store) Table(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return t, nil
}

// Names returns the table names in no particular order.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.tables))
	for n := range s.tables {
		out = append(out, n)
	}
	return out
}

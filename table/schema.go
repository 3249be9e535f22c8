package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the declared type of a schema field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindDate // stored as text in DateLayout or one of DateLayouts
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "string"
	}
}

// DateLayouts are the text layouts accepted for dates, tried in order.
var DateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
}

// ParseDate parses s with the first matching layout in DateLayouts.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Field is a named, typed column.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the field list of one table.
type Schema struct {
	Table  string
	Fields []Field
}

// Columns returns the field names in order.
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Apply coerces every row of t to the schema's kinds in place and makes the
// schema's field list the table's columns. Fields the schema does not know
// are kept untouched and schema fields a row lacks are added as null. Apply
// runs before the table is handed to a Source.
func (s *Schema) Apply(t *Table) error {
	for i, row := range t.Rows {
		for _, f := range s.Fields {
			if !row.Has(f.Name) {
				row.Set(f.Name, Null())
			}
		}
		for j, k := range row.keys {
			f, ok := s.Field(k)
			if !ok {
				continue
			}
			v, err := f.Coerce(row.vals[j])
			if err != nil {
				return fmt.Errorf("%s row %d: %w", s.Table, i+1, err)
			}
			row.vals[j] = v
		}
	}
	cols := s.Columns()
	for _, c := range t.Columns {
		if _, ok := s.Field(c); !ok {
			cols = append(cols, c)
		}
	}
	t.Columns = cols
	return nil
}

// Coerce converts a raw value to the field's kind. Empty strings and the
// literal NULL become null.
func (f Field) Coerce(v Value) (Value, error) {
	switch v.Type {
	case TypeNull:
		return v, nil
	case TypeString:
		return f.coerceString(v.Str)
	case TypeInt:
		switch f.Kind {
		case KindInt:
			return v, nil
		case KindFloat:
			return FloatVal(float64(v.Int)), nil
		case KindBool:
			return BoolVal(v.Int != 0), nil
		case KindString:
			return StrVal(strconv.FormatInt(v.Int, 10)), nil
		}
	case TypeFloat:
		switch f.Kind {
		case KindFloat:
			return v, nil
		case KindInt:
			if v.Float == float64(int64(v.Float)) {
				return IntVal(int64(v.Float)), nil
			}
		case KindString:
			return StrVal(v.AsString()), nil
		}
	case TypeBool:
		switch f.Kind {
		case KindBool:
			return v, nil
		case KindInt:
			if v.Bool {
				return IntVal(1), nil
			}
			return IntVal(0), nil
		case KindString:
			return StrVal(v.AsString()), nil
		}
	}
	return Null(), fmt.Errorf("field %q: cannot convert %s %s to %s", f.Name, v.Type, v.AsString(), f.Kind)
}

func (f Field) coerceString(raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "NULL" {
		return Null(), nil
	}
	switch f.Kind {
	case KindInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntVal(n), nil
		}
	case KindFloat:
		if x, err := strconv.ParseFloat(s, 64); err == nil {
			return FloatVal(x), nil
		}
	case KindBool:
		switch strings.ToLower(s) {
		case "1", "true", "t", "yes", "y":
			return BoolVal(true), nil
		case "0", "false", "f", "no", "n":
			return BoolVal(false), nil
		}
	case KindDate:
		if _, ok := ParseDate(s); ok {
			return StrVal(s), nil
		}
	default:
		return StrVal(raw), nil
	}
	return Null(), fmt.Errorf("field %q: cannot parse %q as %s", f.Name, raw, f.Kind)
}

// Catalog maps table names to schemas.
type Catalog map[string]*Schema

// Lookup returns the schema for a table, or nil.
func (c Catalog) Lookup(name string) *Schema {
	if c == nil {
		return nil
	}
	return c[name]
}

package table

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Doc is a single record: an ordered list of named fields. Field order is
// kept so that projected output has a stable shape.
//
// A Doc handed to a pipeline stage is never modified; stages derive new
// documents with With, WithPath and Without.
type Doc struct {
	keys []string
	vals []Value
}

// NewDoc creates an empty document.
func NewDoc() *Doc {
	return &Doc{}
}

// DocOf builds a document from alternating name/value pairs. Values are
// converted with FromInterface.
func DocOf(pairs ...any) *Doc {
	d := &Doc{
		keys: make([]string, 0, len(pairs)/2),
		vals: make([]Value, 0, len(pairs)/2),
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		d.Set(name, FromInterface(pairs[i+1]))
	}
	return d
}

// DocFromMap builds a document from a decoded map. Keys are sorted since
// map order is not meaningful.
func DocFromMap(m map[string]any) *Doc {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := &Doc{keys: keys, vals: make([]Value, len(keys))}
	for i, k := range keys {
		d.vals[i] = FromInterface(m[k])
	}
	return d
}

// Len returns the number of fields.
func (d *Doc) Len() int {
	return len(d.keys)
}

// Keys returns the field names in order.
func (d *Doc) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

func (d *Doc) index(name string) int {
	for i, k := range d.keys {
		if k == name {
			return i
		}
	}
	return -1
}

// Get returns a top-level field.
func (d *Doc) Get(name string) (Value, bool) {
	if i := d.index(name); i >= 0 {
		return d.vals[i], true
	}
	return Null(), false
}

// Has reports whether the document carries a top-level field.
func (d *Doc) Has(name string) bool {
	return d.index(name) >= 0
}

// Set adds or replaces a field in place. Only use it while building a
// document that no stage has seen yet.
func (d *Doc) Set(name string, v Value) {
	if i := d.index(name); i >= 0 {
		d.vals[i] = v
		return
	}
	d.keys = append(d.keys, name)
	d.vals = append(d.vals, v)
}

// Clone returns a shallow copy: nested values are shared.
func (d *Doc) Clone() *Doc {
	c := &Doc{
		keys: make([]string, len(d.keys), len(d.keys)+1),
		vals: make([]Value, len(d.vals), len(d.vals)+1),
	}
	copy(c.keys, d.keys)
	copy(c.vals, d.vals)
	return c
}

// With returns a copy of d with name set to v.
func (d *Doc) With(name string, v Value) *Doc {
	c := d.Clone()
	c.Set(name, v)
	return c
}

// WithPath returns a copy of d with the dotted path set to v. Embedded
// documents along the path are copied, never modified.
func (d *Doc) WithPath(path string, v Value) *Doc {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return d.With(head, v)
	}
	child := NewDoc()
	if cur, ok := d.Get(head); ok && cur.Type == TypeDoc {
		child = cur.Doc
	}
	return d.With(head, DocVal(child.WithPath(rest, v)))
}

// Without returns a copy of d without the named top-level fields.
func (d *Doc) Without(names ...string) *Doc {
	c := &Doc{}
	for i, k := range d.keys {
		drop := false
		for _, n := range names {
			if n == k {
				drop = true
				break
			}
		}
		if !drop {
			c.keys = append(c.keys, k)
			c.vals = append(c.vals, d.vals[i])
		}
	}
	return c
}

// Path resolves a dotted field path. Walking through an array of documents
// yields an array of the values found in its elements. The boolean is false
// when the path does not exist.
func (d *Doc) Path(path string) (Value, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := d.Get(head)
	if !ok {
		return Null(), false
	}
	if !nested {
		return v, true
	}
	return resolve(v, rest)
}

func resolve(v Value, path string) (Value, bool) {
	switch v.Type {
	case TypeDoc:
		return v.Doc.Path(path)
	case TypeArray:
		out := make([]Value, 0, len(v.Arr))
		for _, e := range v.Arr {
			if r, ok := resolve(e, path); ok {
				out = append(out, r)
			}
		}
		return ArrayVal(out), true
	default:
		return Null(), false
	}
}

// Each calls fn for every field in order.
func (d *Doc) Each(fn func(name string, v Value)) {
	for i, k := range d.keys {
		fn(k, d.vals[i])
	}
}

// String returns a compact representation of the document.
func (d *Doc) String() string {
	if d == nil {
		return "null"
	}
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range d.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(":")
		v := d.vals[i]
		if v.Type == TypeString {
			sb.WriteString(`"` + v.Str + `"`)
		} else {
			sb.WriteString(v.AsString())
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// MarshalJSON encodes the document with its fields in order.
func (d *Doc) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(d.vals[i].Interface())
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

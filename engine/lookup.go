package engine

import (
	"sort"
	"strings"

	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/table"
)

// execLookup is a left outer equality join. The foreign table is indexed
// once, then each document collects its matches, in foreign-table order,
// into the array field As.
func (e *Engine) execLookup(o *ast.LookupOp, docs []*table.Doc) ([]*table.Doc, error) {
	foreign, err := e.src.Table(o.From)
	if err != nil {
		return nil, &ReferenceError{Kind: "table", Name: o.From, Err: err}
	}
	root, _, _ := strings.Cut(o.ForeignField, ".")
	if len(foreign.Columns) > 0 && foreign.ColIndex(root) < 0 {
		return nil, &ReferenceError{Kind: "field", Name: o.From + "." + o.ForeignField}
	}
	if err := checkFields(docs, o.LocalField); err != nil {
		return nil, err
	}

	index := make(map[string][]int)
	for i, row := range foreign.Rows {
		v, _ := row.Path(o.ForeignField)
		for _, k := range joinKeys(v) {
			index[k] = append(index[k], i)
		}
	}

	out := make([]*table.Doc, len(docs))
	for i, d := range docs {
		v, _ := d.Path(o.LocalField)
		keys := joinKeys(v)
		rows := index[keys[0]]
		if len(keys) > 1 {
			rows = unionRows(index, keys)
		}
		matches := make([]table.Value, len(rows))
		for j, r := range rows {
			matches[j] = table.DocVal(foreign.Rows[r])
		}
		out[i] = d.WithPath(o.As, table.ArrayVal(matches))
	}
	return out, nil
}

// joinKeys lists the distinct hash keys a join value matches on: an array
// matches on each of its elements, a missing field matches like null.
func joinKeys(v table.Value) []string {
	if v.Type != table.TypeArray {
		return []string{keyString(v)}
	}
	if len(v.Arr) == 0 {
		return []string{keyString(table.Null())}
	}
	seen := make(map[string]bool, len(v.Arr))
	keys := make([]string, 0, len(v.Arr))
	for _, e := range v.Arr {
		k := keyString(e)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// unionRows merges the matches of several keys into table order.
func unionRows(index map[string][]int, keys []string) []int {
	seen := make(map[int]bool)
	var rows []int
	for _, k := range keys {
		for _, r := range index[k] {
			if !seen[r] {
				seen[r] = true
				rows = append(rows, r)
			}
		}
	}
	sort.Ints(rows)
	return rows
}

package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/table"
)

// execGroup partitions documents by key and reduces each partition. Output
// is ordered by _id ascending, so among equal aggregates a later stable
// sort keeps the smallest key first.
func execGroup(o *ast.GroupOp, docs []*table.Doc) ([]*table.Doc, error) {
	refs := fieldRefs(o.Key, nil)
	for _, a := range o.Accumulators {
		if a.Expr != nil {
			refs = fieldRefs(a.Expr, refs)
		}
	}
	if err := checkFields(docs, refs...); err != nil {
		return nil, err
	}

	type groupEntry struct {
		key  table.Value
		accs []accumulator
	}
	var groups []*groupEntry
	keyMap := make(map[string]*groupEntry)

	for _, d := range docs {
		key, err := Eval(o.Key, d)
		if err != nil {
			return nil, fmt.Errorf("_id: %w", err)
		}
		ks := keyString(key)
		g, exists := keyMap[ks]
		if !exists {
			g = &groupEntry{key: key, accs: make([]accumulator, len(o.Accumulators))}
			for i, a := range o.Accumulators {
				g.accs[i] = newAccumulator(a.Func)
			}
			groups = append(groups, g)
			keyMap[ks] = g
		}

		for i, a := range o.Accumulators {
			v := table.Null()
			if a.Expr != nil {
				if v, err = Eval(a.Expr, d); err != nil {
					return nil, fmt.Errorf("%s: %w", a.Field, err)
				}
			}
			if err := g.accs[i].add(v); err != nil {
				return nil, fmt.Errorf("%s: %w", a.Field, err)
			}
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return Compare(groups[i].key, groups[j].key) < 0
	})

	out := make([]*table.Doc, len(groups))
	for gi, g := range groups {
		d := table.NewDoc()
		d.Set("_id", g.key)
		for i, a := range o.Accumulators {
			d.Set(a.Field, g.accs[i].result())
		}
		out[gi] = d
	}
	return out, nil
}

// accumulator folds the values of one group.
type accumulator interface {
	add(v table.Value) error
	result() table.Value
}

func newAccumulator(fn string) accumulator {
	switch fn {
	case "$sum":
		return &sumAcc{op: fn}
	case "$avg":
		return &avgAcc{sum: sumAcc{op: fn}}
	case "$count":
		return &countAcc{}
	case "$first":
		return &firstAcc{}
	case "$last":
		return &lastAcc{}
	case "$min":
		return &extremeAcc{sign: -1}
	case "$max":
		return &extremeAcc{sign: 1}
	case "$push":
		return &pushAcc{}
	default:
		panic(fmt.Sprintf("unknown accumulator %q", fn))
	}
}

// sumAcc stays in int64 while every input is an integer and switches to
// decimal on the first float or when the integer total overflows.
type sumAcc struct {
	op      string
	isFloat bool
	i       int64
	d       decimal.Decimal
	n       int

	// NaN and infinite inputs dominate the total.
	hasSpecial bool
	special    float64
}

func (s *sumAcc) add(v table.Value) error {
	switch v.Type {
	case table.TypeNull:
	case table.TypeArray:
		for _, e := range v.Arr {
			if e.Type == table.TypeArray {
				return mismatch(s.op, e)
			}
			if err := s.add(e); err != nil {
				return err
			}
		}
	case table.TypeInt:
		if !s.isFloat {
			if r, ok := addInt64(s.i, v.Int); ok {
				s.i = r
				s.n++
				return nil
			}
			s.isFloat = true
			s.d = decimal.NewFromInt(s.i)
		}
		s.d = s.d.Add(decimal.NewFromInt(v.Int))
		s.n++
	case table.TypeFloat:
		if !finite(v) {
			s.special += v.Float
			s.hasSpecial = true
			s.n++
			return nil
		}
		if !s.isFloat {
			s.isFloat = true
			s.d = decimal.NewFromInt(s.i)
		}
		s.d = s.d.Add(decimal.NewFromFloat(v.Float))
		s.n++
	default:
		return mismatch(s.op, v)
	}
	return nil
}

func (s *sumAcc) result() table.Value {
	if s.hasSpecial {
		return table.FloatVal(s.special)
	}
	if s.isFloat {
		return table.FloatVal(s.d.InexactFloat64())
	}
	return table.IntVal(s.i)
}

type avgAcc struct {
	sum sumAcc
}

func (a *avgAcc) add(v table.Value) error { return a.sum.add(v) }

func (a *avgAcc) result() table.Value {
	if a.sum.n == 0 {
		return table.Null()
	}
	if a.sum.hasSpecial {
		return table.FloatVal(a.sum.special)
	}
	total := decimal.NewFromInt(a.sum.i)
	if a.sum.isFloat {
		total = a.sum.d
	}
	return table.FloatVal(quotient(total, decimal.NewFromInt(int64(a.sum.n))).InexactFloat64())
}

type countAcc struct{ n int64 }

func (c *countAcc) add(table.Value) error { c.n++; return nil }
func (c *countAcc) result() table.Value   { return table.IntVal(c.n) }

type firstAcc struct {
	set bool
	v   table.Value
}

func (f *firstAcc) add(v table.Value) error {
	if !f.set {
		f.v, f.set = v, true
	}
	return nil
}

func (f *firstAcc) result() table.Value { return f.v }

type lastAcc struct{ v table.Value }

func (l *lastAcc) add(v table.Value) error { l.v = v; return nil }
func (l *lastAcc) result() table.Value     { return l.v }

// extremeAcc implements $min (sign -1) and $max (sign 1), ignoring nulls.
type extremeAcc struct {
	sign int
	set  bool
	v    table.Value
}

func (m *extremeAcc) add(v table.Value) error {
	if v.IsNull() {
		return nil
	}
	if !m.set || Compare(v, m.v)*m.sign > 0 {
		m.v, m.set = v, true
	}
	return nil
}

func (m *extremeAcc) result() table.Value { return m.v }

type pushAcc struct{ vals []table.Value }

func (p *pushAcc) add(v table.Value) error { p.vals = append(p.vals, v); return nil }
func (p *pushAcc) result() table.Value     { return table.ArrayVal(p.vals) }

package engine

import (
	"fmt"

	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/table"
)

func execMatch(o *ast.MatchOp, docs []*table.Doc) ([]*table.Doc, error) {
	var out []*table.Doc
	for _, d := range docs {
		ok, err := matchAll(o.Conds, d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func matchAll(conds []ast.Condition, d *table.Doc) (bool, error) {
	for _, c := range conds {
		ok, err := matchCond(c, d)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchCond(c ast.Condition, d *table.Doc) (bool, error) {
	switch c := c.(type) {
	case *ast.FieldCond:
		return matchField(c, d)
	case *ast.LogicalCond:
		for _, child := range c.Children {
			ok, err := matchAll(child, d)
			if err != nil {
				return false, err
			}
			switch {
			case c.Op == "$and" && !ok:
				return false, nil
			case c.Op == "$or" && ok:
				return true, nil
			case c.Op == "$nor" && ok:
				return false, nil
			}
		}
		return c.Op != "$or", nil
	default:
		return false, fmt.Errorf("unknown condition type %T", c)
	}
}

func matchField(c *ast.FieldCond, d *table.Doc) (bool, error) {
	v, found := d.Path(c.Path)

	switch c.Op {
	case "$exists":
		want, _ := Eval(c.Operand, d)
		return found == want.Bool, nil
	case "$regex":
		return anyValue(v, func(x table.Value) (bool, error) {
			switch x.Type {
			case table.TypeNull:
				return false, nil
			case table.TypeString:
				return c.Pattern.MatchString(x.Str), nil
			}
			return false, mismatch("$regex", x)
		})
	}

	operand, err := Eval(c.Operand, d)
	if err != nil {
		return false, err
	}

	switch c.Op {
	case "$eq":
		return equalMatch(v, operand), nil
	case "$ne":
		return !equalMatch(v, operand), nil
	case "$in", "$nin":
		if operand.Type != table.TypeArray {
			return false, mismatch(c.Op, operand)
		}
		in := false
		for _, e := range operand.Arr {
			if equalMatch(v, e) {
				in = true
				break
			}
		}
		return in == (c.Op == "$in"), nil
	case "$gt", "$gte", "$lt", "$lte":
		if operand.IsNull() {
			return false, nil
		}
		return anyValue(v, func(x table.Value) (bool, error) {
			if x.IsNull() {
				return false, nil
			}
			if !orderable(x, operand) {
				return false, mismatch(c.Op, x)
			}
			cmp := Compare(x, operand)
			switch c.Op {
			case "$gt":
				return cmp > 0, nil
			case "$gte":
				return cmp >= 0, nil
			case "$lt":
				return cmp < 0, nil
			default:
				return cmp <= 0, nil
			}
		})
	default:
		return false, fmt.Errorf("unknown operator %q", c.Op)
	}
}

// equalMatch is equality where an array field also matches when one of its
// elements is equal. A missing field equals null.
func equalMatch(v, operand table.Value) bool {
	if Compare(v, operand) == 0 {
		return true
	}
	if v.Type == table.TypeArray {
		for _, e := range v.Arr {
			if Compare(e, operand) == 0 {
				return true
			}
		}
	}
	return false
}

// anyValue applies fn to a scalar, or to each element of an array.
func anyValue(v table.Value, fn func(table.Value) (bool, error)) (bool, error) {
	if v.Type != table.TypeArray {
		return fn(v)
	}
	for _, e := range v.Arr {
		ok, err := fn(e)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

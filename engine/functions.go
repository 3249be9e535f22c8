package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/table"
)

// evalFunc dispatches operator calls to the appropriate implementation.
func evalFunc(e *ast.FuncCallExpr, doc *table.Doc) (table.Value, error) {
	args, err := evalArgs(e.Args, doc)
	if err != nil {
		return table.Null(), err
	}
	switch e.Name {
	// Arithmetic
	case "$multiply", "$add":
		return foldArith(e.Name, args)
	case "$subtract", "$divide":
		return arith(e.Name, args[0], args[1])
	case "$sum":
		return callSum(args)

	// Arrays
	case "$size":
		return callSize(args[0])
	case "$arrayElemAt":
		return callArrayElemAt(args[0], args[1])

	// Dates
	case "$year", "$month", "$dayOfMonth":
		return callDatePart(e.Name, args[0])

	// Strings and nulls
	case "$concat":
		return callConcat(args)
	case "$ifNull":
		for _, v := range args[:len(args)-1] {
			if !v.IsNull() {
				return v, nil
			}
		}
		return args[len(args)-1], nil

	default:
		return table.Null(), fmt.Errorf("unknown operator %q", e.Name)
	}
}

func foldArith(op string, args []table.Value) (table.Value, error) {
	acc := args[0]
	for _, v := range args[1:] {
		var err error
		if acc, err = arith(op, acc, v); err != nil {
			return table.Null(), err
		}
	}
	if len(args) == 1 && !acc.IsNull() && !acc.IsNumber() && acc.Type != table.TypeArray {
		return table.Null(), mismatch(op, acc)
	}
	return acc, nil
}

// arith applies a binary arithmetic operator. Null propagates, two arrays
// of equal length combine element-wise and an array with a scalar is
// broadcast.
func arith(op string, a, b table.Value) (table.Value, error) {
	if a.IsNull() || b.IsNull() {
		return table.Null(), nil
	}
	switch {
	case a.Type == table.TypeArray && b.Type == table.TypeArray:
		if len(a.Arr) != len(b.Arr) {
			return table.Null(), fmt.Errorf("%s: array lengths differ (%d and %d)", op, len(a.Arr), len(b.Arr))
		}
		out := make([]table.Value, len(a.Arr))
		for i := range a.Arr {
			v, err := arith(op, a.Arr[i], b.Arr[i])
			if err != nil {
				return table.Null(), err
			}
			out[i] = v
		}
		return table.ArrayVal(out), nil
	case a.Type == table.TypeArray:
		return broadcast(a, func(e table.Value) (table.Value, error) { return arith(op, e, b) })
	case b.Type == table.TypeArray:
		return broadcast(b, func(e table.Value) (table.Value, error) { return arith(op, a, e) })
	}
	if !a.IsNumber() {
		return table.Null(), mismatch(op, a)
	}
	if !b.IsNumber() {
		return table.Null(), mismatch(op, b)
	}

	if a.Type == table.TypeInt && b.Type == table.TypeInt {
		var r int64
		var ok bool
		switch op {
		case "$add":
			r, ok = addInt64(a.Int, b.Int)
		case "$subtract":
			r, ok = subInt64(a.Int, b.Int)
		case "$multiply":
			r, ok = mulInt64(a.Int, b.Int)
		}
		if ok {
			return table.IntVal(r), nil
		}
		// $divide and overflowing results continue in decimal
	}

	if !finite(a) || !finite(b) {
		return floatArith(op, a, b)
	}

	x, y := toDecimal(a), toDecimal(b)
	var r decimal.Decimal
	switch op {
	case "$add":
		r = x.Add(y)
	case "$subtract":
		r = x.Sub(y)
	case "$multiply":
		r = x.Mul(y)
	case "$divide":
		if y.IsZero() {
			return table.Null(), nil // division by zero returns null
		}
		r = quotient(x, y)
	default:
		return table.Null(), fmt.Errorf("unknown arithmetic operator %q", op)
	}
	return table.FloatVal(r.InexactFloat64()), nil
}

func broadcast(arr table.Value, fn func(table.Value) (table.Value, error)) (table.Value, error) {
	out := make([]table.Value, len(arr.Arr))
	for i, e := range arr.Arr {
		v, err := fn(e)
		if err != nil {
			return table.Null(), err
		}
		out[i] = v
	}
	return table.ArrayVal(out), nil
}

// quotient divides keeping about 20 significant digits, however small the
// result. decimal.Div alone rounds to a fixed number of decimal places.
func quotient(x, y decimal.Decimal) decimal.Decimal {
	mag := int32(x.NumDigits()-y.NumDigits()) + x.Exponent() - y.Exponent()
	places := 20 - mag
	if floor := int32(decimal.DivisionPrecision); places < floor {
		places = floor
	}
	return x.DivRound(y, places)
}

func addInt64(a, b int64) (int64, bool) {
	r := a + b
	return r, (b >= 0) == (r >= a)
}

func subInt64(a, b int64) (int64, bool) {
	r := a - b
	return r, (b >= 0) == (r <= a)
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return r, false
	}
	return r, r/b == a
}

func finite(v table.Value) bool {
	return v.Type != table.TypeFloat || !(math.IsNaN(v.Float) || math.IsInf(v.Float, 0))
}

// floatArith handles NaN and infinite operands, which decimal cannot hold.
func floatArith(op string, a, b table.Value) (table.Value, error) {
	x, _ := a.AsFloat()
	y, _ := b.AsFloat()
	switch op {
	case "$add":
		return table.FloatVal(x + y), nil
	case "$subtract":
		return table.FloatVal(x - y), nil
	case "$multiply":
		return table.FloatVal(x * y), nil
	case "$divide":
		if y == 0 {
			return table.Null(), nil
		}
		return table.FloatVal(x / y), nil
	}
	return table.Null(), fmt.Errorf("unknown arithmetic operator %q", op)
}

func toDecimal(v table.Value) decimal.Decimal {
	if v.Type == table.TypeInt {
		return decimal.NewFromInt(v.Int)
	}
	return decimal.NewFromFloat(v.Float)
}

// callSum adds up one array argument or several scalar arguments.
func callSum(args []table.Value) (table.Value, error) {
	s := &sumAcc{op: "$sum"}
	for _, v := range args {
		if err := s.add(v); err != nil {
			return table.Null(), err
		}
	}
	return s.result(), nil
}

func callSize(v table.Value) (table.Value, error) {
	switch v.Type {
	case table.TypeNull:
		return table.Null(), nil
	case table.TypeArray:
		return table.IntVal(int64(len(v.Arr))), nil
	}
	return table.Null(), mismatch("$size", v)
}

func callArrayElemAt(arr, idx table.Value) (table.Value, error) {
	if arr.IsNull() || idx.IsNull() {
		return table.Null(), nil
	}
	if arr.Type != table.TypeArray {
		return table.Null(), mismatch("$arrayElemAt", arr)
	}
	var i int64
	switch {
	case idx.Type == table.TypeInt:
		i = idx.Int
	case idx.Type == table.TypeFloat && idx.Float == float64(int64(idx.Float)):
		i = int64(idx.Float)
	default:
		return table.Null(), mismatch("$arrayElemAt", idx)
	}
	if i < 0 {
		i += int64(len(arr.Arr))
	}
	if i < 0 || i >= int64(len(arr.Arr)) {
		return table.Null(), nil
	}
	return arr.Arr[i], nil
}

// callDatePart extracts a part of a date stored as text.
func callDatePart(op string, v table.Value) (table.Value, error) {
	if v.IsNull() {
		return table.Null(), nil
	}
	if v.Type != table.TypeString {
		return table.Null(), mismatch(op, v)
	}
	t, ok := table.ParseDate(v.Str)
	if !ok {
		return table.Null(), mismatch(op, v)
	}
	switch op {
	case "$year":
		return table.IntVal(int64(t.Year())), nil
	case "$month":
		return table.IntVal(int64(t.Month())), nil
	default:
		return table.IntVal(int64(t.Day())), nil
	}
}

func callConcat(args []table.Value) (table.Value, error) {
	var sb strings.Builder
	for _, v := range args {
		switch v.Type {
		case table.TypeNull:
			return table.Null(), nil
		case table.TypeString:
			sb.WriteString(v.Str)
		default:
			return table.Null(), mismatch("$concat", v)
		}
	}
	return table.StrVal(sb.String()), nil
}

package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/trilochan-behera-dev/database-query/table"
)

// typeRank orders values of different types:
// null < numbers < strings < documents < arrays < booleans.
func typeRank(v table.Value) int {
	switch v.Type {
	case table.TypeNull:
		return 0
	case table.TypeInt, table.TypeFloat:
		return 1
	case table.TypeString:
		return 2
	case table.TypeDoc:
		return 3
	case table.TypeArray:
		return 4
	case table.TypeBool:
		return 5
	}
	return 6
}

// Compare is the total order used by $sort, $group output and $min/$max.
// Numbers compare numerically across int and float.
func Compare(a, b table.Value) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch a.Type {
	case table.TypeNull:
		return 0
	case table.TypeInt, table.TypeFloat:
		return compareNumbers(a, b)
	case table.TypeString:
		return strings.Compare(a.Str, b.Str)
	case table.TypeBool:
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		default:
			return 1
		}
	case table.TypeArray:
		for i := 0; i < len(a.Arr) && i < len(b.Arr); i++ {
			if c := Compare(a.Arr[i], b.Arr[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(a.Arr), len(b.Arr))
	case table.TypeDoc:
		ak, bk := a.Doc.Keys(), b.Doc.Keys()
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := strings.Compare(ak[i], bk[i]); c != 0 {
				return c
			}
			av, _ := a.Doc.Get(ak[i])
			bv, _ := b.Doc.Get(bk[i])
			if c := Compare(av, bv); c != 0 {
				return c
			}
		}
		return cmpInt(a.Doc.Len(), b.Doc.Len())
	}
	return 0
}

func compareNumbers(a, b table.Value) int {
	if a.Type == table.TypeInt && b.Type == table.TypeInt {
		return cmpInt64(a.Int, b.Int)
	}
	af, _ := a.AsFloat()
	bf, _ := b.AsFloat()
	// NaN sorts below every other number.
	if an, bn := math.IsNaN(af), math.IsNaN(bf); an || bn {
		switch {
		case an && bn:
			return 0
		case an:
			return -1
		}
		return 1
	}
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	return cmpInt64(int64(a), int64(b))
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// orderable reports whether two non-null values can be compared with
// $gt/$gte/$lt/$lte.
func orderable(a, b table.Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return true
	}
	return a.Type == b.Type && a.Type != table.TypeNull
}

// keyString renders a value as a hash key. Values that Compare equal get the
// same key, so 1 and 1.0 land in the same group.
func keyString(v table.Value) string {
	var sb strings.Builder
	writeKey(&sb, v)
	return sb.String()
}

func writeKey(sb *strings.Builder, v table.Value) {
	switch v.Type {
	case table.TypeNull:
		sb.WriteString("z")
	case table.TypeInt:
		sb.WriteString("n")
		sb.WriteString(strconv.FormatInt(v.Int, 10))
	case table.TypeFloat:
		sb.WriteString("n")
		if math.IsNaN(v.Float) {
			sb.WriteString("NaN")
		} else if v.Float == math.Trunc(v.Float) && math.Abs(v.Float) < 1<<63 {
			sb.WriteString(strconv.FormatInt(int64(v.Float), 10))
		} else {
			sb.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
		}
	case table.TypeString:
		sb.WriteString("s")
		sb.WriteString(strconv.Quote(v.Str))
	case table.TypeBool:
		if v.Bool {
			sb.WriteString("t")
		} else {
			sb.WriteString("f")
		}
	case table.TypeArray:
		sb.WriteString("[")
		for i, e := range v.Arr {
			if i > 0 {
				sb.WriteString(",")
			}
			writeKey(sb, e)
		}
		sb.WriteString("]")
	case table.TypeDoc:
		sb.WriteString("{")
		i := 0
		v.Doc.Each(func(name string, fv table.Value) {
			if i > 0 {
				sb.WriteString(",")
			}
			i++
			sb.WriteString(strconv.Quote(name))
			sb.WriteString(":")
			writeKey(sb, fv)
		})
		sb.WriteString("}")
	}
}

package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueType represents the type of a Value.
type ValueType int

const (
	TypeNull ValueType = iota
	TypeInt
	TypeFloat
	TypeString
	TypeBool
	TypeArray // joined or pushed sequences
	TypeDoc   // embedded document
)

var typeNames = map[ValueType]string{
	TypeNull:   "null",
	TypeInt:    "int",
	TypeFloat:  "float",
	TypeString: "string",
	TypeBool:   "bool",
	TypeArray:  "array",
	TypeDoc:    "document",
}

func (t ValueType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// DateLayout is the text layout dates are stored in.
const DateLayout = "2006-01-02 15:04:05.000"

// Value is a dynamically-typed field value in a document.
type Value struct {
	Type  ValueType
	Int   int64
	Float float64
	Str   string
	Bool  bool
	Arr   []Value
	Doc   *Doc
}

// Null returns a null value.
func Null() Value {
	return Value{Type: TypeNull}
}

// IntVal creates an integer value.
func IntVal(v int64) Value {
	return Value{Type: TypeInt, Int: v}
}

// FloatVal creates a float value.
func FloatVal(v float64) Value {
	return Value{Type: TypeFloat, Float: v}
}

// StrVal creates a string value.
func StrVal(v string) Value {
	return Value{Type: TypeString, Str: v}
}

// BoolVal creates a boolean value.
func BoolVal(v bool) Value {
	return Value{Type: TypeBool, Bool: v}
}

// ArrayVal creates an array value. The slice is not copied.
func ArrayVal(vs []Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{Type: TypeArray, Arr: vs}
}

// DocVal creates an embedded document value.
func DocVal(d *Doc) Value {
	if d == nil {
		return Null()
	}
	return Value{Type: TypeDoc, Doc: d}
}

// TimeVal renders a timestamp in DateLayout.
func TimeVal(t time.Time) Value {
	return StrVal(t.UTC().Format(DateLayout))
}

// IsNull returns true if the value is null.
func (v Value) IsNull() bool {
	return v.Type == TypeNull
}

// IsNumber reports whether the value is an int or a float.
func (v Value) IsNumber() bool {
	return v.Type == TypeInt || v.Type == TypeFloat
}

// AsFloat attempts to coerce to float64 for arithmetic.
func (v Value) AsFloat() (float64, bool) {
	switch v.Type {
	case TypeInt:
		return float64(v.Int), true
	case TypeFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// AsString returns the string representation.
func (v Value) AsString() string {
	switch v.Type {
	case TypeNull:
		return "null"
	case TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TypeString:
		return v.Str
	case TypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case TypeArray:
		parts := make([]string, len(v.Arr))
		for i, e := range v.Arr {
			parts[i] = e.AsString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeDoc:
		return v.Doc.String()
	default:
		return "?"
	}
}

// Interface converts the value to plain Go values, the form encoders expect.
func (v Value) Interface() any {
	switch v.Type {
	case TypeInt:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeString:
		return v.Str
	case TypeBool:
		return v.Bool
	case TypeArray:
		out := make([]any, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = e.Interface()
		}
		return out
	case TypeDoc:
		return v.Doc
	default:
		return nil
	}
}

// FromInterface converts a decoded Go value into a Value. Unknown types are
// rendered with %v.
func FromInterface(x any) Value {
	switch val := x.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case int:
		return IntVal(int64(val))
	case int32:
		return IntVal(int64(val))
	case int64:
		return IntVal(val)
	case float32:
		return FloatVal(float64(val))
	case float64:
		return FloatVal(val)
	case string:
		return StrVal(val)
	case bool:
		return BoolVal(val)
	case []byte:
		return StrVal(string(val))
	case time.Time:
		return TimeVal(val)
	case *Doc:
		return DocVal(val)
	case []any:
		arr := make([]Value, len(val))
		for i, e := range val {
			arr[i] = FromInterface(e)
		}
		return ArrayVal(arr)
	case map[string]any:
		return DocVal(DocFromMap(val))
	default:
		return StrVal(fmt.Sprintf("%v", val))
	}
}

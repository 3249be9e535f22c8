package engine

import (
	"fmt"
	"strings"

	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/table"
)

// Eval evaluates an expression against a document. A missing field
// evaluates to null.
func Eval(expr ast.Expr, doc *table.Doc) (table.Value, error) {
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		return e.Value, nil
	case *ast.FieldExpr:
		v, _ := doc.Path(e.Path)
		return v, nil
	case *ast.DocExpr:
		out := table.NewDoc()
		for _, f := range e.Fields {
			v, err := Eval(f.Expr, doc)
			if err != nil {
				return table.Null(), err
			}
			out.Set(f.Name, v)
		}
		return table.DocVal(out), nil
	case *ast.ArrayExpr:
		arr := make([]table.Value, len(e.Elems))
		for i, x := range e.Elems {
			v, err := Eval(x, doc)
			if err != nil {
				return table.Null(), err
			}
			arr[i] = v
		}
		return table.ArrayVal(arr), nil
	case *ast.FuncCallExpr:
		return evalFunc(e, doc)
	default:
		return table.Null(), fmt.Errorf("unknown expression type %T", expr)
	}
}

func evalArgs(args []ast.Expr, doc *table.Doc) ([]table.Value, error) {
	vals := make([]table.Value, len(args))
	for i, a := range args {
		v, err := Eval(a, doc)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// fieldRefs collects the field paths an expression reads.
func fieldRefs(expr ast.Expr, out []string) []string {
	switch e := expr.(type) {
	case *ast.FieldExpr:
		out = append(out, e.Path)
	case *ast.DocExpr:
		for _, f := range e.Fields {
			out = fieldRefs(f.Expr, out)
		}
	case *ast.ArrayExpr:
		for _, x := range e.Elems {
			out = fieldRefs(x, out)
		}
	case *ast.FuncCallExpr:
		for _, x := range e.Args {
			out = fieldRefs(x, out)
		}
	}
	return out
}

// checkFields fails with a ReferenceError when the root of a path is carried
// by none of the documents. Empty input references nothing.
func checkFields(docs []*table.Doc, paths ...string) error {
	if len(docs) == 0 {
		return nil
	}
	for _, p := range paths {
		root, _, _ := strings.Cut(p, ".")
		found := false
		for _, d := range docs {
			if d.Has(root) {
				found = true
				break
			}
		}
		if !found {
			return &ReferenceError{Kind: "field", Name: p}
		}
	}
	return nil
}

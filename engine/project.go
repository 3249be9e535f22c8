package engine

import (
	"fmt"
	"strings"

	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/table"
)

func execProject(o *ast.ProjectOp, docs []*table.Doc) ([]*table.Doc, error) {
	if o.Exclusion() {
		names := make([]string, len(o.Fields))
		for i, f := range o.Fields {
			names[i] = f.Name
		}
		out := make([]*table.Doc, len(docs))
		for i, d := range docs {
			out[i] = d.Without(names...)
		}
		return out, nil
	}

	var idField *ast.ProjectField
	for i := range o.Fields {
		if o.Fields[i].Name == "_id" {
			idField = &o.Fields[i]
		}
	}

	out := make([]*table.Doc, len(docs))
	for i, d := range docs {
		nd := table.NewDoc()
		switch {
		case idField == nil:
			if id, ok := d.Get("_id"); ok {
				nd.Set("_id", id)
			}
		case !idField.Exclude:
			v, err := projectValue(idField, d)
			if err != nil {
				return nil, err
			}
			nd.Set("_id", v)
		}
		for fi := range o.Fields {
			f := &o.Fields[fi]
			if f.Name == "_id" {
				continue
			}
			v, err := projectValue(f, d)
			if err != nil {
				return nil, err
			}
			nd = setPath(nd, f.Name, v)
		}
		out[i] = nd
	}
	return out, nil
}

// projectValue is the value of one included or computed field. A missing
// included field becomes null so every output has the same shape.
func projectValue(f *ast.ProjectField, d *table.Doc) (table.Value, error) {
	if f.Expr == nil {
		v, _ := d.Get(f.Name)
		return v, nil
	}
	v, err := Eval(f.Expr, d)
	if err != nil {
		return table.Null(), fmt.Errorf("%s: %w", f.Name, err)
	}
	return v, nil
}

func execAddFields(o *ast.AddFieldsOp, docs []*table.Doc) ([]*table.Doc, error) {
	out := make([]*table.Doc, len(docs))
	for i, d := range docs {
		nd := d
		for _, f := range o.Fields {
			v, err := Eval(f.Expr, d)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			nd = nd.WithPath(f.Name, v)
		}
		out[i] = nd
	}
	return out, nil
}

// setPath sets a field on a document still being built.
func setPath(d *table.Doc, name string, v table.Value) *table.Doc {
	if !strings.Contains(name, ".") {
		d.Set(name, v)
		return d
	}
	return d.WithPath(name, v)
}

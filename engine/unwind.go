package engine

import (
	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/table"
)

func execUnwind(o *ast.UnwindOp, docs []*table.Doc) ([]*table.Doc, error) {
	if err := checkFields(docs, o.Path); err != nil {
		return nil, err
	}
	out := make([]*table.Doc, 0, len(docs))
	for _, d := range docs {
		v, _ := d.Path(o.Path)
		switch {
		case v.Type == table.TypeArray && len(v.Arr) > 0:
			for i, e := range v.Arr {
				nd := d.WithPath(o.Path, e)
				if o.IncludeArrayIndex != "" {
					nd.Set(o.IncludeArrayIndex, table.IntVal(int64(i)))
				}
				out = append(out, nd)
			}
		case v.Type == table.TypeArray || v.IsNull():
			if !o.PreserveNullAndEmptyArrays {
				continue
			}
			nd := d.WithPath(o.Path, table.Null())
			if o.IncludeArrayIndex != "" {
				nd.Set(o.IncludeArrayIndex, table.Null())
			}
			out = append(out, nd)
		default:
			// a scalar unwinds to itself
			nd := d
			if o.IncludeArrayIndex != "" {
				nd = d.With(o.IncludeArrayIndex, table.Null())
			}
			out = append(out, nd)
		}
	}
	return out, nil
}

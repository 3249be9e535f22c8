package engine

import (
	"fmt"

	"github.com/trilochan-behera-dev/database-query/table"
)

// Scalar extracts field from a single-document result, the way one
// pipeline's output feeds a parameter of another. An empty result yields
// null.
func Scalar(docs []*table.Doc, field string) (table.Value, error) {
	switch len(docs) {
	case 0:
		return table.Null(), nil
	case 1:
		v, ok := docs[0].Path(field)
		if !ok {
			return table.Null(), &ReferenceError{Kind: "field", Name: field}
		}
		return v, nil
	default:
		return table.Null(), fmt.Errorf("scalar %q: expected at most 1 document, got %d", field, len(docs))
	}
}

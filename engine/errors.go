package engine

import (
	"fmt"

	"github.com/trilochan-behera-dev/database-query/table"
)

// StageError reports which stage of a pipeline failed. Index -1 stands for
// the pipeline's source table.
type StageError struct {
	Index int
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("source: %v", e.Err)
	}
	return fmt.Sprintf("stage %d (%s): %v", e.Index, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ReferenceError is a table or field named by a stage that does not exist.
type ReferenceError struct {
	Kind string // "table" or "field"
	Name string
	Err  error // underlying cause, e.g. table.ErrNotFound
}

func (e *ReferenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unknown %s %q: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

func (e *ReferenceError) Unwrap() error { return e.Err }

// TypeMismatchError is an operator applied to a value it cannot handle.
type TypeMismatchError struct {
	Op    string
	Value table.Value
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: unsupported %s value %s", e.Op, e.Value.Type, e.Value.AsString())
}

func mismatch(op string, v table.Value) error {
	return &TypeMismatchError{Op: op, Value: v}
}

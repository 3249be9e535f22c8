package ast

import (
	"regexp"

	"github.com/trilochan-behera-dev/database-query/table"
)

// Expr represents an expression tree used in group keys, accumulators,
// projections and match operands.
type Expr interface {
	exprNode()
}

// LiteralExpr is a constant, including values bound from parameters.
type LiteralExpr struct {
	Value table.Value
}

func (e *LiteralExpr) exprNode() {}

// FieldExpr references a field of the current document by dotted path,
// written "$a.b" in pipeline text.
type FieldExpr struct {
	Path string
}

func (e *FieldExpr) exprNode() {}

// FuncCallExpr is an operator application: { $multiply: [a, b] }.
type FuncCallExpr struct {
	Name string // "$multiply", "$month", ...
	Args []Expr
}

func (e *FuncCallExpr) exprNode() {}

// DocField is one named entry of a DocExpr.
type DocField struct {
	Name string
	Expr Expr
}

// DocExpr builds an embedded document, e.g. a composite group key.
type DocExpr struct {
	Fields []DocField
}

func (e *DocExpr) exprNode() {}

// ArrayExpr builds an array from element expressions.
type ArrayExpr struct {
	Elems []Expr
}

func (e *ArrayExpr) exprNode() {}

// --- Match conditions ---

// Condition is one predicate of a $match stage.
type Condition interface {
	condNode()
}

// FieldCond compares a field against an operand: { qty: { $gt: 5 } }.
// Operand may be a FieldExpr, which compares two fields of the same document.
type FieldCond struct {
	Path    string
	Op      string // "$eq", "$ne", "$gt", "$gte", "$lt", "$lte", "$in", "$nin", "$regex", "$exists"
	Operand Expr
	Pattern *regexp.Regexp // compiled for $regex
}

func (c *FieldCond) condNode() {}

// LogicalCond combines sub-filters. Each child is itself an implicit
// conjunction of conditions.
type LogicalCond struct {
	Op       string // "$and", "$or", "$nor"
	Children [][]Condition
}

func (c *LogicalCond) condNode() {}

// --- Operations (pipeline stages) ---

// Op represents a single stage in the pipeline.
type Op interface {
	opNode()
	// Name returns the stage operator as written, e.g. "$lookup".
	Name() string
}

// LookupOp joins each document with the foreign rows whose ForeignField
// equals the document's LocalField. Matches land in an array field As.
type LookupOp struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
}

func (o *LookupOp) opNode()      {}
func (o *LookupOp) Name() string { return "$lookup" }

// UnwindOp flattens the array at Path into one document per element.
type UnwindOp struct {
	Path                       string
	PreserveNullAndEmptyArrays bool
	IncludeArrayIndex          string
}

func (o *UnwindOp) opNode()      {}
func (o *UnwindOp) Name() string { return "$unwind" }

// MatchOp keeps documents satisfying every condition.
type MatchOp struct {
	Conds []Condition
}

func (o *MatchOp) opNode()      {}
func (o *MatchOp) Name() string { return "$match" }

// Accumulator is a named reduction over a group's documents.
type Accumulator struct {
	Field string
	Func  string // "$sum", "$avg", "$count", "$first", "$last", "$min", "$max", "$push"
	Expr  Expr   // nil for $count
}

// GroupOp partitions documents by Key and reduces each partition.
type GroupOp struct {
	Key          Expr
	Accumulators []Accumulator
}

func (o *GroupOp) opNode()      {}
func (o *GroupOp) Name() string { return "$group" }

// SortKey is one key of a $sort document.
type SortKey struct {
	Path string
	Desc bool
}

// SortOp sorts documents stably by Keys.
type SortOp struct {
	Keys []SortKey
}

func (o *SortOp) opNode()      {}
func (o *SortOp) Name() string { return "$sort" }

// LimitOp returns the first N documents.
type LimitOp struct {
	N int
}

func (o *LimitOp) opNode()      {}
func (o *LimitOp) Name() string { return "$limit" }

// SkipOp drops the first N documents.
type SkipOp struct {
	N int
}

func (o *SkipOp) opNode()      {}
func (o *SkipOp) Name() string { return "$skip" }

// ProjectField is one entry of a projection: an inclusion, an exclusion,
// or a computed field (Expr set).
type ProjectField struct {
	Name    string
	Exclude bool
	Expr    Expr // nil means include the field as is
}

// ProjectOp reshapes documents.
type ProjectOp struct {
	Fields []ProjectField
}

func (o *ProjectOp) opNode()      {}
func (o *ProjectOp) Name() string { return "$project" }

// Exclusion reports whether the projection only removes fields.
func (o *ProjectOp) Exclusion() bool {
	for _, f := range o.Fields {
		if !f.Exclude {
			return false
		}
	}
	return len(o.Fields) > 0
}

// AddFieldsOp adds or replaces computed fields, keeping the rest.
type AddFieldsOp struct {
	Fields []DocField
}

func (o *AddFieldsOp) opNode()      {}
func (o *AddFieldsOp) Name() string { return "$addFields" }

// CountOp replaces the input with a single document holding its length.
type CountOp struct {
	Field string
}

func (o *CountOp) opNode()      {}
func (o *CountOp) Name() string { return "$count" }

// Pipeline is a source table plus the stages applied to it, left to right.
type Pipeline struct {
	Source string
	Stages []Op
}

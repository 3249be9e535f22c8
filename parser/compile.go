package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/lexer"
	"github.com/trilochan-behera-dev/database-query/table"
)

// operator arity: min and max argument counts, -1 for unbounded.
var exprOps = map[string][2]int{
	"$multiply":    {1, -1},
	"$add":         {1, -1},
	"$subtract":    {2, 2},
	"$divide":      {2, 2},
	"$sum":         {1, -1},
	"$size":        {1, 1},
	"$arrayElemAt": {2, 2},
	"$month":       {1, 1},
	"$year":        {1, 1},
	"$dayOfMonth":  {1, 1},
	"$concat":      {1, -1},
	"$ifNull":      {2, -1},
}

var accumulators = map[string]bool{
	"$sum": true, "$avg": true, "$count": true, "$first": true,
	"$last": true, "$min": true, "$max": true, "$push": true,
}

var fieldOps = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$regex": true, "$exists": true,
}

func (p *Parser) compileStages(n *node) ([]ast.Op, error) {
	if n.kind != nodeArray {
		return nil, fmt.Errorf("expected stage array at position %d", n.pos)
	}
	stages := make([]ast.Op, 0, len(n.elems))
	for i, e := range n.elems {
		op, err := p.compileStage(e)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		stages = append(stages, op)
	}
	return stages, nil
}

func (p *Parser) compileStage(n *node) (ast.Op, error) {
	if n.kind != nodeObject || len(n.members) != 1 {
		return nil, fmt.Errorf("expected an object with exactly one stage operator at position %d", n.pos)
	}
	m := n.members[0]
	switch m.key {
	case "$lookup":
		return p.compileLookup(m.val)
	case "$unwind":
		return p.compileUnwind(m.val)
	case "$match":
		conds, err := p.compileMatch(m.val)
		if err != nil {
			return nil, fmt.Errorf("$match: %w", err)
		}
		return &ast.MatchOp{Conds: conds}, nil
	case "$group":
		return p.compileGroup(m.val)
	case "$sort":
		return p.compileSort(m.val)
	case "$limit":
		n, err := intArg(m.val, "$limit", 1)
		if err != nil {
			return nil, err
		}
		return &ast.LimitOp{N: n}, nil
	case "$skip":
		n, err := intArg(m.val, "$skip", 0)
		if err != nil {
			return nil, err
		}
		return &ast.SkipOp{N: n}, nil
	case "$project":
		return p.compileProject(m.val)
	case "$addFields", "$set":
		fields, err := p.compileDocFields(m.val, m.key)
		if err != nil {
			return nil, err
		}
		return &ast.AddFieldsOp{Fields: fields}, nil
	case "$count":
		if !m.val.isString() || m.val.tok.Val == "" ||
			strings.HasPrefix(m.val.tok.Val, "$") || strings.Contains(m.val.tok.Val, ".") {
			return nil, fmt.Errorf("$count: expected a plain field name at position %d", m.val.pos)
		}
		return &ast.CountOp{Field: m.val.tok.Val}, nil
	default:
		return nil, fmt.Errorf("unknown stage %q at position %d", m.key, m.pos)
	}
}

func (p *Parser) compileFind(args []*node) ([]ast.Op, error) {
	if len(args) > 2 {
		return nil, fmt.Errorf("find: expected at most 2 arguments, got %d", len(args))
	}
	var stages []ast.Op
	if len(args) > 0 && len(args[0].members) > 0 {
		conds, err := p.compileMatch(args[0])
		if err != nil {
			return nil, fmt.Errorf("find filter: %w", err)
		}
		stages = append(stages, &ast.MatchOp{Conds: conds})
	}
	if len(args) > 1 && len(args[1].members) > 0 {
		proj, err := p.compileProject(args[1])
		if err != nil {
			return nil, fmt.Errorf("find projection: %w", err)
		}
		stages = append(stages, proj)
	}
	return stages, nil
}

func stringField(n *node, stage, key string) (string, error) {
	v := n.lookup(key)
	if v == nil {
		return "", fmt.Errorf("%s: missing %q at position %d", stage, key, n.pos)
	}
	if !v.isString() || v.tok.Val == "" {
		return "", fmt.Errorf("%s: %q must be a non-empty string at position %d", stage, key, v.pos)
	}
	return v.tok.Val, nil
}

func intArg(n *node, stage string, min int64) (int, error) {
	if n.kind != nodeScalar || n.tok.Type != lexer.TokenInt {
		return 0, fmt.Errorf("%s: expected an integer at position %d", stage, n.pos)
	}
	v, err := scalarValue(n.tok)
	if err != nil {
		return 0, err
	}
	if v.Int < min {
		return 0, fmt.Errorf("%s: must be at least %d, got %d", stage, min, v.Int)
	}
	return int(v.Int), nil
}

func (p *Parser) compileLookup(n *node) (ast.Op, error) {
	if n.kind != nodeObject {
		return nil, fmt.Errorf("$lookup: expected an object at position %d", n.pos)
	}
	for _, m := range n.members {
		switch m.key {
		case "from", "localField", "foreignField", "as":
		default:
			return nil, fmt.Errorf("$lookup: unsupported option %q at position %d", m.key, m.pos)
		}
	}
	op := &ast.LookupOp{}
	var err error
	if op.From, err = stringField(n, "$lookup", "from"); err != nil {
		return nil, err
	}
	if op.LocalField, err = stringField(n, "$lookup", "localField"); err != nil {
		return nil, err
	}
	if op.ForeignField, err = stringField(n, "$lookup", "foreignField"); err != nil {
		return nil, err
	}
	if op.As, err = stringField(n, "$lookup", "as"); err != nil {
		return nil, err
	}
	return op, nil
}

func fieldPath(s string, pos int, stage string) (string, error) {
	if !strings.HasPrefix(s, "$") || strings.HasPrefix(s, "$$") || len(s) < 2 {
		return "", fmt.Errorf("%s: expected a field path like \"$name\", got %q at position %d", stage, s, pos)
	}
	return s[1:], nil
}

func (p *Parser) compileUnwind(n *node) (ast.Op, error) {
	if n.isString() {
		path, err := fieldPath(n.tok.Val, n.pos, "$unwind")
		if err != nil {
			return nil, err
		}
		return &ast.UnwindOp{Path: path}, nil
	}
	if n.kind != nodeObject {
		return nil, fmt.Errorf("$unwind: expected a field path or an object at position %d", n.pos)
	}
	raw, err := stringField(n, "$unwind", "path")
	if err != nil {
		return nil, err
	}
	op := &ast.UnwindOp{}
	if op.Path, err = fieldPath(raw, n.pos, "$unwind"); err != nil {
		return nil, err
	}
	for _, m := range n.members {
		switch m.key {
		case "path":
		case "preserveNullAndEmptyArrays":
			if m.val.kind != nodeScalar || (m.val.tok.Type != lexer.TokenTrue && m.val.tok.Type != lexer.TokenFalse) {
				return nil, fmt.Errorf("$unwind: preserveNullAndEmptyArrays must be a boolean at position %d", m.val.pos)
			}
			op.PreserveNullAndEmptyArrays = m.val.tok.Type == lexer.TokenTrue
		case "includeArrayIndex":
			if !m.val.isString() || strings.HasPrefix(m.val.tok.Val, "$") {
				return nil, fmt.Errorf("$unwind: includeArrayIndex must be a field name at position %d", m.val.pos)
			}
			op.IncludeArrayIndex = m.val.tok.Val
		default:
			return nil, fmt.Errorf("$unwind: unsupported option %q at position %d", m.key, m.pos)
		}
	}
	return op, nil
}

// compileExpr turns a value into an expression. "$a.b" is a field path,
// "$$name" a bound parameter, { $op: args } an operator, and an object of
// plain keys a document.
func (p *Parser) compileExpr(n *node) (ast.Expr, error) {
	switch n.kind {
	case nodeScalar:
		if n.isString() && strings.HasPrefix(n.tok.Val, "$") {
			if strings.HasPrefix(n.tok.Val, "$$") {
				name := n.tok.Val[2:]
				v, ok := p.params[name]
				if !ok {
					return nil, fmt.Errorf("unbound parameter %q at position %d", name, n.pos)
				}
				return &ast.LiteralExpr{Value: v}, nil
			}
			path, err := fieldPath(n.tok.Val, n.pos, "expression")
			if err != nil {
				return nil, err
			}
			return &ast.FieldExpr{Path: path}, nil
		}
		v, err := scalarValue(n.tok)
		if err != nil {
			return nil, err
		}
		return &ast.LiteralExpr{Value: v}, nil
	case nodeArray:
		elems := make([]ast.Expr, len(n.elems))
		for i, e := range n.elems {
			x, err := p.compileExpr(e)
			if err != nil {
				return nil, err
			}
			elems[i] = x
		}
		return &ast.ArrayExpr{Elems: elems}, nil
	}

	if len(n.members) == 1 && strings.HasPrefix(n.members[0].key, "$") {
		return p.compileOperator(n.members[0])
	}
	fields, err := p.compileDocFields(n, "document")
	if err != nil {
		return nil, err
	}
	return &ast.DocExpr{Fields: fields}, nil
}

func (p *Parser) compileOperator(m member) (ast.Expr, error) {
	if m.key == "$literal" {
		v, err := literalValue(m.val)
		if err != nil {
			return nil, err
		}
		return &ast.LiteralExpr{Value: v}, nil
	}
	arity, ok := exprOps[m.key]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q at position %d", m.key, m.pos)
	}
	argNodes := []*node{m.val}
	if m.val.kind == nodeArray {
		argNodes = m.val.elems
	}
	if len(argNodes) < arity[0] || (arity[1] >= 0 && len(argNodes) > arity[1]) {
		return nil, fmt.Errorf("%s: wrong number of arguments (%d) at position %d", m.key, len(argNodes), m.pos)
	}
	args := make([]ast.Expr, len(argNodes))
	for i, a := range argNodes {
		x, err := p.compileExpr(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.key, err)
		}
		args[i] = x
	}
	return &ast.FuncCallExpr{Name: m.key, Args: args}, nil
}

func (p *Parser) compileDocFields(n *node, what string) ([]ast.DocField, error) {
	if n.kind != nodeObject || len(n.members) == 0 {
		return nil, fmt.Errorf("%s: expected a non-empty object at position %d", what, n.pos)
	}
	fields := make([]ast.DocField, 0, len(n.members))
	for _, m := range n.members {
		if strings.HasPrefix(m.key, "$") {
			return nil, fmt.Errorf("%s: field name %q cannot start with '$' at position %d", what, m.key, m.pos)
		}
		x, err := p.compileExpr(m.val)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.DocField{Name: m.key, Expr: x})
	}
	return fields, nil
}

func (p *Parser) compileMatch(n *node) ([]ast.Condition, error) {
	if n.kind != nodeObject {
		return nil, fmt.Errorf("expected a filter object at position %d", n.pos)
	}
	var conds []ast.Condition
	for _, m := range n.members {
		switch {
		case m.key == "$and" || m.key == "$or" || m.key == "$nor":
			if m.val.kind != nodeArray || len(m.val.elems) == 0 {
				return nil, fmt.Errorf("value for %s must be a non-empty list at position %d", m.key, m.val.pos)
			}
			lc := &ast.LogicalCond{Op: m.key}
			for _, e := range m.val.elems {
				sub, err := p.compileMatch(e)
				if err != nil {
					return nil, err
				}
				lc.Children = append(lc.Children, sub)
			}
			conds = append(conds, lc)
		case strings.HasPrefix(m.key, "$"):
			return nil, fmt.Errorf("unknown operator: %s at position %d", m.key, m.pos)
		default:
			fc, err := p.compileFieldConds(m)
			if err != nil {
				return nil, err
			}
			conds = append(conds, fc...)
		}
	}
	return conds, nil
}

func isOperatorObject(n *node) bool {
	if n.kind != nodeObject || len(n.members) == 0 {
		return false
	}
	for _, m := range n.members {
		if !strings.HasPrefix(m.key, "$") {
			return false
		}
	}
	return true
}

func (p *Parser) compileFieldConds(m member) ([]ast.Condition, error) {
	if !isOperatorObject(m.val) || (len(m.val.members) == 1 && m.val.members[0].key == "$literal") {
		operand, err := p.compileExpr(m.val)
		if err != nil {
			return nil, err
		}
		return []ast.Condition{&ast.FieldCond{Path: m.key, Op: "$eq", Operand: operand}}, nil
	}

	options := m.val.lookup("$options")
	var conds []ast.Condition
	for _, om := range m.val.members {
		if om.key == "$options" {
			if m.val.lookup("$regex") == nil {
				return nil, fmt.Errorf("$options without $regex at position %d", om.pos)
			}
			continue
		}
		if !fieldOps[om.key] {
			return nil, fmt.Errorf("unknown operator: %s at position %d", om.key, om.pos)
		}
		fc := &ast.FieldCond{Path: m.key, Op: om.key}
		switch om.key {
		case "$regex":
			re, err := compileRegex(om.val, options)
			if err != nil {
				return nil, err
			}
			fc.Pattern = re
		case "$exists":
			v, err := literalValue(om.val)
			if err != nil {
				return nil, err
			}
			fc.Operand = &ast.LiteralExpr{Value: table.BoolVal(truthy(v))}
		case "$in", "$nin":
			if om.val.kind != nodeArray {
				return nil, fmt.Errorf("%s needs an array at position %d", om.key, om.val.pos)
			}
			fallthrough
		default:
			operand, err := p.compileExpr(om.val)
			if err != nil {
				return nil, err
			}
			fc.Operand = operand
		}
		conds = append(conds, fc)
	}
	return conds, nil
}

func truthy(v table.Value) bool {
	switch v.Type {
	case table.TypeNull:
		return false
	case table.TypeBool:
		return v.Bool
	case table.TypeInt:
		return v.Int != 0
	case table.TypeFloat:
		return v.Float != 0
	default:
		return true
	}
}

func compileRegex(n *node, options *node) (*regexp.Regexp, error) {
	if !n.isString() {
		return nil, fmt.Errorf("$regex must be a string at position %d", n.pos)
	}
	flags := ""
	if options != nil {
		if !options.isString() {
			return nil, fmt.Errorf("$options must be a string at position %d", options.pos)
		}
		for _, c := range options.tok.Val {
			switch c {
			case 'i', 'm', 's':
				flags += string(c)
			default:
				return nil, fmt.Errorf("unsupported regex option %q at position %d", c, options.pos)
			}
		}
	}
	pattern := n.tok.Val
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("$regex at position %d: %w", n.pos, err)
	}
	return re, nil
}

func (p *Parser) compileGroup(n *node) (ast.Op, error) {
	if n.kind != nodeObject {
		return nil, fmt.Errorf("$group: expected an object at position %d", n.pos)
	}
	idNode := n.lookup("_id")
	if idNode == nil {
		return nil, fmt.Errorf("$group: missing \"_id\" at position %d", n.pos)
	}
	key, err := p.compileExpr(idNode)
	if err != nil {
		return nil, fmt.Errorf("$group _id: %w", err)
	}
	op := &ast.GroupOp{Key: key}
	for _, m := range n.members {
		if m.key == "_id" {
			continue
		}
		if strings.Contains(m.key, ".") || strings.HasPrefix(m.key, "$") {
			return nil, fmt.Errorf("$group: invalid field name %q at position %d", m.key, m.pos)
		}
		if m.val.kind != nodeObject || len(m.val.members) != 1 || !accumulators[m.val.members[0].key] {
			return nil, fmt.Errorf("$group: field %q must be an accumulator object at position %d", m.key, m.val.pos)
		}
		acc := m.val.members[0]
		a := ast.Accumulator{Field: m.key, Func: acc.key}
		if acc.key == "$count" {
			if acc.val.kind != nodeObject || len(acc.val.members) != 0 {
				return nil, fmt.Errorf("$group: $count takes {} at position %d", acc.val.pos)
			}
		} else {
			a.Expr, err = p.compileExpr(acc.val)
			if err != nil {
				return nil, fmt.Errorf("$group %s: %w", m.key, err)
			}
		}
		op.Accumulators = append(op.Accumulators, a)
	}
	return op, nil
}

func (p *Parser) compileSort(n *node) (ast.Op, error) {
	if n.kind != nodeObject || len(n.members) == 0 {
		return nil, fmt.Errorf("$sort: expected a non-empty object at position %d", n.pos)
	}
	op := &ast.SortOp{}
	for _, m := range n.members {
		if m.val.kind != nodeScalar || m.val.tok.Type != lexer.TokenInt || (m.val.tok.Val != "1" && m.val.tok.Val != "-1") {
			return nil, fmt.Errorf("$sort: direction for %q must be 1 or -1 at position %d", m.key, m.val.pos)
		}
		op.Keys = append(op.Keys, ast.SortKey{Path: m.key, Desc: m.val.tok.Val == "-1"})
	}
	return op, nil
}

func (p *Parser) compileProject(n *node) (*ast.ProjectOp, error) {
	if n.kind != nodeObject || len(n.members) == 0 {
		return nil, fmt.Errorf("$project: expected a non-empty object at position %d", n.pos)
	}
	op := &ast.ProjectOp{}
	included, excluded := false, false
	for _, m := range n.members {
		if strings.HasPrefix(m.key, "$") {
			return nil, fmt.Errorf("$project: field name %q cannot start with '$' at position %d", m.key, m.pos)
		}
		f := ast.ProjectField{Name: m.key}
		if flag, ok := projectionFlag(m.val); ok {
			if strings.Contains(m.key, ".") {
				return nil, fmt.Errorf("$project: dotted field %q needs an expression at position %d", m.key, m.pos)
			}
			f.Exclude = !flag
		} else {
			x, err := p.compileExpr(m.val)
			if err != nil {
				return nil, fmt.Errorf("$project %s: %w", m.key, err)
			}
			f.Expr = x
		}
		if f.Exclude && m.key != "_id" {
			excluded = true
		}
		if !f.Exclude {
			included = true
		}
		op.Fields = append(op.Fields, f)
	}
	if included && excluded {
		return nil, fmt.Errorf("$project: cannot mix inclusion and exclusion of fields other than _id")
	}
	return op, nil
}

// projectionFlag reads 1/0/true/false entries of a projection.
func projectionFlag(n *node) (bool, bool) {
	if n.kind != nodeScalar {
		return false, false
	}
	switch n.tok.Type {
	case lexer.TokenTrue:
		return true, true
	case lexer.TokenFalse:
		return false, true
	case lexer.TokenInt, lexer.TokenFloat:
		v, err := scalarValue(n.tok)
		if err != nil {
			return false, false
		}
		f, _ := v.AsFloat()
		return f != 0, true
	}
	return false, false
}

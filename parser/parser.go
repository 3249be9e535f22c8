package parser

import (
	"fmt"
	"strconv"

	"github.com/trilochan-behera-dev/database-query/ast"
	"github.com/trilochan-behera-dev/database-query/lexer"
	"github.com/trilochan-behera-dev/database-query/table"
)

// Params binds "$$name" operands to values while a pipeline is built.
type Params map[string]table.Value

// Parser converts a token stream into an AST.
type Parser struct {
	tokens []lexer.Token
	pos    int
	params Params
}

// Parse parses a shell-style query into a Pipeline:
//
//	db.orders.aggregate([ { $group: { _id: "$shipVia", n: { $sum: 1 } } } ])
//	db.products.find({ discontinued: { $ne: true } }, { productName: 1, _id: 0 })
func Parse(input string) (*ast.Pipeline, error) {
	return ParseWithParams(input, nil)
}

// ParseWithParams is Parse with "$$name" operands bound from params. An
// operand naming a parameter that is not in params is a parse error.
func ParseWithParams(input string, params Params) (*ast.Pipeline, error) {
	p, err := newParser(input, params)
	if err != nil {
		return nil, err
	}
	return p.parseScript()
}

// ParseStages parses a bare stage array, "[ {...}, {...} ]", run against source.
func ParseStages(source, input string, params Params) (*ast.Pipeline, error) {
	p, err := newParser(input, params)
	if err != nil {
		return nil, err
	}
	n, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != lexer.TokenEOF {
		return nil, fmt.Errorf("unexpected token %s (%q) at position %d", p.peek().Type, p.peek().Val, p.peek().Pos)
	}
	stages, err := p.compileStages(n)
	if err != nil {
		return nil, err
	}
	return &ast.Pipeline{Source: source, Stages: stages}, nil
}

func newParser(input string, params Params) (*Parser, error) {
	tokens, err := lexer.Lex(input)
	if err != nil {
		return nil, fmt.Errorf("lex error: %w", err)
	}
	return &Parser{tokens: tokens, pos: 0, params: params}, nil
}

func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() lexer.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, fmt.Errorf("expected %s, got %s (%q) at position %d", tt, tok.Type, tok.Val, tok.Pos)
	}
	return tok, nil
}

func (p *Parser) parseScript() (*ast.Pipeline, error) {
	db, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return nil, err
	}
	if db.Val != "db" {
		return nil, fmt.Errorf("expected \"db\", got %q at position %d", db.Val, db.Pos)
	}
	if _, err := p.expect(lexer.TokenDot); err != nil {
		return nil, err
	}
	source, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return nil, fmt.Errorf("expected table name: %w", err)
	}
	if _, err := p.expect(lexer.TokenDot); err != nil {
		return nil, err
	}
	method, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return nil, fmt.Errorf("expected method name: %w", err)
	}
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	var args []*node
	for p.peek().Type != lexer.TokenRParen {
		if len(args) > 0 {
			if _, err := p.expect(lexer.TokenComma); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	p.advance() // consume )
	if p.peek().Type == lexer.TokenSemicolon {
		p.advance()
	}
	if p.peek().Type != lexer.TokenEOF {
		return nil, fmt.Errorf("unexpected token %s (%q) at position %d", p.peek().Type, p.peek().Val, p.peek().Pos)
	}

	var stages []ast.Op
	switch method.Val {
	case "aggregate":
		if len(args) != 1 {
			return nil, fmt.Errorf("aggregate: expected 1 argument, got %d", len(args))
		}
		stages, err = p.compileStages(args[0])
	case "find":
		stages, err = p.compileFind(args)
	default:
		return nil, fmt.Errorf("unknown method %q at position %d", method.Val, method.Pos)
	}
	if err != nil {
		return nil, err
	}
	return &ast.Pipeline{Source: source.Val, Stages: stages}, nil
}

// --- value tree ---

type nodeKind int

const (
	nodeScalar nodeKind = iota
	nodeObject
	nodeArray
)

type member struct {
	key string
	pos int
	val *node
}

// node is a parsed relaxed-JSON value: an object keeps its keys in order.
type node struct {
	kind    nodeKind
	pos     int
	tok     lexer.Token // scalar token
	members []member
	elems   []*node
}

func (n *node) lookup(key string) *node {
	for _, m := range n.members {
		if m.key == key {
			return m.val
		}
	}
	return nil
}

func (n *node) isString() bool {
	return n.kind == nodeScalar && n.tok.Type == lexer.TokenString
}

func (p *Parser) parseValue() (*node, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenLBrace:
		return p.parseObject()
	case lexer.TokenLBracket:
		return p.parseArray()
	case lexer.TokenString, lexer.TokenInt, lexer.TokenFloat,
		lexer.TokenTrue, lexer.TokenFalse, lexer.TokenNull:
		p.advance()
		return &node{kind: nodeScalar, pos: tok.Pos, tok: tok}, nil
	default:
		return nil, fmt.Errorf("expected value, got %s (%q) at position %d", tok.Type, tok.Val, tok.Pos)
	}
}

func (p *Parser) parseObject() (*node, error) {
	open := p.advance() // consume {
	n := &node{kind: nodeObject, pos: open.Pos}
	for p.peek().Type != lexer.TokenRBrace {
		if len(n.members) > 0 {
			if _, err := p.expect(lexer.TokenComma); err != nil {
				return nil, err
			}
			// trailing comma
			if p.peek().Type == lexer.TokenRBrace {
				break
			}
		}
		key := p.advance()
		if key.Type != lexer.TokenIdent && key.Type != lexer.TokenString {
			return nil, fmt.Errorf("expected field name, got %s (%q) at position %d", key.Type, key.Val, key.Pos)
		}
		if n.lookup(key.Val) != nil {
			return nil, fmt.Errorf("duplicate field %q at position %d", key.Val, key.Pos)
		}
		if _, err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		n.members = append(n.members, member{key: key.Val, pos: key.Pos, val: val})
	}
	p.advance() // consume }
	return n, nil
}

func (p *Parser) parseArray() (*node, error) {
	open := p.advance() // consume [
	n := &node{kind: nodeArray, pos: open.Pos}
	for p.peek().Type != lexer.TokenRBracket {
		if len(n.elems) > 0 {
			if _, err := p.expect(lexer.TokenComma); err != nil {
				return nil, err
			}
			if p.peek().Type == lexer.TokenRBracket {
				break
			}
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		n.elems = append(n.elems, val)
	}
	p.advance() // consume ]
	return n, nil
}

// scalarValue converts a scalar token into a Value.
func scalarValue(tok lexer.Token) (table.Value, error) {
	switch tok.Type {
	case lexer.TokenString:
		return table.StrVal(tok.Val), nil
	case lexer.TokenInt:
		v, err := strconv.ParseInt(tok.Val, 10, 64)
		if err != nil {
			return table.Null(), fmt.Errorf("invalid integer %q at position %d", tok.Val, tok.Pos)
		}
		return table.IntVal(v), nil
	case lexer.TokenFloat:
		v, err := strconv.ParseFloat(tok.Val, 64)
		if err != nil {
			return table.Null(), fmt.Errorf("invalid number %q at position %d", tok.Val, tok.Pos)
		}
		return table.FloatVal(v), nil
	case lexer.TokenTrue:
		return table.BoolVal(true), nil
	case lexer.TokenFalse:
		return table.BoolVal(false), nil
	default:
		return table.Null(), nil
	}
}

// literalValue converts a whole subtree into a Value without interpreting
// "$" strings.
func literalValue(n *node) (table.Value, error) {
	switch n.kind {
	case nodeArray:
		arr := make([]table.Value, len(n.elems))
		for i, e := range n.elems {
			v, err := literalValue(e)
			if err != nil {
				return table.Null(), err
			}
			arr[i] = v
		}
		return table.ArrayVal(arr), nil
	case nodeObject:
		d := table.NewDoc()
		for _, m := range n.members {
			v, err := literalValue(m.val)
			if err != nil {
				return table.Null(), err
			}
			d.Set(m.key, v)
		}
		return table.DocVal(d), nil
	default:
		return scalarValue(n.tok)
	}
}

package lexer

import (
	"fmt"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Structural
	TokenLBrace    TokenType = iota // {
	TokenRBrace                     // }
	TokenLBracket                   // [
	TokenRBracket                   // ]
	TokenLParen                     // (
	TokenRParen                     // )
	TokenColon                      // :
	TokenComma                      // ,
	TokenDot                        // .
	TokenSemicolon                  // ;

	// Keywords
	TokenTrue  // true
	TokenFalse // false
	TokenNull  // null

	// Literals
	TokenInt    // integer literal
	TokenFloat  // float literal
	TokenString // "string literal" or 'string literal'

	// Identifiers: db, orders, aggregate, $group, localField, ...
	TokenIdent

	// End
	TokenEOF
)

var tokenNames = map[TokenType]string{
	TokenLBrace: "{", TokenRBrace: "}", TokenLBracket: "[", TokenRBracket: "]",
	TokenLParen: "(", TokenRParen: ")", TokenColon: ":", TokenComma: ",",
	TokenDot: ".", TokenSemicolon: ";",
	TokenTrue: "true", TokenFalse: "false", TokenNull: "null",
	TokenInt: "INT", TokenFloat: "FLOAT", TokenString: "STRING",
	TokenIdent: "IDENT", TokenEOF: "EOF",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// Token represents a single lexical token.
type Token struct {
	Type TokenType
	Val  string
	Pos  int // rune offset in original input
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Type, t.Val, t.Pos)
}

var keywords = map[string]TokenType{
	"true":  TokenTrue,
	"false": TokenFalse,
	"null":  TokenNull,
}

var punct = map[rune]TokenType{
	'{': TokenLBrace,
	'}': TokenRBrace,
	'[': TokenLBracket,
	']': TokenRBracket,
	'(': TokenLParen,
	')': TokenRParen,
	':': TokenColon,
	',': TokenComma,
	'.': TokenDot,
	';': TokenSemicolon,
}

// Lex tokenizes pipeline text into a slice of Tokens.
func Lex(input string) ([]Token, error) {
	var tokens []Token
	runes := []rune(input)
	i := 0

	for i < len(runes) {
		ch := runes[i]

		// Skip whitespace
		if unicode.IsSpace(ch) {
			i++
			continue
		}

		pos := i

		// Comments
		if ch == '/' && i+1 < len(runes) {
			switch runes[i+1] {
			case '/':
				for i < len(runes) && runes[i] != '\n' {
					i++
				}
				continue
			case '*':
				end := -1
				for j := i + 2; j+1 < len(runes); j++ {
					if runes[j] == '*' && runes[j+1] == '/' {
						end = j + 2
						break
					}
				}
				if end < 0 {
					return nil, fmt.Errorf("unterminated comment starting at position %d", pos)
				}
				i = end
				continue
			}
		}

		if tt, ok := punct[ch]; ok {
			// A dot followed by a digit starts a number like .5
			if ch != '.' || i+1 >= len(runes) || !unicode.IsDigit(runes[i+1]) {
				tokens = append(tokens, Token{tt, string(ch), pos})
				i++
				continue
			}
		}

		// String literal
		if ch == '"' || ch == '\'' {
			tok, newI, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = newI
			continue
		}

		// Number, possibly negative
		if unicode.IsDigit(ch) || ch == '.' ||
			(ch == '-' && i+1 < len(runes) && (unicode.IsDigit(runes[i+1]) || runes[i+1] == '.')) {
			tok, newI, err := lexNumber(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = newI
			continue
		}

		// Identifier or keyword
		if isIdentStart(ch) {
			tok, newI := lexIdent(runes, i)
			tokens = append(tokens, tok)
			i = newI
			continue
		}

		return nil, fmt.Errorf("unexpected character %q at position %d", ch, pos)
	}

	tokens = append(tokens, Token{TokenEOF, "", len(runes)})
	return tokens, nil
}

func lexString(runes []rune, start int) (Token, int, error) {
	quote := runes[start]
	i := start + 1 // skip opening quote
	var sb []rune
	for i < len(runes) {
		if runes[i] == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case '"', '\'', '\\', '/':
				sb = append(sb, runes[i+1])
			case 'n':
				sb = append(sb, '\n')
			case 't':
				sb = append(sb, '\t')
			default:
				sb = append(sb, '\\', runes[i+1])
			}
			i += 2
			continue
		}
		if runes[i] == quote {
			return Token{TokenString, string(sb), start}, i + 1, nil
		}
		sb = append(sb, runes[i])
		i++
	}
	return Token{}, 0, fmt.Errorf("unterminated string starting at position %d", start)
}

func lexNumber(runes []rune, start int) (Token, int, error) {
	i := start
	isFloat := false

	if i < len(runes) && runes[i] == '-' {
		i++
	}

	for i < len(runes) && unicode.IsDigit(runes[i]) {
		i++
	}

	if i < len(runes) && runes[i] == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
		isFloat = true
		i++
		for i < len(runes) && unicode.IsDigit(runes[i]) {
			i++
		}
	}

	if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
		j := i + 1
		if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
			j++
		}
		if j >= len(runes) || !unicode.IsDigit(runes[j]) {
			return Token{}, 0, fmt.Errorf("malformed exponent at position %d", i)
		}
		for j < len(runes) && unicode.IsDigit(runes[j]) {
			j++
		}
		isFloat = true
		i = j
	}

	if i < len(runes) && isIdentPart(runes[i]) {
		return Token{}, 0, fmt.Errorf("malformed number at position %d", start)
	}

	val := string(runes[start:i])
	if isFloat {
		return Token{TokenFloat, val, start}, i, nil
	}
	return Token{TokenInt, val, start}, i, nil
}

func lexIdent(runes []rune, start int) (Token, int) {
	i := start
	for i < len(runes) && isIdentPart(runes[i]) {
		i++
	}
	val := string(runes[start:i])

	if tt, ok := keywords[val]; ok {
		return Token{tt, val, start}, i
	}
	return Token{TokenIdent, val, start}, i
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_' || ch == '$'
}

func isIdentPart(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$'
}

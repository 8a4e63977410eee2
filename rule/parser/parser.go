package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thisisjab/rulezilla/rule/ast"
	"github.com/thisisjab/rulezilla/rule/token"
)

var (
	ErrNotEnoughTokens          = errors.New("invalid comparison: not enough tokens")
	ErrInvalidOperator          = errors.New("invalid comparison operator")
	ErrMismatchedParentheses    = errors.New("mismatched parentheses")
	ErrUnexpectedTrailingTokens = errors.New("unexpected tokens after parsing")
	ErrUnexpectedToken          = errors.New("unexpected token")
)

// Parser builds a rule tree from a token sequence. The grammar is:
//
//	Expression := Comparison ( ( AND | OR ) Comparison )*
//	Comparison := '(' Expression ')' | Operand
//	Operand    := IDENT COMPARISON Literal
//
// AND and OR share a single precedence level and fold left.
//
// A Parser is single-use: its cursor only moves forward.
type Parser struct {
	tokens []token.Token
	pos    int // index of the current token
	depth  int // number of open parentheses
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse is a shorthand for New(tokens).Parse().
func Parse(tokens []token.Token) (ast.Node, error) {
	return New(tokens).Parse()
}

func (p *Parser) Parse() (ast.Node, error) {
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.remaining() > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedTrailingTokens, literals(p.tokens[p.pos:]))
	}

	if p.depth != 0 {
		return nil, ErrMismatchedParentheses
	}

	return node, nil
}

func (p *Parser) remaining() int {
	return len(p.tokens) - p.pos
}

func (p *Parser) curToken() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) nextToken() {
	p.pos++
}

func (p *Parser) parseExpression() (ast.Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for p.curToken().Type.IsLogical() {
		kind := ast.LogicalOperator(p.curToken().Literal)
		p.nextToken()

		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		left = ast.Operator{Kind: kind, Left: left, Right: right}
	}

	return left, nil
}

func (p *Parser) parseComparison() (ast.Node, error) {
	if p.curToken().Type == token.LPAREN {
		p.depth++
		p.nextToken()

		node, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		if p.curToken().Type != token.RPAREN {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrMismatchedParentheses)
		}

		p.depth--
		p.nextToken()

		return node, nil
	}

	return p.parseOperand()
}

func (p *Parser) parseOperand() (ast.Node, error) {
	if p.remaining() < 3 {
		return nil, ErrNotEnoughTokens
	}

	attr := p.tokens[p.pos]
	op := p.tokens[p.pos+1]
	lit := p.tokens[p.pos+2]
	p.pos += 3

	operator := ast.ComparisonOperator(op.Literal)
	if op.Type != token.COMPARISON || !operator.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOperator, op.Literal)
	}

	if attr.Type != token.IDENT {
		return nil, fmt.Errorf("%w: expected attribute name, got %q", ErrUnexpectedToken, attr.Literal)
	}

	if !lit.Type.IsLiteral() {
		return nil, fmt.Errorf("%w: expected literal, got %q", ErrUnexpectedToken, lit.Literal)
	}

	return ast.Operand{Attribute: attr.Literal, Operator: operator, Literal: lit.Literal}, nil
}

func literals(tokens []token.Token) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.Literal
	}
	return strings.Join(parts, " ")
}

// Package rule turns boolean condition strings such as
//
//	age > 30 AND (department = 'Sales' OR salary > 50000)
//
// into rule trees, combines several rule strings into one tree and evaluates
// trees against data records.
//
// Every function in this package is pure and safe for concurrent use. Errors
// are sentinel values wrapped with context; match them with errors.Is.
package rule

import (
	"errors"
	"fmt"

	"github.com/thisisjab/rulezilla/rule/ast"
	"github.com/thisisjab/rulezilla/rule/lexer"
	"github.com/thisisjab/rulezilla/rule/parser"
)

var (
	ErrInvalidRuleString = errors.New("invalid rule string")
	ErrEmptyRuleSet      = errors.New("rules must be a non-empty list of rule strings")
	ErrCombineFailed     = errors.New("error combining rules")

	ErrInvalidAST         = errors.New("invalid AST structure")
	ErrInvalidData        = errors.New("invalid data: must be a non-null object")
	ErrMissingAttribute   = errors.New("data missing required attribute")
	ErrInvalidOperator    = parser.ErrInvalidOperator
	ErrUnexpectedNodeType = errors.New("unexpected AST node type")
)

// Create parses ruleString into its tree. Tokenizer and parser failures are
// returned wrapped in ErrInvalidRuleString.
func Create(ruleString string) (ast.Node, error) {
	tokens, err := lexer.Tokenize(ruleString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRuleString, err)
	}

	node, err := parser.Parse(tokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRuleString, err)
	}

	return node, nil
}

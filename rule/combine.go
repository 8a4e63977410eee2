package rule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/thisisjab/rulezilla/rule/ast"
)

var logicalKeyword = regexp.MustCompile(`\b(AND|OR)\b`)

// Combine merges rules into a single tree. Each rule is parenthesized and
// the rules are joined with the operator picked by JoiningOperator.
//
// A single rule is handled exactly like Create, errors included. Failures of
// the combined string are wrapped in ErrCombineFailed.
func Combine(rules []string) (ast.Node, error) {
	if len(rules) == 0 {
		return nil, ErrEmptyRuleSet
	}

	if len(rules) == 1 {
		return Create(rules[0])
	}

	combined, _ := CombineString(rules)

	node, err := Create(combined)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCombineFailed, err)
	}

	return node, nil
}

// CombineString returns the rule string that Combine parses for rules,
// `(r1) OP (r2) OP ...`, along with the joining operator.
func CombineString(rules []string) (string, ast.LogicalOperator) {
	op := JoiningOperator(rules)
	return "(" + strings.Join(rules, ") "+string(op)+" (") + ")", op
}

// JoiningOperator counts whole-word AND and OR keywords across rules and
// returns the most frequent one. Ties go to the keyword seen first; without
// any keyword the result is AND.
func JoiningOperator(rules []string) ast.LogicalOperator {
	counts := make(map[ast.LogicalOperator]int, 2)
	var seen []ast.LogicalOperator

	for _, r := range rules {
		for _, match := range logicalKeyword.FindAllString(r, -1) {
			op := ast.LogicalOperator(match)
			if _, ok := counts[op]; !ok {
				seen = append(seen, op)
			}
			counts[op]++
		}
	}

	best := ast.And
	bestCount := 0
	for _, op := range seen {
		if counts[op] > bestCount {
			best = op
			bestCount = counts[op]
		}
	}

	return best
}

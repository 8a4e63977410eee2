package rule

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/thisisjab/rulezilla/rule/ast"
)

// Evaluate reports whether data satisfies the rule tree node.
//
// Both children of an operator are always evaluated, so a missing attribute
// is reported even when the other side already decides the result.
func Evaluate(node ast.Node, data map[string]any) (bool, error) {
	if !ast.IsValid(node) {
		return false, ErrInvalidAST
	}

	if data == nil {
		return false, ErrInvalidData
	}

	return evaluate(node, data)
}

func evaluate(node ast.Node, data map[string]any) (bool, error) {
	switch n := node.(type) {
	case ast.Operand:
		return compare(n, data)

	case ast.Operator:
		left, err := evaluate(n.Left, data)
		if err != nil {
			return false, err
		}

		right, err := evaluate(n.Right, data)
		if err != nil {
			return false, err
		}

		if n.Kind == ast.And {
			return left && right, nil
		}
		return left || right, nil

	default:
		return false, fmt.Errorf("%w: %T", ErrUnexpectedNodeType, node)
	}
}

func compare(n ast.Operand, data map[string]any) (bool, error) {
	value, ok := data[n.Attribute]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrMissingAttribute, n.Attribute)
	}

	// Objects have no scalar form and never satisfy a comparison.
	if _, ok := value.(map[string]any); ok {
		return false, nil
	}

	literal := strings.ReplaceAll(n.Literal, "'", "")

	switch n.Operator {
	case ast.Greater:
		c, ok := compareNumbers(value, literal)
		return ok && c > 0, nil
	case ast.Less:
		c, ok := compareNumbers(value, literal)
		return ok && c < 0, nil
	case ast.Equal:
		return stringify(value) == literal, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrInvalidOperator, n.Operator)
	}
}

// compareNumbers compares value with literal numerically. ok is false when
// either side has no numeric meaning.
func compareNumbers(value any, literal string) (int, bool) {
	rhs, ok := parseNumber(literal)
	if !ok {
		return 0, false
	}

	if f, isFloat := asFloat(value); isFloat {
		switch {
		case math.IsNaN(f):
			return 0, false
		case math.IsInf(f, 1):
			return 1, true
		case math.IsInf(f, -1):
			return -1, true
		}
	}

	lhs, ok := toDecimal(value)
	if !ok {
		return 0, false
	}

	return lhs.Cmp(rhs), true
}

// parseNumber converts text to a decimal. Blank text counts as zero.
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, true
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, true
	case decimal.Decimal:
		return v, true
	case json.Number:
		return parseNumber(v.String())
	case string:
		return parseNumber(v)
	case bool:
		if v {
			return decimal.NewFromInt(1), true
		}
		return decimal.Zero, true
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int8:
		return decimal.NewFromInt(int64(v)), true
	case int16:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(v)), 0), true
	case uint8:
		return decimal.NewFromInt(int64(v)), true
	case uint16:
		return decimal.NewFromInt(int64(v)), true
	case uint32:
		return decimal.NewFromInt(int64(v)), true
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0), true
	case []any:
		// A list is compared through its text form, so [40] is 40 while
		// [40, 50] is not a number.
		return parseNumber(stringify(v))
	default:
		return decimal.Decimal{}, false
	}
}

// stringify renders value the way it is compared by the '=' operator.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		if d, ok := parseNumber(v.String()); ok {
			return d.String()
		}
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case []any:
		// Elements are joined with commas; null elements are empty.
		parts := make([]string, len(v))
		for i, e := range v {
			if e != nil {
				parts[i] = stringify(e)
			}
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

package ast

import "fmt"

// Node is the interface that all nodes in a rule tree implement.
// It uses a private marker method so only Operand and Operator can be
// nodes, which makes the tree a closed sum type.
type Node interface {
	fmt.Stringer
	ruleNode()
}

// LogicalOperator joins the two children of an Operator node.
type LogicalOperator string

const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
)

func (o LogicalOperator) Valid() bool {
	return o == And || o == Or
}

// ComparisonOperator defines how an Operand compares an attribute with its
// literal.
type ComparisonOperator string

const (
	// Greater checks if the attribute is numerically greater than the literal.
	Greater ComparisonOperator = ">"
	// Less checks if the attribute is numerically less than the literal.
	Less ComparisonOperator = "<"
	// Equal checks if the attribute, as text, equals the literal.
	Equal ComparisonOperator = "="
)

func (o ComparisonOperator) Valid() bool {
	return o == Greater || o == Less || o == Equal
}

// Operand is a leaf node holding a single comparison such as `age > 30`.
type Operand struct {
	// Attribute is the key looked up in the evaluated data record.
	Attribute string

	Operator ComparisonOperator

	// Literal is the raw literal text. Single quotes of string literals are
	// kept and removed at evaluation time.
	Literal string
}

func (Operand) ruleNode() {}

func (n Operand) String() string {
	return fmt.Sprintf("%s %s %s", n.Attribute, n.Operator, n.Literal)
}

// Operator is an internal node combining Left and Right with Kind.
type Operator struct {
	Kind  LogicalOperator
	Left  Node
	Right Node
}

func (Operator) ruleNode() {}

func (n Operator) String() string {
	return fmt.Sprintf("(%s %s %s)", stringOf(n.Left), n.Kind, stringOf(n.Right))
}

func stringOf(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}

// IsValid reports whether node is a structurally sound tree. It never fails;
// any violation anywhere in the tree yields false. An operand may have an
// empty literal, which then only equals empty text.
func IsValid(node Node) bool {
	switch n := node.(type) {
	case Operator:
		return n.Kind.Valid() && IsValid(n.Left) && IsValid(n.Right)
	case Operand:
		return n.Attribute != "" && n.Operator.Valid()
	default:
		return false
	}
}

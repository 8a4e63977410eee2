package ast

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedNode is returned by Unmarshal when a node cannot be decoded at
// all. Nodes which decode but break the tree invariants are returned as is
// and rejected later by IsValid.
var ErrMalformedNode = errors.New("malformed rule node")

const (
	typeOperator = "operator"
	typeOperand  = "operand"
)

// wireNode is the serialized form of a node. For operands Value holds the
// packed "attribute operator literal" text, for operators it holds the kind.
// Children are decoded together with their parent in a single pass.
type wireNode struct {
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	Attribute string    `json:"attribute,omitempty"`
	Operator  string    `json:"operator,omitempty"`
	Literal   string    `json:"literal,omitempty"`
	Left      *wireNode `json:"left,omitempty"`
	Right     *wireNode `json:"right,omitempty"`
}

func (n Operand) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(n))
}

func (n Operator) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(n))
}

// toWire converts node and its descendants. A nil node has no wire form.
func toWire(node Node) *wireNode {
	switch n := node.(type) {
	case Operand:
		return &wireNode{
			Type:      typeOperand,
			Value:     n.String(),
			Attribute: n.Attribute,
			Operator:  string(n.Operator),
			Literal:   n.Literal,
		}
	case Operator:
		return &wireNode{
			Type:  typeOperator,
			Value: string(n.Kind),
			Left:  toWire(n.Left),
			Right: toWire(n.Right),
		}
	default:
		return nil
	}
}

// Unmarshal decodes a serialized tree produced by json.Marshal on a Node.
func Unmarshal(data []byte) (Node, error) {
	var w *wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedNode, err)
	}

	if w == nil {
		return nil, fmt.Errorf("%w: empty tree", ErrMalformedNode)
	}

	return w.node()
}

// node converts w and its descendants. Absent children stay nil so that
// IsValid reports them.
func (w *wireNode) node() (Node, error) {
	switch w.Type {
	case typeOperand:
		return w.operand(), nil

	case typeOperator:
		var left, right Node
		var err error

		if w.Left != nil {
			if left, err = w.Left.node(); err != nil {
				return nil, err
			}
		}

		if w.Right != nil {
			if right, err = w.Right.node(); err != nil {
				return nil, err
			}
		}

		return Operator{Kind: LogicalOperator(w.Value), Left: left, Right: right}, nil

	default:
		return nil, fmt.Errorf("%w: unknown node type %q", ErrMalformedNode, w.Type)
	}
}

func (w *wireNode) operand() Operand {
	if w.Attribute != "" || w.Operator != "" || w.Literal != "" {
		return Operand{
			Attribute: w.Attribute,
			Operator:  ComparisonOperator(w.Operator),
			Literal:   w.Literal,
		}
	}

	parts := strings.Split(w.Value, " ")
	if len(parts) != 3 {
		return Operand{}
	}

	return Operand{
		Attribute: parts[0],
		Operator:  ComparisonOperator(parts[1]),
		Literal:   parts[2],
	}
}

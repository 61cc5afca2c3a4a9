package models

// Operator is a comparison applied by a leaf condition.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorIn          Operator = "in"
	OperatorNotIn       Operator = "not_in"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
)

// BoolOp combines child conditions in a composite node.
type BoolOp string

const (
	BoolOpAnd BoolOp = "and"
	BoolOpOr  BoolOp = "or"
	BoolOpNot BoolOp = "not"
)

// Condition is one node of a declarative predicate tree. A node is either a
// leaf (Field/Operator/Value set, Op empty) or a composite (Op set with
// Children). Rule and guard condition lists are AND-combined; each element
// may itself be a composite, so nested boolean logic is expressed inside
// individual nodes rather than at the list level.
type Condition struct {
	// Composite form.
	Op       BoolOp      `json:"op,omitempty"`
	Children []Condition `json:"children,omitempty"`

	// Leaf form. Field is a dotted snapshot path such as "task.priority".
	Field    string   `json:"field,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`

	// Description is surfaced as the denial reason when a guard fails.
	Description string `json:"description,omitempty"`
}

// IsComposite reports whether the node combines children instead of
// comparing a snapshot field.
func (c Condition) IsComposite() bool {
	return c.Op != ""
}

// Describe returns the human-readable form used in denial reasons and logs.
func (c Condition) Describe() string {
	if c.Description != "" {
		return c.Description
	}

	if c.IsComposite() {
		return string(c.Op) + " condition"
	}

	return c.Field + " " + string(c.Operator)
}

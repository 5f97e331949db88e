package models

// Operator is the comparison applied by a single condition.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "notEquals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greaterThan"
	OperatorLessThan    Operator = "lessThan"
	OperatorBetween     Operator = "between"
	OperatorIn          Operator = "in"
	OperatorNotIn       Operator = "notIn"
)

// Combinator joins a condition to the running result of the ones before it.
type Combinator string

const (
	CombineAnd Combinator = "AND"
	CombineOr  Combinator = "OR"
)

// Condition is a field-level predicate evaluated against the run input.
// Field is a dot path such as "user.role".
type Condition struct {
	Field       string     `json:"field"                  validate:"required"`
	Operator    Operator   `json:"operator"               validate:"required,oneof=equals notEquals contains greaterThan lessThan between in notIn"`
	Value       any        `json:"value"`
	CombineWith Combinator `json:"combine_with,omitempty" validate:"omitempty,oneof=AND OR"`
}

package patch

import "fmt"

// Op is a patch operation tag. The set is closed: three verbs across five
// entity kinds. The string values are the wire format and must not change.
type Op string

const (
	OpAddState        Op = "add_state"
	OpUpdateState     Op = "update_state"
	OpRemoveState     Op = "remove_state"
	OpAddRelation     Op = "add_relation"
	OpUpdateRelation  Op = "update_relation"
	OpRemoveRelation  Op = "remove_relation"
	OpAddParameter    Op = "add_parameter"
	OpUpdateParameter Op = "update_parameter"
	OpRemoveParameter Op = "remove_parameter"
	OpAddEquation     Op = "add_equation"
	OpUpdateEquation  Op = "update_equation"
	OpRemoveEquation  Op = "remove_equation"
	OpAddScenario     Op = "add_scenario"
	OpUpdateScenario  Op = "update_scenario"
	OpRemoveScenario  Op = "remove_scenario"
)

// AllOps lists every operation tag in a stable order.
var AllOps = []Op{
	OpAddState, OpUpdateState, OpRemoveState,
	OpAddRelation, OpUpdateRelation, OpRemoveRelation,
	OpAddParameter, OpUpdateParameter, OpRemoveParameter,
	OpAddEquation, OpUpdateEquation, OpRemoveEquation,
	OpAddScenario, OpUpdateScenario, OpRemoveScenario,
}

// Valid reports whether op is one of the fifteen known operations.
func (op Op) Valid() bool {
	for _, known := range AllOps {
		if op == known {
			return true
		}
	}
	return false
}

// ParseOp converts a wire string into an Op, rejecting unknown tags.
func ParseOp(s string) (Op, error) {
	op := Op(s)
	if !op.Valid() {
		return "", fmt.Errorf("unknown operation: %q", s)
	}
	return op, nil
}

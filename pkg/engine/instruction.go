package engine

import (
	"fmt"

	"github.com/dshills/fableflow/pkg/flow"
)

// Change records one successful variable mutation made by an instruction.
type Change struct {
	VariableRef string      `json:"variable_ref"`
	OldValue    interface{} `json:"old_value"`
	NewValue    interface{} `json:"new_value"`
	Operator    string      `json:"operator"`
}

// InstructionError records one non-fatal resolution failure during
// instruction execution. Execution continues with the next assignment.
type InstructionError struct {
	VariableRef string `json:"variable_ref"`
	Reason      string `json:"reason"`
}

// Error implements the error interface.
func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction error [%s]: %s", e.VariableRef, e.Reason)
}

// ExecuteAssignments applies assignments to the environment strictly in list
// order; each assignment sees the mutations of all prior ones. Incomplete
// assignments are silently skipped. A complete assignment whose target or
// source variable is absent produces one error and leaves the environment
// unchanged for that assignment. The environment is mutated in place and
// returned.
func ExecuteAssignments(assignments []*flow.Assignment, vars flow.Environment) (flow.Environment, []Change, []*InstructionError) {
	var changes []Change
	var errs []*InstructionError

	for _, a := range assignments {
		if !a.IsComplete() {
			continue
		}

		ref := a.Ref()
		entry, ok := vars.Get(ref)
		if !ok {
			errs = append(errs, &InstructionError{
				VariableRef: ref,
				Reason:      fmt.Sprintf("variable %s not found", ref),
			})
			continue
		}

		// Resolve the operand: a literal, or the current value of a source
		// variable in the (possibly already-mutated) environment.
		operand := a.Value
		if a.ValueType == flow.ValueVariableRef {
			source, ok := vars.Get(a.SourceRef())
			if !ok {
				errs = append(errs, &InstructionError{
					VariableRef: a.SourceRef(),
					Reason:      fmt.Sprintf("variable %s not found", a.SourceRef()),
				})
				continue
			}
			operand = source.Value
		}

		newValue, apply := applyOperator(entry, a.Operator, operand)
		if !apply {
			continue
		}

		oldValue := entry.Value
		if err := vars.Set(ref, newValue, flow.SourceInstruction); err != nil {
			// Unreachable: presence was checked above.
			continue
		}
		changes = append(changes, Change{
			VariableRef: ref,
			OldValue:    oldValue,
			NewValue:    newValue,
			Operator:    a.Operator,
		})
	}

	return vars, changes, errs
}

// ExecuteAssignmentString decodes a JSON-encoded assignment list and applies
// it. Empty input, legacy instruction text and invalid JSON execute as an
// empty list.
func ExecuteAssignmentString(raw string, vars flow.Environment) (flow.Environment, []Change, []*InstructionError) {
	return ExecuteAssignments(flow.ParseAssignmentString(raw), vars)
}

// applyOperator computes the new value for an assignment. apply is false
// when the operator does not mutate (unknown operator, set_if_unset on a
// present value, non-numeric operand for a numeric set).
func applyOperator(entry *flow.VariableEntry, operator string, operand interface{}) (interface{}, bool) {
	switch entry.BlockType {
	case flow.BlockTypeNumber:
		return applyNumberOperator(entry, operator, operand)
	case flow.BlockTypeBoolean:
		return applyBooleanOperator(entry, operator, operand)
	case flow.BlockTypeText, flow.BlockTypeRichText:
		return applyTextOperator(entry, operator, operand)
	case flow.BlockTypeSelect, flow.BlockTypeMultiSelect, flow.BlockTypeDate:
		return applyScalarOperator(entry, operator, operand)
	default:
		return nil, false
	}
}

func applyNumberOperator(entry *flow.VariableEntry, operator string, operand interface{}) (interface{}, bool) {
	switch operator {
	case flow.OpSet:
		value, ok := toNumber(operand)
		if !ok {
			return nil, false
		}
		return value, true
	case flow.OpSetIfUnset:
		if entry.Value != nil {
			return nil, false
		}
		value, ok := toNumber(operand)
		if !ok {
			return nil, false
		}
		return value, true
	case flow.OpAdd, flow.OpSubtract:
		// Non-numeric operands and current values default to 0.
		current, _ := toNumber(entry.Value)
		delta, _ := toNumber(operand)
		if operator == flow.OpSubtract {
			delta = -delta
		}
		return current + delta, true
	default:
		return nil, false
	}
}

func applyBooleanOperator(entry *flow.VariableEntry, operator string, operand interface{}) (interface{}, bool) {
	switch operator {
	case flow.OpSetTrue:
		return true, true
	case flow.OpSetFalse:
		return false, true
	case flow.OpToggle:
		current, _ := entry.Value.(bool)
		return !current, true
	case flow.OpSetIfUnset:
		if entry.Value != nil {
			return nil, false
		}
		value, ok := operand.(bool)
		if !ok {
			return nil, false
		}
		return value, true
	default:
		return nil, false
	}
}

func applyTextOperator(entry *flow.VariableEntry, operator string, operand interface{}) (interface{}, bool) {
	switch operator {
	case flow.OpSet:
		value, ok := toString(operand)
		if !ok {
			return nil, false
		}
		return value, true
	case flow.OpClear:
		return nil, true
	case flow.OpSetIfUnset:
		if entry.Value != nil {
			return nil, false
		}
		value, ok := toString(operand)
		if !ok {
			return nil, false
		}
		return value, true
	default:
		return nil, false
	}
}

// applyScalarOperator covers select, multi_select and date variables, whose
// assignments replace the value wholesale.
func applyScalarOperator(entry *flow.VariableEntry, operator string, operand interface{}) (interface{}, bool) {
	switch operator {
	case flow.OpSet:
		return operand, true
	case flow.OpClear:
		return nil, true
	case flow.OpSetIfUnset:
		if entry.Value != nil {
			return nil, false
		}
		return operand, true
	default:
		return nil, false
	}
}

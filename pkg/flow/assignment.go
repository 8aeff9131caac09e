package flow

import (
	"github.com/tidwall/gjson"
)

// ValueType distinguishes how an assignment's value field is interpreted.
type ValueType string

const (
	// ValueLiteral means the value field holds the operand itself.
	ValueLiteral ValueType = "literal"
	// ValueVariableRef means the value field names a source variable whose
	// current value becomes the operand. The source sheet is ValueSheet.
	ValueVariableRef ValueType = "variable_ref"
)

// Assignment operators. Which operators apply depends on the target
// variable's block type.
const (
	OpSet        = "set"
	OpSetIfUnset = "set_if_unset"
	OpAdd        = "add"
	OpSubtract   = "subtract"
	OpSetTrue    = "set_true"
	OpSetFalse   = "set_false"
	OpToggle     = "toggle"
	OpClear      = "clear"
)

// operandlessOps apply without an operand value.
var operandlessOps = map[string]bool{
	OpSetTrue:  true,
	OpSetFalse: true,
	OpToggle:   true,
	OpClear:    true,
}

// Assignment is one ordered mutation of a target variable.
type Assignment struct {
	ID         string      `json:"id" yaml:"id,omitempty"`
	Sheet      string      `json:"sheet" yaml:"sheet"`
	Variable   string      `json:"variable" yaml:"variable"`
	Operator   string      `json:"operator" yaml:"operator"`
	Value      interface{} `json:"value,omitempty" yaml:"value,omitempty"`
	ValueType  ValueType   `json:"value_type,omitempty" yaml:"value_type,omitempty"`
	ValueSheet string      `json:"value_sheet,omitempty" yaml:"value_sheet,omitempty"`
}

// IsComplete reports whether the assignment can be applied. Incomplete
// assignments are silently skipped by the executor: they appear in neither
// the change list nor the error list.
func (a *Assignment) IsComplete() bool {
	if a == nil || a.Sheet == "" || a.Variable == "" || a.Operator == "" {
		return false
	}
	if operandlessOps[a.Operator] {
		return true
	}
	if a.ValueType == ValueVariableRef {
		name, ok := a.Value.(string)
		return a.ValueSheet != "" && ok && name != ""
	}
	return a.Value != nil
}

// Ref returns the environment key of the assignment's target variable.
func (a *Assignment) Ref() string {
	return RefKey(a.Sheet, a.Variable)
}

// SourceRef returns the environment key of the source variable for a
// variable_ref assignment. Only meaningful when ValueType is variable_ref.
func (a *Assignment) SourceRef() string {
	name, _ := a.Value.(string)
	return RefKey(a.ValueSheet, name)
}

// ParseAssignmentString decodes a JSON-encoded assignment list. Empty input,
// non-JSON input (legacy instruction text) and non-array documents all decode
// to an empty list, mirroring how absent conditions are handled.
func ParseAssignmentString(raw string) []*Assignment {
	if raw == "" || !gjson.Valid(raw) {
		return nil
	}
	doc := gjson.Parse(raw)
	if !doc.IsArray() {
		return nil
	}
	var assignments []*Assignment
	for _, a := range doc.Array() {
		assignments = append(assignments, &Assignment{
			ID:         a.Get("id").String(),
			Sheet:      a.Get("sheet").String(),
			Variable:   a.Get("variable").String(),
			Operator:   a.Get("operator").String(),
			Value:      a.Get("value").Value(),
			ValueType:  ValueType(a.Get("value_type").String()),
			ValueSheet: a.Get("value_sheet").String(),
		})
	}
	return assignments
}

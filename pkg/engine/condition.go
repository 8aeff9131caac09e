package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/fableflow/pkg/flow"
)

// RuleResult records the outcome of one evaluated condition rule, for the
// debugger's rule inspector.
type RuleResult struct {
	RuleID        string      `json:"rule_id"`
	Passed        bool        `json:"passed"`
	VariableRef   string      `json:"variable_ref"`
	Operator      string      `json:"operator"`
	ExpectedValue interface{} `json:"expected_value"`
	ActualValue   interface{} `json:"actual_value"`
}

// EvaluateCondition evaluates a boolean rule tree against the variable
// environment. A nil or empty tree evaluates to (true, nil): the absence of
// a condition never blocks execution. Incomplete rules are skipped and do
// not affect the combinator.
func EvaluateCondition(tree *flow.ConditionTree, vars flow.Environment) (bool, []RuleResult) {
	if tree.IsEmpty() {
		return true, nil
	}

	if len(tree.Entries) == 0 {
		return evaluateRules(tree.Logic, tree.Rules, vars)
	}

	var results []RuleResult
	passed := tree.Logic == flow.LogicAll
	evaluated := false
	for _, entry := range tree.Entries {
		entryPassed, entryResults, ok := evaluateEntry(entry, vars)
		results = append(results, entryResults...)
		if !ok {
			continue
		}
		evaluated = true
		if tree.Logic == flow.LogicAny {
			passed = passed || entryPassed
		} else {
			passed = passed && entryPassed
		}
	}
	// All entries vacuous: all-logic passes, any-logic fails.
	if !evaluated {
		passed = tree.Logic == flow.LogicAll
	}
	return passed, results
}

// evaluateEntry evaluates one block or group. ok is false when the entry
// produced no evaluable rules and should not affect the parent combinator.
func evaluateEntry(entry flow.TreeEntry, vars flow.Environment) (bool, []RuleResult, bool) {
	switch e := entry.(type) {
	case *flow.Block:
		passed, results := evaluateRules(e.Logic, e.Rules, vars)
		return passed, results, len(results) > 0
	case *flow.Group:
		var results []RuleResult
		passed := e.Logic == flow.LogicAll
		evaluated := false
		for _, block := range e.Blocks {
			blockPassed, blockResults := evaluateRules(block.Logic, block.Rules, vars)
			results = append(results, blockResults...)
			if len(blockResults) == 0 {
				continue
			}
			evaluated = true
			if e.Logic == flow.LogicAny {
				passed = passed || blockPassed
			} else {
				passed = passed && blockPassed
			}
		}
		if !evaluated {
			passed = e.Logic == flow.LogicAll
		}
		return passed, results, evaluated
	default:
		return false, nil, false
	}
}

// evaluateRules combines a rule list under one logic mode. Incomplete rules
// produce no result and do not affect the outcome.
func evaluateRules(logic flow.Logic, rules []*flow.Rule, vars flow.Environment) (bool, []RuleResult) {
	var results []RuleResult
	passed := logic == flow.LogicAll
	evaluated := false
	for _, rule := range rules {
		if !rule.IsComplete() {
			continue
		}
		result := evaluateRule(rule, vars)
		results = append(results, result)
		evaluated = true
		if logic == flow.LogicAny {
			passed = passed || result.Passed
		} else {
			passed = passed && result.Passed
		}
	}
	if !evaluated {
		passed = logic == flow.LogicAll
	}
	return passed, results
}

// EvaluateConditionString decodes a JSON-encoded condition tree and
// evaluates it. Empty input, legacy plain-text conditions and invalid JSON
// evaluate to (true, nil).
func EvaluateConditionString(raw string, vars flow.Environment) (bool, []RuleResult) {
	return EvaluateCondition(flow.ParseConditionString(raw), vars)
}

// evaluateRule evaluates one complete rule against the environment.
//
// Missing-variable policy: is_nil passes for an absent variable; every other
// operator fails closed, since the declared block type is unknowable without
// an entry.
func evaluateRule(rule *flow.Rule, vars flow.Environment) RuleResult {
	result := RuleResult{
		RuleID:        rule.ID,
		VariableRef:   rule.Ref(),
		Operator:      rule.Operator,
		ExpectedValue: rule.Value,
	}

	entry, ok := vars.Get(rule.Ref())
	if !ok {
		result.ActualValue = nil
		result.Passed = rule.Operator == "is_nil"
		return result
	}

	result.ActualValue = entry.Value

	// is_nil applies to every block type.
	if rule.Operator == "is_nil" {
		result.Passed = entry.Value == nil
		return result
	}

	switch entry.BlockType {
	case flow.BlockTypeNumber:
		result.Passed = evaluateNumberRule(rule.Operator, entry.Value, rule.Value)
	case flow.BlockTypeBoolean:
		result.Passed = evaluateBooleanRule(rule.Operator, entry.Value)
	case flow.BlockTypeText, flow.BlockTypeRichText:
		result.Passed = evaluateTextRule(rule.Operator, entry.Value, rule.Value)
	case flow.BlockTypeSelect:
		result.Passed = evaluateSelectRule(rule.Operator, entry.Value, rule.Value)
	case flow.BlockTypeMultiSelect:
		result.Passed = evaluateMultiSelectRule(rule.Operator, entry.Value, rule.Value)
	case flow.BlockTypeDate:
		result.Passed = evaluateDateRule(rule.Operator, entry.Value, rule.Value)
	default:
		result.Passed = false
	}
	return result
}

// evaluateNumberRule compares numeric values. A non-numeric actual value
// makes every comparison fail rather than error.
func evaluateNumberRule(operator string, actual, expected interface{}) bool {
	actualNum, ok := toNumber(actual)
	if !ok {
		return false
	}
	expectedNum, ok := toNumber(expected)
	if !ok {
		return false
	}
	switch operator {
	case "equals":
		return actualNum == expectedNum
	case "not_equals":
		return actualNum != expectedNum
	case "greater_than":
		return actualNum > expectedNum
	case "greater_than_or_equal":
		return actualNum >= expectedNum
	case "less_than":
		return actualNum < expectedNum
	case "less_than_or_equal":
		return actualNum <= expectedNum
	default:
		return false
	}
}

func evaluateBooleanRule(operator string, actual interface{}) bool {
	value, isBool := actual.(bool)
	switch operator {
	case "is_true":
		return isBool && value
	case "is_false":
		return isBool && !value
	default:
		return false
	}
}

// evaluateTextRule compares text values. contains with an empty needle
// fails; is_empty passes for nil or "".
func evaluateTextRule(operator string, actual, expected interface{}) bool {
	if operator == "is_empty" {
		return actual == nil || actual == ""
	}
	actualStr, ok := toString(actual)
	if !ok {
		return false
	}
	expectedStr, _ := toString(expected)
	switch operator {
	case "equals":
		return actualStr == expectedStr
	case "not_equals":
		return actualStr != expectedStr
	case "contains":
		return expectedStr != "" && strings.Contains(actualStr, expectedStr)
	case "starts_with":
		return strings.HasPrefix(actualStr, expectedStr)
	case "ends_with":
		return strings.HasSuffix(actualStr, expectedStr)
	default:
		return false
	}
}

func evaluateSelectRule(operator string, actual, expected interface{}) bool {
	actualStr, actualOK := toString(actual)
	expectedStr, _ := toString(expected)
	switch operator {
	case "equals":
		return actualOK && actualStr == expectedStr
	case "not_equals":
		return actualOK && actualStr != expectedStr
	default:
		return false
	}
}

// evaluateMultiSelectRule checks list membership. A non-list actual value
// makes contains false.
func evaluateMultiSelectRule(operator string, actual, expected interface{}) bool {
	list, isList := actual.([]interface{})
	switch operator {
	case "is_empty":
		return actual == nil || (isList && len(list) == 0)
	case "contains":
		return isList && listContains(list, expected)
	case "not_contains":
		return isList && !listContains(list, expected)
	default:
		return false
	}
}

func listContains(list []interface{}, value interface{}) bool {
	want, _ := toString(value)
	for _, item := range list {
		if got, ok := toString(item); ok && got == want {
			return true
		}
	}
	return false
}

// evaluateDateRule compares ISO-8601 dates. Invalid date strings make every
// comparison false.
func evaluateDateRule(operator string, actual, expected interface{}) bool {
	actualTime, ok := toDate(actual)
	if !ok {
		return false
	}
	expectedTime, ok := toDate(expected)
	if !ok {
		return false
	}
	switch operator {
	case "equals":
		return actualTime.Equal(expectedTime)
	case "not_equals":
		return !actualTime.Equal(expectedTime)
	case "before":
		return actualTime.Before(expectedTime)
	case "after":
		return actualTime.After(expectedTime)
	default:
		return false
	}
}

// toNumber coerces a value to float64.
func toNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// toString coerces a scalar value to its string form.
func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	case nil:
		return "", false
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// dateFormats are tried in order when parsing a date value.
var dateFormats = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

func toDate(value interface{}) (time.Time, bool) {
	str, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, str); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignmentIsComplete(t *testing.T) {
	tests := []struct {
		name       string
		assignment *Assignment
		want       bool
	}{
		{
			name:       "nil assignment",
			assignment: nil,
			want:       false,
		},
		{
			name:       "missing sheet",
			assignment: &Assignment{Variable: "health", Operator: OpSet, Value: 1.0},
			want:       false,
		},
		{
			name:       "missing operator",
			assignment: &Assignment{Sheet: "player", Variable: "health", Value: 1.0},
			want:       false,
		},
		{
			name:       "literal set with value",
			assignment: &Assignment{Sheet: "player", Variable: "health", Operator: OpSet, Value: 1.0},
			want:       true,
		},
		{
			name:       "literal set without value",
			assignment: &Assignment{Sheet: "player", Variable: "health", Operator: OpSet},
			want:       false,
		},
		{
			name:       "operandless toggle without value",
			assignment: &Assignment{Sheet: "player", Variable: "alive", Operator: OpToggle},
			want:       true,
		},
		{
			name:       "operandless clear without value",
			assignment: &Assignment{Sheet: "player", Variable: "title", Operator: OpClear},
			want:       true,
		},
		{
			name: "variable_ref with source sheet and name",
			assignment: &Assignment{
				Sheet: "player", Variable: "health", Operator: OpSet,
				ValueType: ValueVariableRef, ValueSheet: "npc", Value: "strength",
			},
			want: true,
		},
		{
			name: "variable_ref without source sheet",
			assignment: &Assignment{
				Sheet: "player", Variable: "health", Operator: OpSet,
				ValueType: ValueVariableRef, Value: "strength",
			},
			want: false,
		},
		{
			name: "variable_ref with non-string value",
			assignment: &Assignment{
				Sheet: "player", Variable: "health", Operator: OpSet,
				ValueType: ValueVariableRef, ValueSheet: "npc", Value: 7,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.assignment.IsComplete())
		})
	}
}

func TestParseAssignmentString(t *testing.T) {
	raw := `[
		{"id":"a1","sheet":"player","variable":"health","operator":"set","value":100},
		{"id":"a2","sheet":"player","variable":"gold","operator":"add","value":5,"value_type":"literal"},
		{"id":"a3","sheet":"player","variable":"health","operator":"set","value":"strength","value_type":"variable_ref","value_sheet":"npc"}
	]`

	assignments := ParseAssignmentString(raw)
	require.Len(t, assignments, 3)

	assert.Equal(t, "player.health", assignments[0].Ref())
	assert.Equal(t, OpSet, assignments[0].Operator)
	assert.Equal(t, float64(100), assignments[0].Value)

	assert.Equal(t, ValueLiteral, assignments[1].ValueType)
	assert.Equal(t, OpAdd, assignments[1].Operator)

	assert.Equal(t, ValueVariableRef, assignments[2].ValueType)
	assert.Equal(t, "npc.strength", assignments[2].SourceRef())
}

func TestParseAssignmentStringTolerant(t *testing.T) {
	assert.Nil(t, ParseAssignmentString(""))
	assert.Nil(t, ParseAssignmentString("give the player some gold"))
	assert.Nil(t, ParseAssignmentString(`{"sheet":"player"}`))
}

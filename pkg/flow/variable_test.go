package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvironment() Environment {
	return NewEnvironment(map[string]*VariableEntry{
		"player.health": {Value: 100.0, BlockType: BlockTypeNumber, SheetShortcut: "player", VariableName: "health"},
		"player.alive":  {Value: true, BlockType: BlockTypeBoolean, SheetShortcut: "player", VariableName: "alive"},
		"player.title":  {Value: nil, BlockType: BlockTypeText, SheetShortcut: "player", VariableName: "title"},
	})
}

func TestNewEnvironmentCapturesInitialValues(t *testing.T) {
	env := testEnvironment()

	entry, ok := env.Get("player.health")
	require.True(t, ok)
	assert.Equal(t, 100.0, entry.Value)
	assert.Equal(t, 100.0, entry.InitialValue)
	assert.Equal(t, SourceInitial, entry.Source)
}

func TestEnvironmentGetDistinguishesAbsentFromNil(t *testing.T) {
	env := testEnvironment()

	entry, ok := env.Get("player.title")
	require.True(t, ok)
	assert.Nil(t, entry.Value)

	entry, ok = env.Get("player.mana")
	assert.False(t, ok)
	assert.Nil(t, entry)
}

func TestEnvironmentSetShiftsPreviousValue(t *testing.T) {
	env := testEnvironment()

	require.NoError(t, env.Set("player.health", 80.0, SourceInstruction))

	entry, ok := env.Get("player.health")
	require.True(t, ok)
	assert.Equal(t, 80.0, entry.Value)
	assert.Equal(t, 100.0, entry.PreviousValue)
	assert.Equal(t, 100.0, entry.InitialValue)
	assert.Equal(t, SourceInstruction, entry.Source)
}

func TestEnvironmentSetNeverCreates(t *testing.T) {
	env := testEnvironment()

	err := env.Set("player.mana", 50.0, SourceInstruction)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVariableNotFound)

	_, ok := env.Get("player.mana")
	assert.False(t, ok)
}

func TestEnvironmentCloneIsolation(t *testing.T) {
	env := testEnvironment()
	clone := env.Clone()

	require.NoError(t, env.Set("player.health", 10.0, SourceInstruction))

	entry, ok := clone.Get("player.health")
	require.True(t, ok)
	assert.Equal(t, 100.0, entry.Value)
}

func TestVariableEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   VariableEntry
		wantErr bool
	}{
		{
			name:  "valid entry",
			entry: VariableEntry{VariableName: "health", BlockType: BlockTypeNumber},
		},
		{
			name:    "empty name",
			entry:   VariableEntry{BlockType: BlockTypeNumber},
			wantErr: true,
		},
		{
			name:    "name starting with digit",
			entry:   VariableEntry{VariableName: "1up", BlockType: BlockTypeNumber},
			wantErr: true,
		},
		{
			name:    "unknown block type",
			entry:   VariableEntry{VariableName: "health", BlockType: "integer"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package flow

import (
	"errors"
	"fmt"
	"regexp"
)

// BlockType identifies the value family of a variable. It determines which
// condition operators and assignment operators apply to the variable.
type BlockType string

const (
	// BlockTypeNumber holds numeric values (stored as float64).
	BlockTypeNumber BlockType = "number"
	// BlockTypeBoolean holds true/false values.
	BlockTypeBoolean BlockType = "boolean"
	// BlockTypeText holds plain text values.
	BlockTypeText BlockType = "text"
	// BlockTypeRichText holds formatted text values (same operator family as text).
	BlockTypeRichText BlockType = "rich_text"
	// BlockTypeSelect holds a single choice from a fixed option set.
	BlockTypeSelect BlockType = "select"
	// BlockTypeMultiSelect holds a list of choices.
	BlockTypeMultiSelect BlockType = "multi_select"
	// BlockTypeDate holds date values as ISO-8601 strings.
	BlockTypeDate BlockType = "date"
)

// validBlockTypes are the allowed variable block types.
var validBlockTypes = map[BlockType]bool{
	BlockTypeNumber:      true,
	BlockTypeBoolean:     true,
	BlockTypeText:        true,
	BlockTypeRichText:    true,
	BlockTypeSelect:      true,
	BlockTypeMultiSelect: true,
	BlockTypeDate:        true,
}

// VariableSource records what last mutated a variable entry.
type VariableSource string

const (
	// SourceInitial marks a value untouched since session start.
	SourceInitial VariableSource = "initial"
	// SourceInstruction marks a value written by an instruction assignment.
	SourceInstruction VariableSource = "instruction"
	// SourceUserOverride marks a value set manually from the debugger.
	SourceUserOverride VariableSource = "user_override"
)

// VariableEntry is one typed variable in the environment. Entries carry their
// full provenance so a debugger can show where a value came from and what it
// was before the last mutation.
type VariableEntry struct {
	Value         interface{}    `json:"value"`
	InitialValue  interface{}    `json:"initial_value"`
	PreviousValue interface{}    `json:"previous_value"`
	Source        VariableSource `json:"source"`
	BlockType     BlockType      `json:"block_type"`
	SheetShortcut string         `json:"sheet_shortcut"`
	VariableName  string         `json:"variable_name"`
}

// validVariableNameRegex matches valid variable names (letter first, then
// alphanumeric and underscore).
var validVariableNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Validate checks if the variable entry is structurally valid.
func (e *VariableEntry) Validate() error {
	if e.VariableName == "" {
		return errors.New("variable: empty variable name")
	}
	if !validVariableNameRegex.MatchString(e.VariableName) {
		return fmt.Errorf("variable: invalid variable name format: %s (must start with letter, contain only alphanumeric and underscore)", e.VariableName)
	}
	if e.BlockType == "" {
		return errors.New("variable: empty block type")
	}
	if !validBlockTypes[e.BlockType] {
		return fmt.Errorf("variable: invalid block type: %s", e.BlockType)
	}
	return nil
}

// RefKey builds the global environment key for a sheet/variable pair.
func RefKey(sheet, variable string) string {
	return sheet + "." + variable
}

// ErrVariableNotFound is returned when an environment operation targets a key
// that does not exist. The environment never creates keys after construction.
var ErrVariableNotFound = errors.New("variable not found")

// Environment is the typed variable store for one debug session, keyed by
// "<sheet>.<variable>". The key set is fixed at construction: Set only
// updates existing entries.
type Environment map[string]*VariableEntry

// NewEnvironment creates an environment from a set of entries. Each entry's
// initial value is captured and its source marked initial.
func NewEnvironment(entries map[string]*VariableEntry) Environment {
	env := make(Environment, len(entries))
	for key, entry := range entries {
		e := *entry
		e.InitialValue = entry.Value
		if e.Source == "" {
			e.Source = SourceInitial
		}
		env[key] = &e
	}
	return env
}

// Get retrieves a variable entry by its "<sheet>.<variable>" key.
// Returns (entry, true) if the variable exists, (nil, false) otherwise.
// An absent key is distinct from a present entry holding a nil value.
func (env Environment) Get(ref string) (*VariableEntry, bool) {
	entry, ok := env[ref]
	return entry, ok
}

// Set updates an existing variable entry in place. The current value shifts
// into PreviousValue; InitialValue, BlockType, SheetShortcut and VariableName
// are preserved. Setting an absent key is an error, never a creation.
func (env Environment) Set(ref string, value interface{}, source VariableSource) error {
	entry, ok := env[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrVariableNotFound, ref)
	}
	entry.PreviousValue = entry.Value
	entry.Value = value
	entry.Source = source
	return nil
}

// Clone returns a deep copy of the environment. Entry values are shared (they
// are replaced wholesale on mutation, never edited in place), so copying the
// entry structs is sufficient for snapshot isolation.
func (env Environment) Clone() Environment {
	clone := make(Environment, len(env))
	for key, entry := range env {
		e := *entry
		clone[key] = &e
	}
	return clone
}

// Refs returns all environment keys. Order is unspecified.
func (env Environment) Refs() []string {
	refs := make([]string, 0, len(env))
	for key := range env {
		refs = append(refs, key)
	}
	return refs
}

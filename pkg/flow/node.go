package flow

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Node is the interface that all node types must implement.
type Node interface {
	GetID() string
	Type() string
	Validate() error
	MarshalJSON() ([]byte, error)
}

// Node type names as they appear in flow documents.
const (
	NodeTypeEntry       = "entry"
	NodeTypeExit        = "exit"
	NodeTypeDialogue    = "dialogue"
	NodeTypeCondition   = "condition"
	NodeTypeInstruction = "instruction"
	NodeTypeHub         = "hub"
	NodeTypeJump        = "jump"
	NodeTypeScene       = "scene"
	NodeTypeSubflow     = "subflow"
)

// ExitMode selects what an exit node does when reached.
type ExitMode string

const (
	// ExitModeTerminal ends execution. This is the default.
	ExitModeTerminal ExitMode = "terminal"
	// ExitModeFlowReference transfers execution to another flow.
	ExitModeFlowReference ExitMode = "flow_reference"
	// ExitModeCallerReturn returns execution to the calling flow.
	ExitModeCallerReturn ExitMode = "caller_return"
)

// EntryNode is the starting point of a flow.
type EntryNode struct {
	ID string `json:"id" yaml:"id"`
}

// GetID returns the node ID.
func (n *EntryNode) GetID() string { return n.ID }

// Type returns the node type.
func (n *EntryNode) Type() string { return NodeTypeEntry }

// Validate checks if the entry node is valid.
func (n *EntryNode) Validate() error {
	if n.ID == "" {
		return errors.New("entry node: empty node ID")
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling.
func (n *EntryNode) MarshalJSON() ([]byte, error) {
	return marshalNode(n.ID, NodeTypeEntry, nil)
}

// ExitNode is an exit point of a flow. Depending on its mode it terminates
// execution, jumps to a referenced flow, or returns to the caller.
type ExitNode struct {
	ID               string   `json:"id" yaml:"id"`
	Mode             ExitMode `json:"exit_mode,omitempty" yaml:"exit_mode,omitempty"`
	ReferencedFlowID string   `json:"referenced_flow_id,omitempty" yaml:"referenced_flow_id,omitempty"`
}

// GetID returns the node ID.
func (n *ExitNode) GetID() string { return n.ID }

// Type returns the node type.
func (n *ExitNode) Type() string { return NodeTypeExit }

// ExitMode returns the node's mode, defaulting to terminal.
func (n *ExitNode) ExitMode() ExitMode {
	if n.Mode == "" {
		return ExitModeTerminal
	}
	return n.Mode
}

// Validate checks if the exit node is valid.
func (n *ExitNode) Validate() error {
	if n.ID == "" {
		return errors.New("exit node: empty node ID")
	}
	switch n.ExitMode() {
	case ExitModeTerminal, ExitModeFlowReference, ExitModeCallerReturn:
		return nil
	default:
		return fmt.Errorf("exit node %s: invalid exit mode %q", n.ID, n.Mode)
	}
}

// MarshalJSON implements custom JSON marshaling.
func (n *ExitNode) MarshalJSON() ([]byte, error) {
	return marshalNode(n.ID, NodeTypeExit, map[string]interface{}{
		"exit_mode":          n.ExitMode(),
		"referenced_flow_id": n.ReferencedFlowID,
	})
}

// DialogueResponse is one selectable response on a dialogue node. Its
// condition gates visibility; its instruction runs when the response is
// chosen. Instruction carries a legacy JSON-encoded assignment list and is
// only consulted when Assignments is empty.
type DialogueResponse struct {
	ID          string         `json:"id" yaml:"id"`
	Text        string         `json:"text,omitempty" yaml:"text,omitempty"`
	Condition   *ConditionTree `json:"-" yaml:"-"`
	Assignments []*Assignment  `json:"instruction_assignments,omitempty" yaml:"instruction_assignments,omitempty"`
	Instruction string         `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	// ConditionJSON holds a legacy JSON-encoded condition tree, consulted
	// only when Condition is nil.
	ConditionJSON string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Tree returns the response's gating condition, decoding the legacy JSON
// form if no structured tree is present. May return nil (always visible).
func (r *DialogueResponse) Tree() *ConditionTree {
	if r.Condition != nil {
		return r.Condition
	}
	return ParseConditionString(r.ConditionJSON)
}

// AssignmentList returns the response's instruction, preferring the
// structured assignment list over the legacy JSON-encoded string.
func (r *DialogueResponse) AssignmentList() []*Assignment {
	if len(r.Assignments) > 0 {
		return r.Assignments
	}
	return ParseAssignmentString(r.Instruction)
}

// DialogueNode presents speaker text and a set of conditional responses.
type DialogueNode struct {
	ID        string              `json:"id" yaml:"id"`
	Speaker   string              `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	Text      string              `json:"text,omitempty" yaml:"text,omitempty"`
	Responses []*DialogueResponse `json:"responses,omitempty" yaml:"responses,omitempty"`
}

// GetID returns the node ID.
func (n *DialogueNode) GetID() string { return n.ID }

// Type returns the node type.
func (n *DialogueNode) Type() string { return NodeTypeDialogue }

// Validate checks if the dialogue node is valid.
func (n *DialogueNode) Validate() error {
	if n.ID == "" {
		return errors.New("dialogue node: empty node ID")
	}
	seen := make(map[string]bool, len(n.Responses))
	for _, resp := range n.Responses {
		if resp.ID == "" {
			return fmt.Errorf("dialogue node %s: response with empty ID", n.ID)
		}
		if seen[resp.ID] {
			return fmt.Errorf("dialogue node %s: duplicate response ID %s", n.ID, resp.ID)
		}
		seen[resp.ID] = true
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling.
func (n *DialogueNode) MarshalJSON() ([]byte, error) {
	return marshalNode(n.ID, NodeTypeDialogue, map[string]interface{}{
		"speaker":   n.Speaker,
		"text":      n.Text,
		"responses": n.Responses,
	})
}

// ConditionNode branches on a boolean rule tree. In the default mode it
// follows the "true" or "false" pin. In switch mode each rule or block is an
// independent case and the first passing one selects the pin named by its ID.
type ConditionNode struct {
	ID         string         `json:"id" yaml:"id"`
	Condition  *ConditionTree `json:"-" yaml:"-"`
	SwitchMode bool           `json:"switch_mode,omitempty" yaml:"switch_mode,omitempty"`
	// ConditionJSON holds a legacy JSON-encoded condition tree, consulted
	// only when Condition is nil.
	ConditionJSON string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// GetID returns the node ID.
func (n *ConditionNode) GetID() string { return n.ID }

// Type returns the node type.
func (n *ConditionNode) Type() string { return NodeTypeCondition }

// Tree returns the node's condition tree, decoding the legacy JSON form if
// no structured tree is present. May return nil (no condition).
func (n *ConditionNode) Tree() *ConditionTree {
	if n.Condition != nil {
		return n.Condition
	}
	return ParseConditionString(n.ConditionJSON)
}

// Validate checks if the condition node is valid.
func (n *ConditionNode) Validate() error {
	if n.ID == "" {
		return errors.New("condition node: empty node ID")
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling.
func (n *ConditionNode) MarshalJSON() ([]byte, error) {
	return marshalNode(n.ID, NodeTypeCondition, map[string]interface{}{
		"switch_mode": n.SwitchMode,
		"condition":   n.ConditionJSON,
	})
}

// InstructionNode applies an ordered list of variable assignments and then
// continues through its default pin.
type InstructionNode struct {
	ID          string        `json:"id" yaml:"id"`
	Assignments []*Assignment `json:"assignments,omitempty" yaml:"assignments,omitempty"`
	// InstructionJSON holds a legacy JSON-encoded assignment list, consulted
	// only when Assignments is empty.
	InstructionJSON string `json:"instruction,omitempty" yaml:"instruction,omitempty"`
}

// GetID returns the node ID.
func (n *InstructionNode) GetID() string { return n.ID }

// Type returns the node type.
func (n *InstructionNode) Type() string { return NodeTypeInstruction }

// AssignmentList returns the node's assignments, decoding the legacy JSON
// form if no structured list is present.
func (n *InstructionNode) AssignmentList() []*Assignment {
	if len(n.Assignments) > 0 {
		return n.Assignments
	}
	return ParseAssignmentString(n.InstructionJSON)
}

// Validate checks if the instruction node is valid.
func (n *InstructionNode) Validate() error {
	if n.ID == "" {
		return errors.New("instruction node: empty node ID")
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling.
func (n *InstructionNode) MarshalJSON() ([]byte, error) {
	return marshalNode(n.ID, NodeTypeInstruction, map[string]interface{}{
		"assignments": n.Assignments,
	})
}

// HubNode is a named rendezvous point that jump nodes target by ID.
type HubNode struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// GetID returns the node ID.
func (n *HubNode) GetID() string { return n.ID }

// Type returns the node type.
func (n *HubNode) Type() string { return NodeTypeHub }

// Validate checks if the hub node is valid.
func (n *HubNode) Validate() error {
	if n.ID == "" {
		return errors.New("hub node: empty node ID")
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling.
func (n *HubNode) MarshalJSON() ([]byte, error) {
	return marshalNode(n.ID, NodeTypeHub, map[string]interface{}{"name": n.Name})
}

// JumpNode transfers execution directly to a hub node in the same flow,
// without traversing an edge.
type JumpNode struct {
	ID          string `json:"id" yaml:"id"`
	TargetHubID string `json:"target_hub_id,omitempty" yaml:"target_hub_id,omitempty"`
}

// GetID returns the node ID.
func (n *JumpNode) GetID() string { return n.ID }

// Type returns the node type.
func (n *JumpNode) Type() string { return NodeTypeJump }

// Validate checks if the jump node is valid.
func (n *JumpNode) Validate() error {
	if n.ID == "" {
		return errors.New("jump node: empty node ID")
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling.
func (n *JumpNode) MarshalJSON() ([]byte, error) {
	return marshalNode(n.ID, NodeTypeJump, map[string]interface{}{"target_hub_id": n.TargetHubID})
}

// SceneNode marks a scene change. It is a pass-through for execution.
type SceneNode struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// GetID returns the node ID.
func (n *SceneNode) GetID() string { return n.ID }

// Type returns the node type.
func (n *SceneNode) Type() string { return NodeTypeScene }

// Validate checks if the scene node is valid.
func (n *SceneNode) Validate() error {
	if n.ID == "" {
		return errors.New("scene node: empty node ID")
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling.
func (n *SceneNode) MarshalJSON() ([]byte, error) {
	return marshalNode(n.ID, NodeTypeScene, map[string]interface{}{"description": n.Description})
}

// SubflowNode transfers execution to another flow, expecting it to return
// through a caller_return exit.
type SubflowNode struct {
	ID               string `json:"id" yaml:"id"`
	ReferencedFlowID string `json:"referenced_flow_id,omitempty" yaml:"referenced_flow_id,omitempty"`
}

// GetID returns the node ID.
func (n *SubflowNode) GetID() string { return n.ID }

// Type returns the node type.
func (n *SubflowNode) Type() string { return NodeTypeSubflow }

// Validate checks if the subflow node is valid.
func (n *SubflowNode) Validate() error {
	if n.ID == "" {
		return errors.New("subflow node: empty node ID")
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling.
func (n *SubflowNode) MarshalJSON() ([]byte, error) {
	return marshalNode(n.ID, NodeTypeSubflow, map[string]interface{}{"referenced_flow_id": n.ReferencedFlowID})
}

// marshalNode serializes a node as {id, type, ...fields}.
func marshalNode(id, nodeType string, fields map[string]interface{}) ([]byte, error) {
	doc := make(map[string]interface{}, len(fields)+2)
	for key, value := range fields {
		doc[key] = value
	}
	doc["id"] = id
	doc["type"] = nodeType
	return json.Marshal(doc)
}

package flow

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/fableflow/pkg/domain/types"
)

// yamlFlow represents the YAML structure before conversion to domain objects.
type yamlFlow struct {
	ID          string           `yaml:"id,omitempty"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Start       string           `yaml:"start"`
	Sheets      []*Sheet         `yaml:"sheets,omitempty"`
	Nodes       []yamlNode       `yaml:"nodes,omitempty"`
	Connections []yamlConnection `yaml:"connections,omitempty"`
}

// yamlNode represents a node in YAML with type-specific fields.
type yamlNode struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`

	// ExitNode fields
	ExitMode         string `yaml:"exit_mode,omitempty"`
	ReferencedFlowID string `yaml:"referenced_flow_id,omitempty"`

	// DialogueNode fields
	Speaker   string         `yaml:"speaker,omitempty"`
	Text      string         `yaml:"text,omitempty"`
	Responses []yamlResponse `yaml:"responses,omitempty"`

	// ConditionNode fields
	Condition  *yamlCondition `yaml:"condition,omitempty"`
	SwitchMode bool           `yaml:"switch_mode,omitempty"`

	// InstructionNode fields
	Assignments []*Assignment `yaml:"assignments,omitempty"`

	// HubNode / SceneNode fields
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// JumpNode fields
	TargetHub string `yaml:"target_hub,omitempty"`
}

// yamlResponse represents a dialogue response in YAML.
type yamlResponse struct {
	ID          string         `yaml:"id"`
	Text        string         `yaml:"text,omitempty"`
	Condition   *yamlCondition `yaml:"condition,omitempty"`
	Assignments []*Assignment  `yaml:"assignments,omitempty"`
	Instruction string         `yaml:"instruction,omitempty"`
}

// yamlCondition represents a condition tree in YAML. Flat trees set rules,
// block trees set blocks.
type yamlCondition struct {
	Logic  string          `yaml:"logic,omitempty"`
	Rules  []*Rule         `yaml:"rules,omitempty"`
	Blocks []yamlTreeEntry `yaml:"blocks,omitempty"`
}

// yamlTreeEntry represents one blocks[] entry: a block, or a group when type
// is "group".
type yamlTreeEntry struct {
	Type   string          `yaml:"type,omitempty"`
	ID     string          `yaml:"id,omitempty"`
	Logic  string          `yaml:"logic,omitempty"`
	Label  string          `yaml:"label,omitempty"`
	Rules  []*Rule         `yaml:"rules,omitempty"`
	Blocks []yamlTreeEntry `yaml:"blocks,omitempty"`
}

// yamlConnection represents a pinned edge in YAML.
type yamlConnection struct {
	From    string `yaml:"from"`
	FromPin string `yaml:"from_pin,omitempty"`
	To      string `yaml:"to"`
	ToPin   string `yaml:"to_pin,omitempty"`
}

// Parse parses a flow from YAML bytes. JSON input also parses, since YAML is
// a superset of JSON.
func Parse(data []byte) (*Flow, error) {
	if len(data) == 0 {
		return nil, errors.New("empty flow input")
	}

	var yf yamlFlow
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return nil, fmt.Errorf("failed to parse flow document: %w", err)
	}

	if yf.Name == "" {
		return nil, errors.New("missing required field: name")
	}

	f := &Flow{
		ID:          yf.ID,
		Name:        yf.Name,
		Description: yf.Description,
		StartNodeID: yf.Start,
		Sheets:      yf.Sheets,
		Nodes:       make([]Node, 0, len(yf.Nodes)),
		Connections: make([]*Connection, 0, len(yf.Connections)),
	}
	if f.ID == "" {
		f.ID = types.NewFlowID().String()
	}

	for _, yn := range yf.Nodes {
		node, err := convertNode(yn)
		if err != nil {
			return nil, err
		}
		f.Nodes = append(f.Nodes, node)
		// An entry node doubles as the start node when none is declared.
		if f.StartNodeID == "" && node.Type() == NodeTypeEntry {
			f.StartNodeID = node.GetID()
		}
	}

	for _, yc := range yf.Connections {
		pin := yc.FromPin
		if pin == "" {
			pin = PinDefault
		}
		f.Connections = append(f.Connections, &Connection{
			SourceNodeID: yc.From,
			SourcePin:    pin,
			TargetNodeID: yc.To,
			TargetPin:    yc.ToPin,
		})
	}

	return f, nil
}

// LoadFromFile reads and parses a flow file.
func LoadFromFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	return Parse(data)
}

// Export renders a flow back into the authoring YAML document form.
func Export(f *Flow) ([]byte, error) {
	if f == nil {
		return nil, errors.New("cannot export nil flow")
	}

	yf := yamlFlow{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Start:       f.StartNodeID,
		Sheets:      f.Sheets,
	}

	for _, node := range f.Nodes {
		yn, err := exportNode(node)
		if err != nil {
			return nil, err
		}
		yf.Nodes = append(yf.Nodes, yn)
	}

	for _, conn := range f.Connections {
		pin := conn.SourcePin
		if pin == PinDefault {
			pin = ""
		}
		yf.Connections = append(yf.Connections, yamlConnection{
			From:    conn.SourceNodeID,
			FromPin: pin,
			To:      conn.TargetNodeID,
			ToPin:   conn.TargetPin,
		})
	}

	data, err := yaml.Marshal(&yf)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flow document: %w", err)
	}
	return data, nil
}

// SaveToFile exports a flow and writes it to a file.
func SaveToFile(f *Flow, path string) error {
	data, err := Export(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write flow file: %w", err)
	}
	return nil
}

func exportNode(node Node) (yamlNode, error) {
	switch n := node.(type) {
	case *EntryNode:
		return yamlNode{ID: n.ID, Type: NodeTypeEntry}, nil
	case *ExitNode:
		return yamlNode{ID: n.ID, Type: NodeTypeExit, ExitMode: string(n.Mode), ReferencedFlowID: n.ReferencedFlowID}, nil
	case *DialogueNode:
		yn := yamlNode{ID: n.ID, Type: NodeTypeDialogue, Speaker: n.Speaker, Text: n.Text}
		for _, resp := range n.Responses {
			yn.Responses = append(yn.Responses, yamlResponse{
				ID:          resp.ID,
				Text:        resp.Text,
				Condition:   exportCondition(resp.Condition),
				Assignments: resp.Assignments,
				Instruction: resp.Instruction,
			})
		}
		return yn, nil
	case *ConditionNode:
		return yamlNode{ID: n.ID, Type: NodeTypeCondition, Condition: exportCondition(n.Condition), SwitchMode: n.SwitchMode}, nil
	case *InstructionNode:
		return yamlNode{ID: n.ID, Type: NodeTypeInstruction, Assignments: n.Assignments}, nil
	case *HubNode:
		return yamlNode{ID: n.ID, Type: NodeTypeHub, Name: n.Name}, nil
	case *JumpNode:
		return yamlNode{ID: n.ID, Type: NodeTypeJump, TargetHub: n.TargetHubID}, nil
	case *SceneNode:
		return yamlNode{ID: n.ID, Type: NodeTypeScene, Description: n.Description}, nil
	case *SubflowNode:
		return yamlNode{ID: n.ID, Type: NodeTypeSubflow, ReferencedFlowID: n.ReferencedFlowID}, nil
	default:
		return yamlNode{}, fmt.Errorf("node %s: unknown node type: %s", node.GetID(), node.Type())
	}
}

func exportCondition(tree *ConditionTree) *yamlCondition {
	if tree.IsEmpty() {
		return nil
	}
	yc := &yamlCondition{
		Logic: string(tree.Logic),
		Rules: tree.Rules,
	}
	for _, entry := range tree.Entries {
		switch e := entry.(type) {
		case *Block:
			yc.Blocks = append(yc.Blocks, exportBlock(e))
		case *Group:
			ye := yamlTreeEntry{Type: "group", ID: e.ID, Logic: string(e.Logic)}
			for _, b := range e.Blocks {
				ye.Blocks = append(ye.Blocks, exportBlock(b))
			}
			yc.Blocks = append(yc.Blocks, ye)
		}
	}
	return yc
}

func exportBlock(b *Block) yamlTreeEntry {
	return yamlTreeEntry{
		ID:    b.ID,
		Logic: string(b.Logic),
		Label: b.Label,
		Rules: b.Rules,
	}
}

// convertNode converts a YAML node into its typed domain form.
func convertNode(yn yamlNode) (Node, error) {
	if yn.ID == "" {
		return nil, errors.New("node: missing required field: id")
	}
	switch yn.Type {
	case NodeTypeEntry:
		return &EntryNode{ID: yn.ID}, nil
	case NodeTypeExit:
		return &ExitNode{ID: yn.ID, Mode: ExitMode(yn.ExitMode), ReferencedFlowID: yn.ReferencedFlowID}, nil
	case NodeTypeDialogue:
		node := &DialogueNode{ID: yn.ID, Speaker: yn.Speaker, Text: yn.Text}
		for _, yr := range yn.Responses {
			node.Responses = append(node.Responses, &DialogueResponse{
				ID:          yr.ID,
				Text:        yr.Text,
				Condition:   convertCondition(yr.Condition),
				Assignments: yr.Assignments,
				Instruction: yr.Instruction,
			})
		}
		return node, nil
	case NodeTypeCondition:
		return &ConditionNode{ID: yn.ID, Condition: convertCondition(yn.Condition), SwitchMode: yn.SwitchMode}, nil
	case NodeTypeInstruction:
		return &InstructionNode{ID: yn.ID, Assignments: yn.Assignments}, nil
	case NodeTypeHub:
		return &HubNode{ID: yn.ID, Name: yn.Name}, nil
	case NodeTypeJump:
		return &JumpNode{ID: yn.ID, TargetHubID: yn.TargetHub}, nil
	case NodeTypeScene:
		return &SceneNode{ID: yn.ID, Description: yn.Description}, nil
	case NodeTypeSubflow:
		return &SubflowNode{ID: yn.ID, ReferencedFlowID: yn.ReferencedFlowID}, nil
	case "":
		return nil, fmt.Errorf("node %s: missing required field: type", yn.ID)
	default:
		return nil, fmt.Errorf("node %s: unknown node type: %s", yn.ID, yn.Type)
	}
}

// convertCondition converts a YAML condition into a sanitized tree. Groups
// nested inside groups are stripped here, at the parse boundary.
func convertCondition(yc *yamlCondition) *ConditionTree {
	if yc == nil {
		return nil
	}
	tree := &ConditionTree{
		Logic: normalizeLogic(yc.Logic),
		Rules: yc.Rules,
	}
	for _, ye := range yc.Blocks {
		if ye.Type == "group" {
			group := &Group{ID: ye.ID, Logic: normalizeLogic(ye.Logic)}
			for _, child := range ye.Blocks {
				if child.Type == "group" {
					continue
				}
				group.Blocks = append(group.Blocks, convertBlock(child))
			}
			tree.Entries = append(tree.Entries, group)
			continue
		}
		tree.Entries = append(tree.Entries, convertBlock(ye))
	}
	tree.Sanitize()
	return tree
}

func convertBlock(ye yamlTreeEntry) *Block {
	return &Block{
		ID:    ye.ID,
		Logic: normalizeLogic(ye.Logic),
		Label: ye.Label,
		Rules: ye.Rules,
	}
}

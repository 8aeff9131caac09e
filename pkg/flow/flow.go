// Package flow defines the narrative flow graph model: typed nodes, pinned
// connections, condition rule trees, instruction assignments, variable
// sheets, and the YAML/JSON parser that builds flows from authored documents.
package flow

import (
	"errors"
	"fmt"
)

// SheetVariable declares one variable in a sheet, with its block type and
// starting value.
type SheetVariable struct {
	Name         string      `json:"name" yaml:"name"`
	BlockType    BlockType   `json:"block_type" yaml:"block_type"`
	InitialValue interface{} `json:"initial_value,omitempty" yaml:"initial_value,omitempty"`
}

// Sheet is a named group of variable declarations. The shortcut prefixes
// every variable reference ("<shortcut>.<variable>").
type Sheet struct {
	Shortcut  string           `json:"shortcut" yaml:"shortcut"`
	Name      string           `json:"name,omitempty" yaml:"name,omitempty"`
	Variables []*SheetVariable `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// Flow is a branching narrative graph: typed nodes joined by pinned
// connections, plus the variable sheets its conditions and instructions
// operate on.
type Flow struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	StartNodeID string        `json:"start_node_id" yaml:"start_node_id"`
	Nodes       []Node        `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Connections []*Connection `json:"connections,omitempty" yaml:"connections,omitempty"`
	Sheets      []*Sheet      `json:"sheets,omitempty" yaml:"sheets,omitempty"`
}

// NodeByID returns the node with the given ID, or nil.
func (f *Flow) NodeByID(id string) Node {
	for _, node := range f.Nodes {
		if node.GetID() == id {
			return node
		}
	}
	return nil
}

// NodeMap builds a lookup map from node ID to node.
func (f *Flow) NodeMap() map[string]Node {
	nodes := make(map[string]Node, len(f.Nodes))
	for _, node := range f.Nodes {
		nodes[node.GetID()] = node
	}
	return nodes
}

// BuildEnvironment constructs the initial variable environment from the
// flow's sheet declarations.
func (f *Flow) BuildEnvironment() Environment {
	entries := make(map[string]*VariableEntry)
	for _, sheet := range f.Sheets {
		for _, v := range sheet.Variables {
			entries[RefKey(sheet.Shortcut, v.Name)] = &VariableEntry{
				Value:         v.InitialValue,
				BlockType:     v.BlockType,
				SheetShortcut: sheet.Shortcut,
				VariableName:  v.Name,
			}
		}
	}
	return NewEnvironment(entries)
}

// Validate checks the flow's structural invariants: node IDs are unique, the
// start node exists, connections reference known nodes, and no two
// connections share a source node and pin.
func (f *Flow) Validate() error {
	if f.Name == "" {
		return errors.New("flow: empty name")
	}
	if len(f.Nodes) == 0 {
		return errors.New("flow: no nodes")
	}

	nodeIDs := make(map[string]bool, len(f.Nodes))
	for _, node := range f.Nodes {
		if err := node.Validate(); err != nil {
			return fmt.Errorf("flow %s: %w", f.Name, err)
		}
		id := node.GetID()
		if nodeIDs[id] {
			return fmt.Errorf("flow %s: duplicate node ID %s", f.Name, id)
		}
		nodeIDs[id] = true
	}

	if f.StartNodeID == "" {
		return fmt.Errorf("flow %s: no start node", f.Name)
	}
	if !nodeIDs[f.StartNodeID] {
		return fmt.Errorf("flow %s: start node %s not found", f.Name, f.StartNodeID)
	}

	pins := make(map[string]bool, len(f.Connections))
	for _, conn := range f.Connections {
		if err := conn.Validate(); err != nil {
			return fmt.Errorf("flow %s: %w", f.Name, err)
		}
		if !nodeIDs[conn.SourceNodeID] {
			return fmt.Errorf("flow %s: connection from unknown node %s", f.Name, conn.SourceNodeID)
		}
		if !nodeIDs[conn.TargetNodeID] {
			return fmt.Errorf("flow %s: connection to unknown node %s", f.Name, conn.TargetNodeID)
		}
		key := conn.SourceNodeID + "\x00" + conn.SourcePin
		if pins[key] {
			return fmt.Errorf("flow %s: duplicate connection from node %s pin %s", f.Name, conn.SourceNodeID, conn.SourcePin)
		}
		pins[key] = true
	}

	return nil
}

package flow

import (
	"errors"
	"fmt"
)

// PinDefault is the pin name used by pass-through transitions and fallbacks.
const PinDefault = "default"

// Connection is a pinned edge between two nodes. A node's outgoing edges are
// selected by source pin: "default", "true"/"false" on condition nodes, a
// response ID on dialogue nodes, a case ID on switch-mode condition nodes.
type Connection struct {
	SourceNodeID string `json:"source_node_id" yaml:"from"`
	SourcePin    string `json:"source_pin" yaml:"from_pin,omitempty"`
	TargetNodeID string `json:"target_node_id" yaml:"to"`
	TargetPin    string `json:"target_pin,omitempty" yaml:"to_pin,omitempty"`
}

// Validate checks if the connection is valid.
func (c *Connection) Validate() error {
	if c.SourceNodeID == "" {
		return errors.New("connection: empty source node")
	}
	if c.TargetNodeID == "" {
		return errors.New("connection: empty target node")
	}
	if c.SourcePin == "" {
		return fmt.Errorf("connection: empty source pin on node %s", c.SourceNodeID)
	}
	return nil
}

// FindConnection returns the connection leaving node nodeID through the
// named pin, or nil when no such connection exists.
func FindConnection(connections []*Connection, nodeID, pin string) *Connection {
	for _, conn := range connections {
		if conn.SourceNodeID == nodeID && conn.SourcePin == pin {
			return conn
		}
	}
	return nil
}

// Package types defines core domain type aliases and identifiers for FableFlow.
package types

import "github.com/google/uuid"

// FlowID is a unique identifier for a narrative flow graph.
type FlowID string

// NodeID is a unique identifier for a node within a flow.
type NodeID string

// SessionID is a unique identifier for a debug session.
type SessionID string

// NewFlowID generates a new unique flow ID.
func NewFlowID() FlowID {
	return FlowID(uuid.NewString())
}

// String returns the string representation of a FlowID.
func (id FlowID) String() string {
	return string(id)
}

// NewSessionID generates a new unique session ID.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// String returns the string representation of a SessionID.
func (id SessionID) String() string {
	return string(id)
}

// IsZero returns true if the SessionID is the zero value.
func (id SessionID) IsZero() bool {
	return id == ""
}

package engine

import (
	"time"

	"github.com/dshills/fableflow/pkg/domain/types"
	"github.com/dshills/fableflow/pkg/flow"
)

// Status represents the current state of a debug session.
type Status string

const (
	// StatusPaused indicates the session is between steps.
	StatusPaused Status = "paused"
	// StatusWaitingInput indicates a dialogue node is waiting for a response
	// choice. Stepping resumes through ChooseResponse.
	StatusWaitingInput Status = "waiting_input"
	// StatusFinished indicates execution has ended, successfully or not.
	StatusFinished Status = "finished"
)

// ConsoleLevel classifies console entries for the debugger UI.
type ConsoleLevel string

const (
	// LevelInfo marks routine transition messages.
	LevelInfo ConsoleLevel = "info"
	// LevelWarning marks tolerated irregularities (skipped payloads,
	// fallback pins).
	LevelWarning ConsoleLevel = "warning"
	// LevelError marks failed transitions and resolution errors.
	LevelError ConsoleLevel = "error"
)

// ConsoleEntry is one human-readable line of the execution trace. Every
// transition, success or failure, appends one.
type ConsoleEntry struct {
	Level     ConsoleLevel `json:"level"`
	NodeID    string       `json:"node_id,omitempty"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
}

// HistoryEntry records one state-changing event for the history panel.
type HistoryEntry struct {
	NodeID    string    `json:"node_id,omitempty"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry is one execution-log record: the node visited and the call depth
// it was visited at. The log is kept newest-first.
type LogEntry struct {
	NodeID string `json:"node_id"`
	Depth  int    `json:"depth"`
}

// PendingResponse is one choice offered while waiting for dialogue input.
type PendingResponse struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Valid bool   `json:"valid"`
}

// PendingChoices describes the dialogue node the session is waiting on.
type PendingChoices struct {
	NodeID    string            `json:"node_id"`
	Responses []PendingResponse `json:"responses"`
}

// CallFrame captures everything needed to resume a caller flow after a
// subflow or flow reference finishes: the caller's graph, where to resume,
// and the execution path inside the caller.
type CallFrame struct {
	FlowID        string
	ReturnNodeID  string
	Nodes         map[string]flow.Node
	Connections   []*flow.Connection
	ExecutionPath []string
}

// State is the complete execution state of one debug session. It is mutated
// only through the engine operations; a snapshot of the pre-mutation state is
// pushed before every mutating operation so StepBack can undo it.
type State struct {
	SessionID     types.SessionID
	CurrentNodeID string
	StartNodeID   string
	CurrentFlowID string
	StartFlowID   string
	Status        Status

	Variables         flow.Environment
	InitialVariables  flow.Environment
	PreviousVariables flow.Environment

	History []HistoryEntry
	Console []ConsoleEntry
	// ExecutionPath lists every node ever made current, oldest first,
	// including the initial node.
	ExecutionPath []string
	// ExecutionLog mirrors the path newest-first with call depth.
	ExecutionLog []LogEntry

	StepCount int
	MaxSteps  int

	Snapshots   []*State
	Breakpoints map[string]bool
	CallStack   []CallFrame

	Pending *PendingChoices
}

// DefaultMaxSteps is the loop-protection ceiling used when Init is not given
// an explicit limit.
const DefaultMaxSteps = 1000

// snapshot returns a deep copy of the state suitable for the undo stack.
// The copy excludes the snapshot stack itself and shares the breakpoint set,
// since neither is rolled back by StepBack.
func (s *State) snapshot() *State {
	prev := &State{
		SessionID:         s.SessionID,
		CurrentNodeID:     s.CurrentNodeID,
		StartNodeID:       s.StartNodeID,
		CurrentFlowID:     s.CurrentFlowID,
		StartFlowID:       s.StartFlowID,
		Status:            s.Status,
		Variables:         s.Variables.Clone(),
		InitialVariables:  s.InitialVariables,
		PreviousVariables: s.PreviousVariables.Clone(),
		History:           append([]HistoryEntry(nil), s.History...),
		Console:           append([]ConsoleEntry(nil), s.Console...),
		ExecutionPath:     append([]string(nil), s.ExecutionPath...),
		ExecutionLog:      append([]LogEntry(nil), s.ExecutionLog...),
		StepCount:         s.StepCount,
		MaxSteps:          s.MaxSteps,
		CallStack:         append([]CallFrame(nil), s.CallStack...),
	}
	if s.Pending != nil {
		pending := *s.Pending
		pending.Responses = append([]PendingResponse(nil), s.Pending.Responses...)
		prev.Pending = &pending
	}
	return prev
}

// pushSnapshot records the pre-mutation state on the undo stack.
func (s *State) pushSnapshot() {
	s.Snapshots = append(s.Snapshots, s.snapshot())
}

// restore replaces the state's mutable fields with those of a snapshot.
// The snapshot stack (already popped by the caller) and the breakpoint set
// survive unchanged.
func (s *State) restore(prev *State) {
	s.CurrentNodeID = prev.CurrentNodeID
	s.CurrentFlowID = prev.CurrentFlowID
	s.Status = prev.Status
	s.Variables = prev.Variables
	s.PreviousVariables = prev.PreviousVariables
	s.History = prev.History
	s.Console = prev.Console
	s.ExecutionPath = prev.ExecutionPath
	s.ExecutionLog = prev.ExecutionLog
	s.StepCount = prev.StepCount
	s.CallStack = prev.CallStack
	s.Pending = prev.Pending
}

// logConsole appends a console entry.
func (s *State) logConsole(level ConsoleLevel, nodeID, message string) {
	s.Console = append(s.Console, ConsoleEntry{
		Level:     level,
		NodeID:    nodeID,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// logHistory appends a history entry.
func (s *State) logHistory(nodeID, event, detail string) {
	s.History = append(s.History, HistoryEntry{
		NodeID:    nodeID,
		Event:     event,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

// visit records a new current node in the path and the execution log.
func (s *State) visit(nodeID string) {
	s.CurrentNodeID = nodeID
	s.ExecutionPath = append(s.ExecutionPath, nodeID)
	s.ExecutionLog = append([]LogEntry{{NodeID: nodeID, Depth: len(s.CallStack)}}, s.ExecutionLog...)
}

// FailTransition finishes the session with an error-level console entry.
// Callers use this for resolution failures outside the engine, such as a
// referenced flow missing from the loaded set.
func (s *State) FailTransition(nodeID, reason string) {
	s.Status = StatusFinished
	s.logConsole(LevelError, nodeID, reason)
}

// HasBreakpoint reports whether a breakpoint is set on the node.
func (s *State) HasBreakpoint(nodeID string) bool {
	return s.Breakpoints[nodeID]
}

// AtBreakpoint reports whether the current node carries a breakpoint.
func (s *State) AtBreakpoint() bool {
	return s.HasBreakpoint(s.CurrentNodeID)
}

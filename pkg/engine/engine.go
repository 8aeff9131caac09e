// Package engine implements the deterministic flow interpreter and debugger:
// step-by-step execution of a node graph, condition and instruction
// evaluation against a typed variable environment, snapshot-based undo,
// breakpoints, loop protection, and a call stack for cross-flow transfers.
package engine

import (
	"fmt"

	"github.com/dshills/fableflow/pkg/domain/types"
	"github.com/dshills/fableflow/pkg/flow"
)

// Engine drives debug sessions. It holds no per-session state: every
// operation takes the session's State explicitly, so one engine can serve
// any number of sessions.
type Engine struct {
	logger *Logger
}

// NewEngine creates an execution engine with no debug logger.
func NewEngine() *Engine {
	return &Engine{}
}

// NewEngineWithLogger creates an engine that mirrors transitions to a debug
// logger (useful with --debug).
func NewEngineWithLogger(logger *Logger) *Engine {
	return &Engine{logger: logger}
}

// StepResultKind classifies what a Step call produced, mirroring the node
// outcome kinds plus the error terminal.
type StepResultKind string

const (
	// StepOK means the session advanced one node and is paused.
	StepOK StepResultKind = "ok"
	// StepWaitingInput means a dialogue node wants a response choice.
	StepWaitingInput StepResultKind = "waiting_input"
	// StepFinished means execution ended cleanly.
	StepFinished StepResultKind = "finished"
	// StepFlowJump means execution wants to transfer to another flow; the
	// caller should PushFlowContext and continue stepping there.
	StepFlowJump StepResultKind = "flow_jump"
	// StepFlowReturn means execution wants to return to the calling flow;
	// the caller should PopFlowContext and continue stepping there.
	StepFlowReturn StepResultKind = "flow_return"
	// StepError means execution terminated on a transition error.
	StepError StepResultKind = "error"
)

// StepResult is the outcome of one Step or ChooseResponse call.
type StepResult struct {
	Kind   StepResultKind
	FlowID string
	Reason string
}

// Init creates a fresh execution state positioned at the start node. The
// console is seeded with a session-start entry and the execution log with
// the start node at depth zero.
func (e *Engine) Init(vars flow.Environment, startNodeID, flowID string) *State {
	s := &State{
		SessionID:         types.NewSessionID(),
		CurrentNodeID:     startNodeID,
		StartNodeID:       startNodeID,
		CurrentFlowID:     flowID,
		StartFlowID:       flowID,
		Status:            StatusPaused,
		Variables:         vars.Clone(),
		InitialVariables:  vars.Clone(),
		PreviousVariables: vars.Clone(),
		ExecutionPath:     []string{startNodeID},
		ExecutionLog:      []LogEntry{{NodeID: startNodeID, Depth: 0}},
		MaxSteps:          DefaultMaxSteps,
		Breakpoints:       make(map[string]bool),
	}
	s.logConsole(LevelInfo, startNodeID, "Debug session started")
	return s
}

// Step executes the current node and applies its outcome. A snapshot of the
// pre-step state is pushed first, so the step can be undone with StepBack.
func (e *Engine) Step(s *State, g Graph) StepResult {
	if s.Status == StatusFinished {
		return StepResult{Kind: StepFinished, Reason: ErrAlreadyFinished.Error()}
	}
	if s.Status == StatusWaitingInput {
		return StepResult{Kind: StepWaitingInput}
	}

	s.pushSnapshot()
	s.PreviousVariables = s.Variables.Clone()
	s.StepCount++

	if s.StepCount > s.MaxSteps {
		s.Status = StatusFinished
		s.logConsole(LevelError, s.CurrentNodeID, fmt.Sprintf("Max steps exceeded (%d): possible infinite loop", s.MaxSteps))
		return StepResult{Kind: StepError, Reason: "max steps exceeded"}
	}

	node, ok := g.Nodes[s.CurrentNodeID]
	if !ok {
		s.Status = StatusFinished
		s.logConsole(LevelError, s.CurrentNodeID, fmt.Sprintf("Node %s not found in current flow", s.CurrentNodeID))
		return StepResult{Kind: StepError, Reason: fmt.Sprintf("node %s not found", s.CurrentNodeID)}
	}

	e.logStep(s, node)
	outcome := evaluateNode(node, s, g)
	return e.applyOutcome(s, outcome)
}

// ChooseResponse resumes a session waiting on a dialogue node by selecting
// one of its responses. The response's instruction runs and its pin is
// followed. Choosing a response whose condition failed, or calling this
// while not waiting, is a misuse error that leaves the state unchanged.
func (e *Engine) ChooseResponse(s *State, responseID string, g Graph) (StepResult, error) {
	if s.Status != StatusWaitingInput || s.Pending == nil {
		return StepResult{}, ErrNotWaitingInput
	}

	node, ok := g.Nodes[s.Pending.NodeID].(*flow.DialogueNode)
	if !ok {
		return StepResult{}, fmt.Errorf("dialogue node %s not found", s.Pending.NodeID)
	}
	resp := findResponse(node, responseID)
	if resp == nil {
		return StepResult{}, fmt.Errorf("response %s not found on node %s", responseID, node.ID)
	}
	for _, pending := range s.Pending.Responses {
		if pending.ID == responseID && !pending.Valid {
			return StepResult{}, fmt.Errorf("response %s on node %s is not currently valid", responseID, node.ID)
		}
	}

	s.pushSnapshot()
	s.PreviousVariables = s.Variables.Clone()
	s.Status = StatusPaused
	s.Pending = nil
	s.logConsole(LevelInfo, node.ID, fmt.Sprintf("Response %s chosen", responseID))
	s.logHistory(node.ID, "response_chosen", responseID)

	outcome := selectResponse(node, resp, s, g)
	return e.applyOutcome(s, outcome), nil
}

// StepBack undoes exactly one mutating operation (Step, ChooseResponse or
// SetVariable) by restoring the most recent snapshot. Breakpoints are not
// rolled back. With no history the state is left unchanged.
func (e *Engine) StepBack(s *State) error {
	if len(s.Snapshots) == 0 {
		return ErrNoHistory
	}
	prev := s.Snapshots[len(s.Snapshots)-1]
	s.Snapshots = s.Snapshots[:len(s.Snapshots)-1]
	s.restore(prev)
	return nil
}

// Reset returns the session to its initial state: initial variables, start
// node, cleared history, console, path and snapshots. Breakpoints survive.
// Reset is idempotent.
func (e *Engine) Reset(s *State) {
	s.CurrentNodeID = s.StartNodeID
	s.CurrentFlowID = s.StartFlowID
	s.Status = StatusPaused
	s.Variables = s.InitialVariables.Clone()
	s.PreviousVariables = s.InitialVariables.Clone()
	s.History = nil
	s.Console = nil
	s.ExecutionPath = []string{s.StartNodeID}
	s.ExecutionLog = []LogEntry{{NodeID: s.StartNodeID, Depth: 0}}
	s.StepCount = 0
	s.Snapshots = nil
	s.CallStack = nil
	s.Pending = nil
	s.logConsole(LevelInfo, s.StartNodeID, "Debug session reset")
}

// SetVariable overrides a variable value from the debugger. The write is
// snapshot-protected like a step and attributed to user_override. Unknown
// refs are a misuse error and leave the state unchanged.
func (e *Engine) SetVariable(s *State, ref string, value interface{}) error {
	entry, ok := s.Variables.Get(ref)
	if !ok {
		return fmt.Errorf("%w: %s", flow.ErrVariableNotFound, ref)
	}

	s.pushSnapshot()
	s.PreviousVariables = s.Variables.Clone()
	oldValue := entry.Value
	if err := s.Variables.Set(ref, value, flow.SourceUserOverride); err != nil {
		return err
	}
	s.logConsole(LevelInfo, s.CurrentNodeID, fmt.Sprintf("Variable %s overridden: %v -> %v", ref, oldValue, value))
	s.logHistory(s.CurrentNodeID, "variable_overridden", fmt.Sprintf("%s = %v", ref, value))
	if e.logger != nil {
		e.logger.LogVariableChange(ref, oldValue, value)
	}
	return nil
}

// ToggleBreakpoint flips the breakpoint on a node. Breakpoints survive
// Reset and StepBack.
func (e *Engine) ToggleBreakpoint(s *State, nodeID string) {
	if s.Breakpoints[nodeID] {
		delete(s.Breakpoints, nodeID)
		return
	}
	s.Breakpoints[nodeID] = true
}

// PushFlowContext saves the caller's graph on the call stack and repositions
// the session at the target flow's start node. The caller invokes this after
// a flow_jump result, supplying where execution should resume when the
// target flow returns.
func (e *Engine) PushFlowContext(s *State, targetFlowID, targetStartNodeID, returnNodeID string, callerGraph Graph) {
	s.CallStack = append(s.CallStack, CallFrame{
		FlowID:        s.CurrentFlowID,
		ReturnNodeID:  returnNodeID,
		Nodes:         callerGraph.Nodes,
		Connections:   callerGraph.Connections,
		ExecutionPath: append([]string(nil), s.ExecutionPath...),
	})
	s.CurrentFlowID = targetFlowID
	s.visit(targetStartNodeID)
	s.logConsole(LevelInfo, targetStartNodeID, fmt.Sprintf("Entered flow %s", targetFlowID))
}

// PopFlowContext restores the most recent caller frame, repositioning the
// session at the caller's return node. The returned frame carries the
// caller's graph so the caller can resume stepping with it.
func (e *Engine) PopFlowContext(s *State) (CallFrame, error) {
	if len(s.CallStack) == 0 {
		return CallFrame{}, ErrEmptyCallStack
	}
	frame := s.CallStack[len(s.CallStack)-1]
	s.CallStack = s.CallStack[:len(s.CallStack)-1]
	s.CurrentFlowID = frame.FlowID
	s.visit(frame.ReturnNodeID)
	s.logConsole(LevelInfo, frame.ReturnNodeID, fmt.Sprintf("Returned to flow %s", frame.FlowID))
	return frame, nil
}

// applyOutcome folds a node outcome into the session state and maps it to a
// step result.
func (e *Engine) applyOutcome(s *State, outcome Outcome) StepResult {
	switch outcome.Kind {
	case OutcomeContinue:
		s.Status = StatusPaused
		s.visit(outcome.NextNodeID)
		if s.HasBreakpoint(outcome.NextNodeID) {
			s.logConsole(LevelWarning, outcome.NextNodeID, fmt.Sprintf("Breakpoint hit at node %s", outcome.NextNodeID))
		}
		return StepResult{Kind: StepOK}
	case OutcomeWaiting:
		s.Status = StatusWaitingInput
		s.Pending = outcome.Choices
		return StepResult{Kind: StepWaitingInput}
	case OutcomeFlowJump:
		s.Status = StatusPaused
		return StepResult{Kind: StepFlowJump, FlowID: outcome.FlowID}
	case OutcomeFlowReturn:
		s.Status = StatusPaused
		return StepResult{Kind: StepFlowReturn}
	default:
		s.Status = StatusFinished
		if outcome.ErrReason != "" {
			return StepResult{Kind: StepError, Reason: outcome.ErrReason}
		}
		return StepResult{Kind: StepFinished}
	}
}

// logStep mirrors a step to the debug logger when one is configured.
func (e *Engine) logStep(s *State, node flow.Node) {
	if e.logger != nil {
		e.logger.LogStep(s.StepCount, node.GetID(), node.Type())
	}
}

package engine

import (
	"fmt"

	"github.com/dshills/fableflow/pkg/flow"
)

// Graph is the immutable graph snapshot supplied to each step: the current
// flow's nodes and connections. The engine never caches it; the caller may
// supply a fresh snapshot on every call.
type Graph struct {
	Nodes       map[string]flow.Node
	Connections []*flow.Connection
}

// NewGraph builds a step graph from a flow.
func NewGraph(f *flow.Flow) Graph {
	return Graph{Nodes: f.NodeMap(), Connections: f.Connections}
}

// OutcomeKind classifies what a node evaluation decided.
type OutcomeKind string

const (
	// OutcomeContinue advances to the next node.
	OutcomeContinue OutcomeKind = "continue"
	// OutcomeWaiting halts for a dialogue response choice.
	OutcomeWaiting OutcomeKind = "waiting"
	// OutcomeFinished ends execution.
	OutcomeFinished OutcomeKind = "finished"
	// OutcomeFlowJump transfers execution to another flow.
	OutcomeFlowJump OutcomeKind = "flow_jump"
	// OutcomeFlowReturn returns execution to the calling flow.
	OutcomeFlowReturn OutcomeKind = "flow_return"
)

// Outcome is the result of evaluating one node. ErrReason is set when a
// Finished outcome is an error termination (missing pin, missing hub, and
// the like); the message has already been written to the console.
type Outcome struct {
	Kind       OutcomeKind
	NextNodeID string
	FlowID     string
	Choices    *PendingChoices
	ErrReason  string
}

func continueTo(nodeID string) Outcome {
	return Outcome{Kind: OutcomeContinue, NextNodeID: nodeID}
}

func finished() Outcome {
	return Outcome{Kind: OutcomeFinished}
}

// finishWithError terminates execution with a console error entry.
func finishWithError(s *State, nodeID, reason string) Outcome {
	s.logConsole(LevelError, nodeID, reason)
	return Outcome{Kind: OutcomeFinished, ErrReason: reason}
}

// followPin resolves the connection leaving node through pin and continues
// to its target, or terminates with an error naming the missing pin. Every
// traversal writes a console entry so the trace covers pass-through nodes.
func followPin(s *State, g Graph, nodeID, pin string) Outcome {
	conn := flow.FindConnection(g.Connections, nodeID, pin)
	if conn == nil {
		return finishWithError(s, nodeID, fmt.Sprintf("no connection from node %s pin %q", nodeID, pin))
	}
	s.logConsole(LevelInfo, nodeID, fmt.Sprintf("Continuing to node %s via pin %q", conn.TargetNodeID, pin))
	return continueTo(conn.TargetNodeID)
}

// evaluateNode dispatches to the evaluator for the node's type.
func evaluateNode(node flow.Node, s *State, g Graph) Outcome {
	switch n := node.(type) {
	case *flow.EntryNode:
		return followPin(s, g, n.ID, flow.PinDefault)
	case *flow.ExitNode:
		return evaluateExit(n, s)
	case *flow.SceneNode:
		return followPin(s, g, n.ID, flow.PinDefault)
	case *flow.HubNode:
		return followPin(s, g, n.ID, flow.PinDefault)
	case *flow.JumpNode:
		return evaluateJump(n, s, g)
	case *flow.SubflowNode:
		return evaluateSubflow(n, s)
	case *flow.ConditionNode:
		return evaluateCondition(n, s, g)
	case *flow.InstructionNode:
		return evaluateInstruction(n, s, g)
	case *flow.DialogueNode:
		return evaluateDialogue(n, s, g)
	default:
		return finishWithError(s, node.GetID(), fmt.Sprintf("unsupported node type: %s", node.Type()))
	}
}

// evaluateExit handles the three exit modes. Terminal exits finish cleanly;
// flow references jump to another flow; caller returns pop the call stack.
func evaluateExit(node *flow.ExitNode, s *State) Outcome {
	switch node.ExitMode() {
	case flow.ExitModeFlowReference:
		if node.ReferencedFlowID == "" {
			return finishWithError(s, node.ID, fmt.Sprintf("exit node %s: flow reference with no referenced flow", node.ID))
		}
		s.logConsole(LevelInfo, node.ID, fmt.Sprintf("Exit reached: continuing in flow %s", node.ReferencedFlowID))
		return Outcome{Kind: OutcomeFlowJump, FlowID: node.ReferencedFlowID}
	case flow.ExitModeCallerReturn:
		if len(s.CallStack) == 0 {
			return finishWithError(s, node.ID, fmt.Sprintf("exit node %s: caller return with empty call stack", node.ID))
		}
		s.logConsole(LevelInfo, node.ID, "Exit reached: returning to caller")
		return Outcome{Kind: OutcomeFlowReturn}
	default:
		s.logConsole(LevelInfo, node.ID, "Exit reached: execution finished")
		return finished()
	}
}

// evaluateJump resolves the target hub by direct node lookup in the current
// graph. No edge is traversed.
func evaluateJump(node *flow.JumpNode, s *State, g Graph) Outcome {
	if node.TargetHubID == "" {
		return finishWithError(s, node.ID, fmt.Sprintf("jump node %s has no target hub", node.ID))
	}
	target, ok := g.Nodes[node.TargetHubID]
	if !ok || target.Type() != flow.NodeTypeHub {
		return finishWithError(s, node.ID, fmt.Sprintf("jump node %s: hub %s not found in current flow", node.ID, node.TargetHubID))
	}
	s.logConsole(LevelInfo, node.ID, fmt.Sprintf("Jumping to hub %s", node.TargetHubID))
	return continueTo(node.TargetHubID)
}

func evaluateSubflow(node *flow.SubflowNode, s *State) Outcome {
	if node.ReferencedFlowID == "" {
		return finishWithError(s, node.ID, fmt.Sprintf("subflow node %s has no referenced flow", node.ID))
	}
	s.logConsole(LevelInfo, node.ID, fmt.Sprintf("Entering subflow %s", node.ReferencedFlowID))
	return Outcome{Kind: OutcomeFlowJump, FlowID: node.ReferencedFlowID}
}

// evaluateCondition branches on the node's rule tree. The default mode
// follows the "true"/"false" pin; switch mode treats each rule or block as
// an independent case and follows the pin named by the first passing one,
// falling back to the default pin.
func evaluateCondition(node *flow.ConditionNode, s *State, g Graph) Outcome {
	tree := node.Tree()

	if node.SwitchMode {
		return evaluateSwitch(node, tree, s, g)
	}

	passed, results := EvaluateCondition(tree, s.Variables)
	logRuleResults(s, node.ID, results)
	pin := "false"
	if passed {
		pin = "true"
	}
	s.logConsole(LevelInfo, node.ID, fmt.Sprintf("Condition evaluated to %v", passed))
	return followPin(s, g, node.ID, pin)
}

// evaluateSwitch iterates the tree's cases in declared order. Each flat rule
// or block-form entry is evaluated independently; the first one that passes
// selects the pin named by its ID.
func evaluateSwitch(node *flow.ConditionNode, tree *flow.ConditionTree, s *State, g Graph) Outcome {
	if !tree.IsEmpty() {
		if len(tree.Entries) == 0 {
			for _, rule := range tree.Rules {
				if !rule.IsComplete() {
					continue
				}
				result := evaluateRule(rule, s.Variables)
				logRuleResults(s, node.ID, []RuleResult{result})
				if result.Passed {
					return followCasePin(s, g, node.ID, rule.ID)
				}
			}
		} else {
			for _, entry := range tree.Entries {
				passed, results, ok := evaluateEntry(entry, s.Variables)
				logRuleResults(s, node.ID, results)
				if ok && passed {
					return followCasePin(s, g, node.ID, entry.EntryID())
				}
			}
		}
	}

	// No case matched: try the default pin before giving up.
	if conn := flow.FindConnection(g.Connections, node.ID, flow.PinDefault); conn != nil {
		s.logConsole(LevelInfo, node.ID, "No switch case matched, taking default")
		return continueTo(conn.TargetNodeID)
	}
	return finishWithError(s, node.ID, fmt.Sprintf("condition node %s: no switch case matched and no default connection", node.ID))
}

// followCasePin follows a matched switch case, logging which case won.
func followCasePin(s *State, g Graph, nodeID, caseID string) Outcome {
	s.logConsole(LevelInfo, nodeID, fmt.Sprintf("Switch case %s matched", caseID))
	return followPin(s, g, nodeID, caseID)
}

// evaluateInstruction applies the node's assignments and continues through
// the default pin regardless of per-assignment errors.
func evaluateInstruction(node *flow.InstructionNode, s *State, g Graph) Outcome {
	assignments := node.AssignmentList()
	if len(assignments) == 0 {
		s.logConsole(LevelInfo, node.ID, "Instruction node has no assignments")
		return followPin(s, g, node.ID, flow.PinDefault)
	}

	_, changes, errs := ExecuteAssignments(assignments, s.Variables)
	logInstructionResults(s, node.ID, changes, errs)
	return followPin(s, g, node.ID, flow.PinDefault)
}

// logRuleResults writes rule outcomes to the console for the debugger.
func logRuleResults(s *State, nodeID string, results []RuleResult) {
	for _, r := range results {
		s.logConsole(LevelInfo, nodeID, fmt.Sprintf("Rule %s %s: expected %v, actual %v => %v",
			r.VariableRef, r.Operator, r.ExpectedValue, r.ActualValue, r.Passed))
	}
}

// logInstructionResults writes assignment outcomes to the console and the
// session history.
func logInstructionResults(s *State, nodeID string, changes []Change, errs []*InstructionError) {
	for _, change := range changes {
		s.logConsole(LevelInfo, nodeID, fmt.Sprintf("%s %s: %v -> %v",
			change.Operator, change.VariableRef, change.OldValue, change.NewValue))
		s.logHistory(nodeID, "variable_changed", fmt.Sprintf("%s = %v", change.VariableRef, change.NewValue))
	}
	for _, err := range errs {
		s.logConsole(LevelError, nodeID, err.Error())
	}
}

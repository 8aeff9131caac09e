package engine

import (
	"fmt"

	"github.com/dshills/fableflow/pkg/flow"
)

// evaluateDialogue runs the dialogue sub-machine:
//
//   - responses whose condition fails cannot be taken (absent conditions
//     always pass);
//   - no valid responses: follow the default pin;
//   - exactly one valid response: auto-select it, running its instruction
//     and following its pin;
//   - two or more: halt with waiting_input until ChooseResponse. The
//     pending choices list every response, with failed ones flagged
//     invalid, so the debugger can show why a choice is unavailable.
func evaluateDialogue(node *flow.DialogueNode, s *State, g Graph) Outcome {
	valid, validity := filterResponses(node, s.Variables)

	switch len(valid) {
	case 0:
		if len(node.Responses) > 0 {
			s.logConsole(LevelWarning, node.ID, "No dialogue response is currently valid")
		}
		return followPin(s, g, node.ID, flow.PinDefault)
	case 1:
		resp := valid[0]
		s.logConsole(LevelInfo, node.ID, fmt.Sprintf("Auto-selecting the only valid response %s", resp.ID))
		return selectResponse(node, resp, s, g)
	default:
		choices := &PendingChoices{NodeID: node.ID}
		for _, resp := range node.Responses {
			choices.Responses = append(choices.Responses, PendingResponse{
				ID:    resp.ID,
				Text:  resp.Text,
				Valid: validity[resp.ID],
			})
		}
		s.logConsole(LevelInfo, node.ID, fmt.Sprintf("Waiting for a response choice (%d available)", len(valid)))
		return Outcome{Kind: OutcomeWaiting, Choices: choices}
	}
}

// filterResponses evaluates each response's gating condition, returning the
// passing responses in declared order plus a per-ID validity map.
func filterResponses(node *flow.DialogueNode, vars flow.Environment) ([]*flow.DialogueResponse, map[string]bool) {
	var valid []*flow.DialogueResponse
	validity := make(map[string]bool, len(node.Responses))
	for _, resp := range node.Responses {
		passed, _ := EvaluateCondition(resp.Tree(), vars)
		validity[resp.ID] = passed
		if passed {
			valid = append(valid, resp)
		}
	}
	return valid, validity
}

// selectResponse runs a response's instruction and follows its pin. The pin
// is the response ID, with "resp_<id>" accepted as an alias.
func selectResponse(node *flow.DialogueNode, resp *flow.DialogueResponse, s *State, g Graph) Outcome {
	_, changes, errs := ExecuteAssignments(resp.AssignmentList(), s.Variables)
	logInstructionResults(s, node.ID, changes, errs)

	conn := flow.FindConnection(g.Connections, node.ID, resp.ID)
	if conn == nil {
		conn = flow.FindConnection(g.Connections, node.ID, "resp_"+resp.ID)
	}
	if conn == nil {
		return finishWithError(s, node.ID, fmt.Sprintf("no connection for response %s on node %s", resp.ID, node.ID))
	}
	s.logConsole(LevelInfo, node.ID, fmt.Sprintf("Continuing to node %s via response %s", conn.TargetNodeID, resp.ID))
	return continueTo(conn.TargetNodeID)
}

// findResponse looks a response up by ID on a dialogue node.
func findResponse(node *flow.DialogueNode, responseID string) *flow.DialogueResponse {
	for _, resp := range node.Responses {
		if resp.ID == responseID {
			return resp
		}
	}
	return nil
}

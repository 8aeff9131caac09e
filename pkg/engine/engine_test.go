package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/fableflow/pkg/flow"
)

// linearFlow builds entry -> instruction (health -20) -> condition
// (health > 50) -> dialogue (one response) -> exit.
func linearFlow() *flow.Flow {
	return &flow.Flow{
		ID:          "flow-1",
		Name:        "Linear",
		StartNodeID: "n1",
		Sheets: []*flow.Sheet{
			{Shortcut: "player", Variables: []*flow.SheetVariable{
				{Name: "health", BlockType: flow.BlockTypeNumber, InitialValue: 100.0},
			}},
		},
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "n1"},
			&flow.InstructionNode{ID: "n2", Assignments: []*flow.Assignment{
				{Sheet: "player", Variable: "health", Operator: flow.OpSubtract, Value: 20.0},
			}},
			&flow.ConditionNode{ID: "n3", Condition: &flow.ConditionTree{
				Logic: flow.LogicAll,
				Rules: []*flow.Rule{{Sheet: "player", Variable: "health", Operator: "greater_than", Value: 50.0}},
			}},
			&flow.DialogueNode{ID: "n4", Text: "Onward?", Responses: []*flow.DialogueResponse{
				{ID: "r1", Text: "Yes"},
			}},
			&flow.ExitNode{ID: "n5"},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "n1", SourcePin: flow.PinDefault, TargetNodeID: "n2"},
			{SourceNodeID: "n2", SourcePin: flow.PinDefault, TargetNodeID: "n3"},
			{SourceNodeID: "n3", SourcePin: "true", TargetNodeID: "n4"},
			{SourceNodeID: "n3", SourcePin: "false", TargetNodeID: "n5"},
			{SourceNodeID: "n4", SourcePin: "r1", TargetNodeID: "n5"},
		},
	}
}

func startSession(t *testing.T, f *flow.Flow) (*Engine, *State, Graph) {
	t.Helper()
	require.NoError(t, f.Validate())
	eng := NewEngine()
	return eng, eng.Init(f.BuildEnvironment(), f.StartNodeID, f.ID), NewGraph(f)
}

func TestEndToEndLinearFlow(t *testing.T) {
	eng, s, g := startSession(t, linearFlow())

	var last StepResult
	for i := 0; i < 10; i++ {
		last = eng.Step(s, g)
		if last.Kind != StepOK {
			break
		}
	}

	assert.Equal(t, StepFinished, last.Kind)
	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, []string{"n1", "n2", "n3", "n4", "n5"}, s.ExecutionPath)

	health, ok := s.Variables.Get("player.health")
	require.True(t, ok)
	assert.Equal(t, 80.0, health.Value)
	assert.Equal(t, flow.SourceInstruction, health.Source)
}

func TestStepAfterFinished(t *testing.T) {
	eng, s, g := startSession(t, linearFlow())
	for eng.Step(s, g).Kind == StepOK {
	}

	res := eng.Step(s, g)
	assert.Equal(t, StepFinished, res.Kind)
	assert.Equal(t, ErrAlreadyFinished.Error(), res.Reason)
}

func TestConditionFalseBranch(t *testing.T) {
	f := linearFlow()
	eng, s, g := startSession(t, f)
	require.NoError(t, eng.SetVariable(s, "player.health", 60.0))

	// 60 - 20 = 40 fails health > 50, so the false pin goes straight to exit.
	for eng.Step(s, g).Kind == StepOK {
	}
	assert.Equal(t, []string{"n1", "n2", "n3", "n5"}, s.ExecutionPath)
}

func TestEveryStepWritesConsoleEntry(t *testing.T) {
	// Pass-through nodes have no rule or assignment output, but each
	// traversal must still leave a trace in the console.
	f := &flow.Flow{
		ID:          "pass-through",
		Name:        "PassThrough",
		StartNodeID: "n1",
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "n1"},
			&flow.SceneNode{ID: "n2", Description: "A quiet road"},
			&flow.HubNode{ID: "n3"},
			&flow.ExitNode{ID: "n4"},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "n1", SourcePin: flow.PinDefault, TargetNodeID: "n2"},
			{SourceNodeID: "n2", SourcePin: flow.PinDefault, TargetNodeID: "n3"},
			{SourceNodeID: "n3", SourcePin: flow.PinDefault, TargetNodeID: "n4"},
		},
	}

	eng, s, g := startSession(t, f)
	start := len(s.Console)
	for {
		before := len(s.Console)
		res := eng.Step(s, g)
		assert.Greater(t, len(s.Console), before, "step at node %s wrote no console entry", s.CurrentNodeID)
		if res.Kind != StepOK {
			break
		}
	}

	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, []string{"n1", "n2", "n3", "n4"}, s.ExecutionPath)
	assert.GreaterOrEqual(t, len(s.Console)-start, 3)
	assertConsoleContains(t, s, "Continuing to node n2")
	assertConsoleContains(t, s, "Continuing to node n3")
	assertConsoleContains(t, s, "Continuing to node n4")
}

func TestDialogueWaitingInput(t *testing.T) {
	f := linearFlow()
	dialogue := f.NodeByID("n4").(*flow.DialogueNode)
	dialogue.Responses = append(dialogue.Responses, &flow.DialogueResponse{ID: "r2", Text: "No"})
	f.Connections = append(f.Connections, &flow.Connection{SourceNodeID: "n4", SourcePin: "r2", TargetNodeID: "n5"})

	eng, s, g := startSession(t, f)
	var last StepResult
	for {
		last = eng.Step(s, g)
		if last.Kind != StepOK {
			break
		}
	}

	assert.Equal(t, StepWaitingInput, last.Kind)
	assert.Equal(t, StatusWaitingInput, s.Status)
	require.NotNil(t, s.Pending)
	assert.Equal(t, "n4", s.Pending.NodeID)
	require.Len(t, s.Pending.Responses, 2)
	for _, resp := range s.Pending.Responses {
		assert.True(t, resp.Valid)
	}

	// Stepping while waiting does not advance.
	stepCount := s.StepCount
	res := eng.Step(s, g)
	assert.Equal(t, StepWaitingInput, res.Kind)
	assert.Equal(t, stepCount, s.StepCount)

	res, err := eng.ChooseResponse(s, "r2", g)
	require.NoError(t, err)
	assert.Equal(t, StepOK, res.Kind)
	assert.Equal(t, "n5", s.CurrentNodeID)
	assert.Equal(t, StatusPaused, s.Status)
	assert.Nil(t, s.Pending)
}

func TestDialoguePendingListsInvalidResponses(t *testing.T) {
	f := linearFlow()
	dialogue := f.NodeByID("n4").(*flow.DialogueNode)
	dialogue.Responses = []*flow.DialogueResponse{
		{ID: "r1", Text: "Yes"},
		{ID: "r2", Text: "Brag", Condition: &flow.ConditionTree{Rules: []*flow.Rule{
			{Sheet: "player", Variable: "health", Operator: "greater_than", Value: 90.0},
		}}},
		{ID: "r3", Text: "No"},
	}
	f.Connections = append(f.Connections,
		&flow.Connection{SourceNodeID: "n4", SourcePin: "r2", TargetNodeID: "n5"},
		&flow.Connection{SourceNodeID: "n4", SourcePin: "r3", TargetNodeID: "n5"},
	)

	// Health is 80 at the dialogue, so r2's gate fails but it still appears
	// in the pending choices, flagged invalid.
	eng, s, g := startSession(t, f)
	for eng.Step(s, g).Kind == StepOK {
	}

	require.Equal(t, StatusWaitingInput, s.Status)
	require.NotNil(t, s.Pending)
	require.Len(t, s.Pending.Responses, 3)
	byID := make(map[string]PendingResponse, len(s.Pending.Responses))
	for _, resp := range s.Pending.Responses {
		byID[resp.ID] = resp
	}
	assert.True(t, byID["r1"].Valid)
	assert.False(t, byID["r2"].Valid)
	assert.True(t, byID["r3"].Valid)
	assert.Equal(t, "Brag", byID["r2"].Text)

	// The invalid response cannot be chosen.
	_, err := eng.ChooseResponse(s, "r2", g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not currently valid")
	assert.Equal(t, StatusWaitingInput, s.Status)

	res, err := eng.ChooseResponse(s, "r3", g)
	require.NoError(t, err)
	assert.Equal(t, StepOK, res.Kind)
	assert.Equal(t, "n5", s.CurrentNodeID)
}

func TestDialogueResponseConditionFiltering(t *testing.T) {
	f := linearFlow()
	dialogue := f.NodeByID("n4").(*flow.DialogueNode)
	dialogue.Responses = []*flow.DialogueResponse{
		{ID: "r1", Text: "Brag", Condition: &flow.ConditionTree{Rules: []*flow.Rule{
			{Sheet: "player", Variable: "health", Operator: "greater_than", Value: 90.0},
		}}},
		{ID: "r2", Text: "Limp on"},
	}
	f.Connections = append(f.Connections, &flow.Connection{SourceNodeID: "n4", SourcePin: "r2", TargetNodeID: "n5"})

	// Health is 80 at the dialogue, so only r2 is valid and it auto-selects.
	eng, s, g := startSession(t, f)
	for eng.Step(s, g).Kind == StepOK {
	}

	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, []string{"n1", "n2", "n3", "n4", "n5"}, s.ExecutionPath)
}

func TestDialogueNoValidResponsesFallsBackToDefault(t *testing.T) {
	f := linearFlow()
	dialogue := f.NodeByID("n4").(*flow.DialogueNode)
	dialogue.Responses = []*flow.DialogueResponse{
		{ID: "r1", Condition: &flow.ConditionTree{Rules: []*flow.Rule{
			{Sheet: "player", Variable: "health", Operator: "greater_than", Value: 500.0},
		}}},
	}
	f.Connections = append(f.Connections, &flow.Connection{SourceNodeID: "n4", SourcePin: flow.PinDefault, TargetNodeID: "n5"})

	eng, s, g := startSession(t, f)
	for eng.Step(s, g).Kind == StepOK {
	}

	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, "n5", s.CurrentNodeID)
	assertConsoleContains(t, s, "No dialogue response is currently valid")
}

func TestDialogueUnconnectedResponseFinishesWithError(t *testing.T) {
	f := linearFlow()
	f.Connections = f.Connections[:4] // drop the n4 r1 connection

	eng, s, g := startSession(t, f)
	var last StepResult
	for {
		last = eng.Step(s, g)
		if last.Kind != StepOK {
			break
		}
	}

	assert.Equal(t, StepError, last.Kind)
	assert.Equal(t, StatusFinished, s.Status)
	assert.Contains(t, last.Reason, "r1")
}

func TestChooseResponseWhileNotWaiting(t *testing.T) {
	eng, s, g := startSession(t, linearFlow())

	before := s.StepCount
	_, err := eng.ChooseResponse(s, "r1", g)
	assert.ErrorIs(t, err, ErrNotWaitingInput)
	assert.Equal(t, before, s.StepCount)
	assert.Equal(t, StatusPaused, s.Status)
}

func TestStepBackUndoesOneStep(t *testing.T) {
	eng, s, g := startSession(t, linearFlow())

	// Advance to the instruction node, then past it.
	require.Equal(t, StepOK, eng.Step(s, g).Kind)
	require.Equal(t, "n2", s.CurrentNodeID)

	beforeNode := s.CurrentNodeID
	beforeSteps := s.StepCount
	beforePath := append([]string(nil), s.ExecutionPath...)
	beforeConsole := len(s.Console)
	beforeHealth, _ := s.Variables.Get("player.health")

	require.Equal(t, StepOK, eng.Step(s, g).Kind)
	mutated, _ := s.Variables.Get("player.health")
	require.Equal(t, 80.0, mutated.Value)

	require.NoError(t, eng.StepBack(s))

	assert.Equal(t, beforeNode, s.CurrentNodeID)
	assert.Equal(t, beforeSteps, s.StepCount)
	assert.Equal(t, beforePath, s.ExecutionPath)
	assert.Len(t, s.Console, beforeConsole)
	restored, _ := s.Variables.Get("player.health")
	assert.Equal(t, beforeHealth.Value, restored.Value)
}

func TestStepBackUndoesSetVariable(t *testing.T) {
	eng, s, _ := startSession(t, linearFlow())

	require.NoError(t, eng.SetVariable(s, "player.health", 1.0))
	entry, _ := s.Variables.Get("player.health")
	require.Equal(t, 1.0, entry.Value)
	assert.Equal(t, flow.SourceUserOverride, entry.Source)

	require.NoError(t, eng.StepBack(s))
	entry, _ = s.Variables.Get("player.health")
	assert.Equal(t, 100.0, entry.Value)
}

func TestStepBackWithEmptyHistory(t *testing.T) {
	eng, s, _ := startSession(t, linearFlow())

	err := eng.StepBack(s)
	assert.ErrorIs(t, err, ErrNoHistory)
	assert.Equal(t, "n1", s.CurrentNodeID)
}

func TestStepBackAfterTransitionError(t *testing.T) {
	f := linearFlow()
	f.Connections = f.Connections[1:] // entry has no outgoing connection

	eng, s, g := startSession(t, f)
	res := eng.Step(s, g)
	require.Equal(t, StepError, res.Kind)
	require.Equal(t, StatusFinished, s.Status)

	// A fatal transition error can still be undone.
	require.NoError(t, eng.StepBack(s))
	assert.Equal(t, StatusPaused, s.Status)
	assert.Equal(t, "n1", s.CurrentNodeID)
}

func TestResetRestoresInitialState(t *testing.T) {
	eng, s, g := startSession(t, linearFlow())
	eng.ToggleBreakpoint(s, "n3")

	for eng.Step(s, g).Kind == StepOK {
	}
	require.Equal(t, StatusFinished, s.Status)

	eng.Reset(s)

	assert.Equal(t, "n1", s.CurrentNodeID)
	assert.Equal(t, StatusPaused, s.Status)
	assert.Equal(t, 0, s.StepCount)
	assert.Equal(t, []string{"n1"}, s.ExecutionPath)
	assert.Empty(t, s.Snapshots)
	entry, _ := s.Variables.Get("player.health")
	assert.Equal(t, 100.0, entry.Value)

	// Breakpoints survive reset.
	assert.True(t, s.HasBreakpoint("n3"))

	// Reset is idempotent.
	eng.Reset(s)
	assert.Equal(t, "n1", s.CurrentNodeID)
	assert.Equal(t, 0, s.StepCount)

	// The session can run again after reset.
	for eng.Step(s, g).Kind == StepOK {
	}
	assert.Equal(t, []string{"n1", "n2", "n3", "n4", "n5"}, s.ExecutionPath)
}

func TestSetVariableUnknownRef(t *testing.T) {
	eng, s, _ := startSession(t, linearFlow())

	err := eng.SetVariable(s, "player.mana", 5.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, flow.ErrVariableNotFound)
	assert.Empty(t, s.Snapshots)
}

func TestToggleBreakpoint(t *testing.T) {
	eng, s, _ := startSession(t, linearFlow())

	eng.ToggleBreakpoint(s, "n3")
	assert.True(t, s.HasBreakpoint("n3"))
	eng.ToggleBreakpoint(s, "n3")
	assert.False(t, s.HasBreakpoint("n3"))
}

func TestBreakpointSurvivesStepBack(t *testing.T) {
	eng, s, g := startSession(t, linearFlow())

	require.Equal(t, StepOK, eng.Step(s, g).Kind)
	eng.ToggleBreakpoint(s, "n4")
	require.NoError(t, eng.StepBack(s))
	assert.True(t, s.HasBreakpoint("n4"))
}

func TestMaxStepsGuard(t *testing.T) {
	// entry -> hub -> jump -> hub loops forever.
	f := &flow.Flow{
		ID:          "loop",
		Name:        "Loop",
		StartNodeID: "n1",
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "n1"},
			&flow.HubNode{ID: "n2"},
			&flow.JumpNode{ID: "n3", TargetHubID: "n2"},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "n1", SourcePin: flow.PinDefault, TargetNodeID: "n2"},
			{SourceNodeID: "n2", SourcePin: flow.PinDefault, TargetNodeID: "n3"},
		},
	}

	eng, s, g := startSession(t, f)
	s.MaxSteps = 25

	var last StepResult
	for {
		last = eng.Step(s, g)
		if last.Kind != StepOK {
			break
		}
	}

	assert.Equal(t, StepError, last.Kind)
	assert.Equal(t, "max steps exceeded", last.Reason)
	assert.Equal(t, StatusFinished, s.Status)
	assertConsoleContains(t, s, "Max steps exceeded")
}

func TestJumpToMissingHub(t *testing.T) {
	f := &flow.Flow{
		ID:          "bad-jump",
		Name:        "BadJump",
		StartNodeID: "n1",
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "n1"},
			&flow.JumpNode{ID: "n2", TargetHubID: "nowhere"},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "n1", SourcePin: flow.PinDefault, TargetNodeID: "n2"},
		},
	}

	eng, s, g := startSession(t, f)
	var last StepResult
	for {
		last = eng.Step(s, g)
		if last.Kind != StepOK {
			break
		}
	}

	assert.Equal(t, StepError, last.Kind)
	assert.Contains(t, last.Reason, "nowhere")
	assert.Equal(t, StatusFinished, s.Status)
}

func TestExitFlowReference(t *testing.T) {
	f := &flow.Flow{
		ID:          "caller",
		Name:        "Caller",
		StartNodeID: "n1",
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "n1"},
			&flow.ExitNode{ID: "n2", Mode: flow.ExitModeFlowReference, ReferencedFlowID: "flow-2"},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "n1", SourcePin: flow.PinDefault, TargetNodeID: "n2"},
		},
	}

	eng, s, g := startSession(t, f)
	require.Equal(t, StepOK, eng.Step(s, g).Kind)
	res := eng.Step(s, g)
	assert.Equal(t, StepFlowJump, res.Kind)
	assert.Equal(t, "flow-2", res.FlowID)
	assert.Equal(t, StatusPaused, s.Status)
}

func TestCallerReturnWithEmptyCallStack(t *testing.T) {
	f := &flow.Flow{
		ID:          "orphan",
		Name:        "Orphan",
		StartNodeID: "n1",
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "n1"},
			&flow.ExitNode{ID: "n2", Mode: flow.ExitModeCallerReturn},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "n1", SourcePin: flow.PinDefault, TargetNodeID: "n2"},
		},
	}

	eng, s, g := startSession(t, f)
	require.Equal(t, StepOK, eng.Step(s, g).Kind)
	res := eng.Step(s, g)
	assert.Equal(t, StepError, res.Kind)
	assert.Equal(t, StatusFinished, s.Status)
}

func TestCrossFlowCallStack(t *testing.T) {
	caller := &flow.Flow{
		ID:          "caller",
		Name:        "Caller",
		StartNodeID: "c1",
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "c1"},
			&flow.SubflowNode{ID: "c2", ReferencedFlowID: "callee"},
			&flow.ExitNode{ID: "c3"},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "c1", SourcePin: flow.PinDefault, TargetNodeID: "c2"},
			{SourceNodeID: "c2", SourcePin: flow.PinDefault, TargetNodeID: "c3"},
		},
	}
	callee := &flow.Flow{
		ID:          "callee",
		Name:        "Callee",
		StartNodeID: "s1",
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "s1"},
			&flow.ExitNode{ID: "s2", Mode: flow.ExitModeCallerReturn},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "s1", SourcePin: flow.PinDefault, TargetNodeID: "s2"},
		},
	}

	eng, s, callerGraph := startSession(t, caller)
	require.NoError(t, callee.Validate())

	require.Equal(t, StepOK, eng.Step(s, callerGraph).Kind)
	res := eng.Step(s, callerGraph)
	require.Equal(t, StepFlowJump, res.Kind)
	require.Equal(t, "callee", res.FlowID)

	eng.PushFlowContext(s, "callee", "s1", "c3", callerGraph)
	assert.Equal(t, "callee", s.CurrentFlowID)
	assert.Equal(t, "s1", s.CurrentNodeID)
	require.Len(t, s.CallStack, 1)

	calleeGraph := NewGraph(callee)
	require.Equal(t, StepOK, eng.Step(s, calleeGraph).Kind)
	res = eng.Step(s, calleeGraph)
	require.Equal(t, StepFlowReturn, res.Kind)

	frame, err := eng.PopFlowContext(s)
	require.NoError(t, err)
	assert.Equal(t, "caller", s.CurrentFlowID)
	assert.Equal(t, "c3", s.CurrentNodeID)
	assert.Empty(t, s.CallStack)

	// Execution log depth reflects the call nesting.
	foundNested := false
	for _, entry := range s.ExecutionLog {
		if entry.NodeID == "s2" {
			assert.Equal(t, 1, entry.Depth)
			foundNested = true
		}
	}
	assert.True(t, foundNested)

	resumed := Graph{Nodes: frame.Nodes, Connections: frame.Connections}
	final := eng.Step(s, resumed)
	assert.Equal(t, StepFinished, final.Kind)
	assert.Equal(t, []string{"c1", "c2", "s1", "s2", "c3"}, s.ExecutionPath)
}

func TestSwitchModeCondition(t *testing.T) {
	f := &flow.Flow{
		ID:          "switch",
		Name:        "Switch",
		StartNodeID: "n1",
		Sheets: []*flow.Sheet{
			{Shortcut: "player", Variables: []*flow.SheetVariable{
				{Name: "class", BlockType: flow.BlockTypeSelect, InitialValue: "mage"},
			}},
		},
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "n1"},
			&flow.ConditionNode{ID: "n2", SwitchMode: true, Condition: &flow.ConditionTree{
				Logic: flow.LogicAll,
				Rules: []*flow.Rule{
					{ID: "case_ranger", Sheet: "player", Variable: "class", Operator: "equals", Value: "ranger"},
					{ID: "case_mage", Sheet: "player", Variable: "class", Operator: "equals", Value: "mage"},
				},
			}},
			&flow.SceneNode{ID: "n3", Description: "Ranger path"},
			&flow.SceneNode{ID: "n4", Description: "Mage path"},
			&flow.ExitNode{ID: "n5"},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "n1", SourcePin: flow.PinDefault, TargetNodeID: "n2"},
			{SourceNodeID: "n2", SourcePin: "case_ranger", TargetNodeID: "n3"},
			{SourceNodeID: "n2", SourcePin: "case_mage", TargetNodeID: "n4"},
			{SourceNodeID: "n3", SourcePin: flow.PinDefault, TargetNodeID: "n5"},
			{SourceNodeID: "n4", SourcePin: flow.PinDefault, TargetNodeID: "n5"},
		},
	}

	eng, s, g := startSession(t, f)
	for eng.Step(s, g).Kind == StepOK {
	}
	assert.Equal(t, []string{"n1", "n2", "n4", "n5"}, s.ExecutionPath)
}

func TestSwitchModeDefaultFallback(t *testing.T) {
	f := &flow.Flow{
		ID:          "switch-default",
		Name:        "SwitchDefault",
		StartNodeID: "n1",
		Sheets: []*flow.Sheet{
			{Shortcut: "player", Variables: []*flow.SheetVariable{
				{Name: "class", BlockType: flow.BlockTypeSelect, InitialValue: "bard"},
			}},
		},
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "n1"},
			&flow.ConditionNode{ID: "n2", SwitchMode: true, Condition: &flow.ConditionTree{
				Rules: []*flow.Rule{
					{ID: "case_ranger", Sheet: "player", Variable: "class", Operator: "equals", Value: "ranger"},
				},
			}},
			&flow.ExitNode{ID: "n3"},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "n1", SourcePin: flow.PinDefault, TargetNodeID: "n2"},
			{SourceNodeID: "n2", SourcePin: flow.PinDefault, TargetNodeID: "n3"},
		},
	}

	eng, s, g := startSession(t, f)
	for eng.Step(s, g).Kind == StepOK {
	}
	assert.Equal(t, []string{"n1", "n2", "n3"}, s.ExecutionPath)
	assertConsoleContains(t, s, "No switch case matched")
}

func TestInstructionNodeWithNoAssignments(t *testing.T) {
	f := &flow.Flow{
		ID:          "noop",
		Name:        "Noop",
		StartNodeID: "n1",
		Nodes: []flow.Node{
			&flow.EntryNode{ID: "n1"},
			&flow.InstructionNode{ID: "n2"},
			&flow.ExitNode{ID: "n3"},
		},
		Connections: []*flow.Connection{
			{SourceNodeID: "n1", SourcePin: flow.PinDefault, TargetNodeID: "n2"},
			{SourceNodeID: "n2", SourcePin: flow.PinDefault, TargetNodeID: "n3"},
		},
	}

	eng, s, g := startSession(t, f)
	for eng.Step(s, g).Kind == StepOK {
	}
	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, []string{"n1", "n2", "n3"}, s.ExecutionPath)
	assertConsoleContains(t, s, "no assignments")
}

func assertConsoleContains(t *testing.T, s *State, message string) {
	t.Helper()
	for _, entry := range s.Console {
		if strings.Contains(entry.Message, message) {
			return
		}
	}
	t.Errorf("console does not contain %q", message)
}

package cli

import (
	"fmt"

	"github.com/dshills/fableflow/pkg/engine"
	"github.com/dshills/fableflow/pkg/flow"
	"github.com/dshills/fableflow/pkg/storage"
)

// sessionDriver owns one debug session: the engine, its state, the current
// graph, and the flow set used to resolve cross-flow transfers. The engine
// itself never loads flows; the driver splices graphs in and out around
// flow_jump and flow_return results. A live session is registered for its
// lifetime and removed when the driver finishes.
type sessionDriver struct {
	eng      *engine.Engine
	set      *FlowSet
	rootFlow *flow.Flow
	state    *engine.State
	graph    engine.Graph
	registry *storage.SessionRegistry
}

// newSessionDriver starts a debug session positioned at the flow's start
// node, with variables built from its sheet declarations. The session is
// stored in the registry, when one is given, until Finish removes it.
func newSessionDriver(eng *engine.Engine, f *flow.Flow, set *FlowSet, registry *storage.SessionRegistry) *sessionDriver {
	if set == nil {
		set = NewFlowSet()
	}
	set.Add(f)
	d := &sessionDriver{
		eng:      eng,
		set:      set,
		rootFlow: f,
		state:    eng.Init(f.BuildEnvironment(), f.StartNodeID, f.ID),
		graph:    engine.NewGraph(f),
		registry: registry,
	}
	if registry != nil {
		_ = registry.Store(d.state)
	}
	return d
}

// Finish removes the session from the live registry and returns its final
// state for trace persistence. It is safe to call more than once.
func (d *sessionDriver) Finish() *engine.State {
	if d.registry != nil {
		if s, ok := d.registry.Take(d.state.SessionID); ok {
			return s
		}
	}
	return d.state
}

// Step advances one node, following any cross-flow transfer the step
// produces.
func (d *sessionDriver) Step() engine.StepResult {
	return d.followTransfer(d.eng.Step(d.state, d.graph))
}

// ChooseResponse resumes a waiting dialogue node with the given response.
func (d *sessionDriver) ChooseResponse(responseID string) (engine.StepResult, error) {
	res, err := d.eng.ChooseResponse(d.state, responseID, d.graph)
	if err != nil {
		return res, err
	}
	return d.followTransfer(res), nil
}

// StepBack undoes one operation and re-aligns the driver's graph with the
// restored state, which may sit in a different flow.
func (d *sessionDriver) StepBack() error {
	if err := d.eng.StepBack(d.state); err != nil {
		return err
	}
	d.syncGraph()
	return nil
}

// Reset returns the session to the root flow's start node.
func (d *sessionDriver) Reset() {
	d.eng.Reset(d.state)
	d.graph = engine.NewGraph(d.rootFlow)
}

// followTransfer resolves flow_jump and flow_return results against the flow
// set. A jump pushes a call frame recording where the caller resumes (the
// default-pin target of the originating node, when connected); a return pops
// it and restores the caller's graph.
func (d *sessionDriver) followTransfer(res engine.StepResult) engine.StepResult {
	switch res.Kind {
	case engine.StepFlowJump:
		target, ok := d.set.Resolve(res.FlowID)
		if !ok {
			reason := fmt.Sprintf("referenced flow %s not loaded", res.FlowID)
			d.state.FailTransition(d.state.CurrentNodeID, reason)
			return engine.StepResult{Kind: engine.StepError, Reason: reason}
		}
		returnNodeID := ""
		if conn := flow.FindConnection(d.graph.Connections, d.state.CurrentNodeID, flow.PinDefault); conn != nil {
			returnNodeID = conn.TargetNodeID
		}
		d.eng.PushFlowContext(d.state, target.ID, target.StartNodeID, returnNodeID, d.graph)
		d.graph = engine.NewGraph(target)
		return engine.StepResult{Kind: engine.StepOK}
	case engine.StepFlowReturn:
		frame, err := d.eng.PopFlowContext(d.state)
		if err != nil {
			d.state.FailTransition(d.state.CurrentNodeID, err.Error())
			return engine.StepResult{Kind: engine.StepError, Reason: err.Error()}
		}
		if frame.ReturnNodeID == "" {
			reason := fmt.Sprintf("caller flow %s has no return node", frame.FlowID)
			d.state.FailTransition(d.state.CurrentNodeID, reason)
			return engine.StepResult{Kind: engine.StepError, Reason: reason}
		}
		d.graph = engine.Graph{Nodes: frame.Nodes, Connections: frame.Connections}
		return engine.StepResult{Kind: engine.StepOK}
	default:
		return res
	}
}

// syncGraph re-resolves the current graph after an undo moved the session to
// a different flow.
func (d *sessionDriver) syncGraph() {
	if d.state.CurrentFlowID == d.rootFlow.ID {
		d.graph = engine.NewGraph(d.rootFlow)
		return
	}
	if f, ok := d.set.Resolve(d.state.CurrentFlowID); ok {
		d.graph = engine.NewGraph(f)
	}
}

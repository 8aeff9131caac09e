package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dshills/fableflow/pkg/engine"
	"github.com/dshills/fableflow/pkg/flow"
	"github.com/dshills/fableflow/pkg/storage"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	var (
		inputFile  string
		flowsDir   string
		maxSteps   int
		outputJSON bool
		noSave     bool
	)

	cmd := &cobra.Command{
		Use:   "run <flow>",
		Short: "Execute a flow to completion",
		Long: `Execute a flow from its start node until it finishes.

The flow is loaded from ~/.fableflow/flows/<flow>.yaml or from the given
file path. Dialogue nodes with multiple valid responses take the first
valid one. The finished session's trace is saved to the session database.

Examples:
  # Run a flow from the flows directory
  fableflow run intro

  # Run with variable overrides from a JSON file
  fableflow run intro --input vars.json

  # Run a flow file with cross-flow jumps resolved from its directory
  fableflow run ./story/act1.yaml --flows-dir ./story`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, set, err := loadFlowAndSet(args[0], flowsDir)
			if err != nil {
				return err
			}

			eng := engine.NewEngine()
			if GlobalConfig.Debug {
				eng = engine.NewEngineWithLogger(engine.NewLogger())
			}
			driver := newSessionDriver(eng, f, set, storage.NewSessionRegistry())
			if maxSteps > 0 {
				driver.state.MaxSteps = maxSteps
			}

			if inputFile != "" {
				if err := applyInputFile(eng, driver.state, inputFile); err != nil {
					return err
				}
			}

			final := runToCompletion(driver)

			if !noSave {
				if err := saveTrace(driver.Finish()); err != nil {
					return fmt.Errorf("failed to save session trace: %w", err)
				}
			}

			if outputJSON {
				return printRunJSON(cmd, driver.state, final)
			}
			printRunSummary(cmd, driver.state, final)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Variable overrides JSON file (ref -> value)")
	cmd.Flags().StringVar(&flowsDir, "flows-dir", "", "Directory of flows for cross-flow jumps (default: the flows directory)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Loop-protection step ceiling (default 1000)")
	cmd.Flags().BoolVar(&outputJSON, "output-json", false, "Output result as JSON")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the session trace")

	return cmd
}

// loadFlowAndSet loads the named flow plus the flow set used to resolve
// cross-flow jumps. The set comes from flowsDir when given, otherwise from
// the configured flows directory when it can be read.
func loadFlowAndSet(arg, flowsDir string) (*flow.Flow, *FlowSet, error) {
	path, err := ResolveFlowPath(arg)
	if err != nil {
		return nil, nil, err
	}
	f, err := flow.LoadFromFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load flow: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, nil, fmt.Errorf("flow validation failed: %w", err)
	}

	dir := flowsDir
	if dir == "" {
		dir = GetFlowsDir()
	}
	set, err := LoadFlowSet(dir)
	if err != nil {
		if flowsDir != "" {
			return nil, nil, err
		}
		// The default flows directory is optional for direct file runs
		set = NewFlowSet()
	}

	return f, set, nil
}

// applyInputFile overrides variables from a JSON file of ref -> value.
func applyInputFile(eng *engine.Engine, s *engine.State, inputFile string) error {
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	var overrides map[string]interface{}
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse input JSON: %w", err)
	}

	refs := make([]string, 0, len(overrides))
	for ref := range overrides {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		if err := eng.SetVariable(s, ref, overrides[ref]); err != nil {
			return fmt.Errorf("failed to set input variable: %w", err)
		}
	}
	return nil
}

// runToCompletion steps until the session finishes. Dialogue waits are
// resolved by choosing the first valid pending response.
func runToCompletion(d *sessionDriver) engine.StepResult {
	for {
		res := d.Step()
		switch res.Kind {
		case engine.StepOK:
			continue
		case engine.StepWaitingInput:
			choice := firstValidChoice(d.state.Pending)
			if choice == "" {
				d.state.FailTransition(d.state.Pending.NodeID, "no valid response to choose")
				return engine.StepResult{Kind: engine.StepError, Reason: "no valid response to choose"}
			}
			chosen, err := d.ChooseResponse(choice)
			if err != nil {
				d.state.FailTransition(d.state.CurrentNodeID, err.Error())
				return engine.StepResult{Kind: engine.StepError, Reason: err.Error()}
			}
			if chosen.Kind != engine.StepOK {
				return chosen
			}
		default:
			return res
		}
	}
}

func firstValidChoice(pending *engine.PendingChoices) string {
	if pending == nil {
		return ""
	}
	for _, resp := range pending.Responses {
		if resp.Valid {
			return resp.ID
		}
	}
	return ""
}

// saveTrace persists the finished session to the trace database.
func saveTrace(s *engine.State) error {
	repo, err := storage.NewSQLiteSessionRepositoryWithPath(GetDatabasePath())
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()
	return repo.Save(storage.NewSessionTrace(s))
}

func printRunJSON(cmd *cobra.Command, s *engine.State, final engine.StepResult) error {
	vars := make(map[string]interface{}, len(s.Variables))
	for ref, entry := range s.Variables {
		vars[ref] = entry.Value
	}
	result := map[string]interface{}{
		"session_id":     s.SessionID.String(),
		"flow_id":        s.CurrentFlowID,
		"result":         string(final.Kind),
		"step_count":     s.StepCount,
		"execution_path": s.ExecutionPath,
		"variables":      vars,
	}
	if final.Reason != "" {
		result["reason"] = final.Reason
	}
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}

func printRunSummary(cmd *cobra.Command, s *engine.State, final engine.StepResult) {
	out := cmd.OutOrStdout()
	if final.Kind == engine.StepError {
		_, _ = fmt.Fprintf(out, "✗ Flow terminated with error: %s\n", final.Reason)
	} else {
		_, _ = fmt.Fprintf(out, "✓ Flow finished in %d steps\n", s.StepCount)
	}
	_, _ = fmt.Fprintf(out, "Session: %s\n", s.SessionID.String())
	_, _ = fmt.Fprintf(out, "Path: %v\n", s.ExecutionPath)

	refs := s.Variables.Refs()
	sort.Strings(refs)
	if len(refs) > 0 {
		_, _ = fmt.Fprintln(out, "\nVariables:")
		for _, ref := range refs {
			entry, _ := s.Variables.Get(ref)
			_, _ = fmt.Fprintf(out, "  %s = %v\n", ref, entry.Value)
		}
	}
}

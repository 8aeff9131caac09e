package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cobra"

	"github.com/dshills/fableflow/pkg/engine"
	"github.com/dshills/fableflow/pkg/storage"
)

// NewDebugCommand creates the debug command
func NewDebugCommand() *cobra.Command {
	var (
		flowsDir string
		maxSteps int
	)

	cmd := &cobra.Command{
		Use:   "debug <flow>",
		Short: "Step through a flow interactively",
		Long: `Open an interactive debug session on a flow.

The debugger steps one node at a time. Every step can be undone, variables
can be inspected and overridden, and breakpoints pause automatic running.
Watch expressions are evaluated against the variable sheets after every
step, e.g. "player.health > 50".

Commands inside the session:
  step, s        execute the current node
  back, b        undo the last operation
  run            step until a breakpoint, input wait or finish
  reset          return to the start node with initial variables
  choose <id>    answer a waiting dialogue node
  vars           show all variables
  set <ref> <v>  override a variable (value parsed as JSON)
  break <node>   toggle a breakpoint
  watch <expr>   add a watch expression
  console        show the execution console
  path           show the execution path
  state          show session status
  quit, q        end the session

Examples:
  fableflow debug intro
  fableflow debug ./story/act1.yaml --flows-dir ./story`,
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
			defer driver.Finish()

			repl := &debugREPL{
				driver: driver,
				out:    cmd.OutOrStdout(),
			}
			return repl.loop(cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&flowsDir, "flows-dir", "", "Directory of flows for cross-flow jumps (default: the flows directory)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Loop-protection step ceiling (default 1000)")

	return cmd
}

// watchExpr is one compiled watch expression.
type watchExpr struct {
	source  string
	program *vm.Program
}

// debugREPL reads debugger commands and applies them to the session.
type debugREPL struct {
	driver  *sessionDriver
	out     io.Writer
	watches []watchExpr
}

func (r *debugREPL) loop(in io.Reader) error {
	s := r.driver.state
	r.printf("Debugging flow %s (session %s)\n", s.CurrentFlowID, s.SessionID.String())
	r.printf("At node %s. Type \"help\" for commands.\n", s.CurrentNodeID)

	scanner := bufio.NewScanner(in)
	for {
		r.printf("(fableflow) ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		command, args := fields[0], fields[1:]

		switch command {
		case "quit", "q", "exit":
			return nil
		case "help", "h":
			r.printHelp()
		case "step", "s":
			r.doStep()
		case "back", "b":
			r.doBack()
		case "run", "continue", "c":
			r.doRun()
		case "reset":
			r.driver.Reset()
			r.printf("Session reset. At node %s.\n", r.driver.state.CurrentNodeID)
		case "choose":
			r.doChoose(args)
		case "vars", "v":
			r.printVars()
		case "set":
			r.doSet(args)
		case "break":
			r.doBreak(args)
		case "watch", "w":
			r.doWatch(strings.TrimSpace(strings.TrimPrefix(line, command)))
		case "console":
			r.printConsole()
		case "path":
			r.printf("%v\n", r.driver.state.ExecutionPath)
		case "state":
			r.printState()
		default:
			r.printf("Unknown command %q. Type \"help\" for commands.\n", command)
		}
	}
}

func (r *debugREPL) doStep() {
	res := r.driver.Step()
	r.report(res)
	r.printWatches()
}

func (r *debugREPL) doBack() {
	if err := r.driver.StepBack(); err != nil {
		r.printf("Cannot step back: %v\n", err)
		return
	}
	s := r.driver.state
	r.printf("Stepped back to node %s (step %d).\n", s.CurrentNodeID, s.StepCount)
	r.printWatches()
}

// doRun steps until something interrupts: a breakpoint, a dialogue wait, the
// end of the flow, or an error.
func (r *debugREPL) doRun() {
	for {
		res := r.driver.Step()
		if res.Kind != engine.StepOK {
			r.report(res)
			break
		}
		if r.driver.state.AtBreakpoint() {
			r.printf("Breakpoint hit at node %s.\n", r.driver.state.CurrentNodeID)
			break
		}
	}
	r.printWatches()
}

func (r *debugREPL) doChoose(args []string) {
	if len(args) != 1 {
		r.printf("Usage: choose <response-id>\n")
		return
	}
	res, err := r.driver.ChooseResponse(args[0])
	if err != nil {
		r.printf("Cannot choose: %v\n", err)
		return
	}
	r.report(res)
	r.printWatches()
}

func (r *debugREPL) doSet(args []string) {
	if len(args) < 2 {
		r.printf("Usage: set <sheet.variable> <value>\n")
		return
	}
	ref := args[0]
	raw := strings.Join(args[1:], " ")

	// Values parse as JSON so numbers, booleans and quoted strings work;
	// anything else is taken as a bare string.
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	if err := r.driver.eng.SetVariable(r.driver.state, ref, value); err != nil {
		r.printf("Cannot set: %v\n", err)
		return
	}
	r.printf("%s = %v\n", ref, value)
}

func (r *debugREPL) doBreak(args []string) {
	if len(args) != 1 {
		r.printf("Usage: break <node-id>\n")
		return
	}
	nodeID := args[0]
	r.driver.eng.ToggleBreakpoint(r.driver.state, nodeID)
	if r.driver.state.HasBreakpoint(nodeID) {
		r.printf("Breakpoint set on node %s.\n", nodeID)
	} else {
		r.printf("Breakpoint removed from node %s.\n", nodeID)
	}
}

func (r *debugREPL) doWatch(source string) {
	if source == "" {
		if len(r.watches) == 0 {
			r.printf("No watch expressions.\n")
			return
		}
		r.printWatches()
		return
	}
	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		r.printf("Cannot compile watch: %v\n", err)
		return
	}
	r.watches = append(r.watches, watchExpr{source: source, program: program})
	r.printf("Watching: %s\n", source)
}

// printWatches evaluates every watch against the current variables, exposed
// to the expression as nested sheet.variable maps.
func (r *debugREPL) printWatches() {
	if len(r.watches) == 0 {
		return
	}
	env := watchEnv(r.driver.state)
	for _, w := range r.watches {
		value, err := expr.Run(w.program, env)
		if err != nil {
			r.printf("  watch %s: error: %v\n", w.source, err)
			continue
		}
		r.printf("  watch %s = %v\n", w.source, value)
	}
}

// watchEnv builds the expression environment: one map per sheet shortcut.
func watchEnv(s *engine.State) map[string]interface{} {
	env := make(map[string]interface{})
	for _, entry := range s.Variables {
		sheet, ok := env[entry.SheetShortcut].(map[string]interface{})
		if !ok {
			sheet = make(map[string]interface{})
			env[entry.SheetShortcut] = sheet
		}
		sheet[entry.VariableName] = entry.Value
	}
	return env
}

func (r *debugREPL) report(res engine.StepResult) {
	s := r.driver.state
	switch res.Kind {
	case engine.StepOK:
		r.printf("Step %d: at node %s.\n", s.StepCount, s.CurrentNodeID)
	case engine.StepWaitingInput:
		r.printf("Waiting for input at node %s:\n", s.Pending.NodeID)
		for _, resp := range s.Pending.Responses {
			if resp.Valid {
				r.printf("  [%s] %s\n", resp.ID, resp.Text)
			} else {
				r.printf("  [%s] %s (unavailable)\n", resp.ID, resp.Text)
			}
		}
		r.printf("Use \"choose <id>\" to continue.\n")
	case engine.StepFinished:
		r.printf("Flow finished after %d steps.\n", s.StepCount)
	case engine.StepError:
		r.printf("Flow terminated with error: %s\n", res.Reason)
	default:
		r.printf("Step result: %s\n", res.Kind)
	}
}

func (r *debugREPL) printVars() {
	s := r.driver.state
	refs := s.Variables.Refs()
	sort.Strings(refs)
	if len(refs) == 0 {
		r.printf("No variables.\n")
		return
	}
	for _, ref := range refs {
		entry, _ := s.Variables.Get(ref)
		r.printf("  %s (%s) = %v\n", ref, entry.BlockType, entry.Value)
	}
}

func (r *debugREPL) printConsole() {
	for _, entry := range r.driver.state.Console {
		if entry.NodeID != "" {
			r.printf("[%s] %s: %s\n", entry.Level, entry.NodeID, entry.Message)
		} else {
			r.printf("[%s] %s\n", entry.Level, entry.Message)
		}
	}
}

func (r *debugREPL) printState() {
	s := r.driver.state
	r.printf("Flow: %s\n", s.CurrentFlowID)
	r.printf("Node: %s\n", s.CurrentNodeID)
	r.printf("Status: %s\n", s.Status)
	r.printf("Steps: %d/%d\n", s.StepCount, s.MaxSteps)
	r.printf("Undo depth: %d\n", len(s.Snapshots))
	if len(s.Breakpoints) > 0 {
		nodes := make([]string, 0, len(s.Breakpoints))
		for nodeID := range s.Breakpoints {
			nodes = append(nodes, nodeID)
		}
		sort.Strings(nodes)
		r.printf("Breakpoints: %s\n", strings.Join(nodes, ", "))
	}
	if len(s.CallStack) > 0 {
		r.printf("Call stack depth: %d\n", len(s.CallStack))
	}
}

func (r *debugREPL) printHelp() {
	r.printf(`Commands:
  step, s        execute the current node
  back, b        undo the last operation
  run            step until a breakpoint, input wait or finish
  reset          return to the start node with initial variables
  choose <id>    answer a waiting dialogue node
  vars           show all variables
  set <ref> <v>  override a variable (value parsed as JSON)
  break <node>   toggle a breakpoint on a node
  watch <expr>   add a watch expression (omit expr to list)
  console        show the execution console
  path           show the execution path
  state          show session status
  quit, q        end the session
`)
}

func (r *debugREPL) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

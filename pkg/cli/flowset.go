package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/fableflow/pkg/flow"
	"github.com/dshills/fableflow/pkg/validation"
)

// FlowSet is a collection of flows loaded from a directory, indexed by flow
// ID and by name. Cross-flow jumps resolve their targets against the set.
type FlowSet struct {
	flows  map[string]*flow.Flow
	byName map[string]*flow.Flow
}

// NewFlowSet creates an empty flow set.
func NewFlowSet() *FlowSet {
	return &FlowSet{
		flows:  make(map[string]*flow.Flow),
		byName: make(map[string]*flow.Flow),
	}
}

// Add registers a flow in the set. A flow with a duplicate ID replaces the
// earlier one.
func (fs *FlowSet) Add(f *flow.Flow) {
	if f.ID != "" {
		fs.flows[f.ID] = f
	}
	if f.Name != "" {
		fs.byName[f.Name] = f
	}
}

// Resolve finds a flow by ID, falling back to name lookup.
func (fs *FlowSet) Resolve(ref string) (*flow.Flow, bool) {
	if f, ok := fs.flows[ref]; ok {
		return f, true
	}
	f, ok := fs.byName[ref]
	return f, ok
}

// Len returns the number of distinct flows in the set.
func (fs *FlowSet) Len() int {
	return len(fs.flows)
}

// IDs returns the flow IDs in the set, sorted.
func (fs *FlowSet) IDs() []string {
	ids := make([]string, 0, len(fs.flows))
	for id := range fs.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadFlowSet loads every flow file (.yaml, .yml, .json) in a directory.
// Subdirectories are not descended into.
func LoadFlowSet(dir string) (*FlowSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow directory: %w", err)
	}

	fs := NewFlowSet()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, err := flow.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load flow %s: %w", entry.Name(), err)
		}
		fs.Add(f)
	}

	return fs, nil
}

// ResolveFlowPath turns a command-line flow argument into a file path. A
// value that names an existing file is used directly; otherwise the argument
// is treated as a flow name and the flows directory is searched for
// <name>.yaml, <name>.yml and <name>.json. Name lookups are confined to the
// flows directory.
func ResolveFlowPath(arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}

	if !validation.IsValidIdentifier(arg) {
		return "", fmt.Errorf("invalid flow name: %s", arg)
	}

	flowsDir := GetFlowsDir()
	validator, err := validation.NewPathValidator(flowsDir)
	if err != nil {
		return "", fmt.Errorf("flows directory unavailable: %w", err)
	}

	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path, err := validator.Validate(arg + ext)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("flow not found: %s\n\nLooked in: %s", arg, flowsDir)
}

package flow

import (
	"github.com/tidwall/gjson"
)

// Logic is the boolean combinator for a rule collection.
type Logic string

const (
	// LogicAll requires every evaluated entry to pass (boolean AND).
	LogicAll Logic = "all"
	// LogicAny requires at least one evaluated entry to pass (boolean OR).
	LogicAny Logic = "any"
)

// normalizeLogic maps unknown logic values to the safe default.
func normalizeLogic(s string) Logic {
	if Logic(s) == LogicAny {
		return LogicAny
	}
	return LogicAll
}

// Rule is a single variable comparison. A rule with a blank sheet or variable
// is incomplete and is skipped during evaluation rather than failing it.
type Rule struct {
	ID       string      `json:"id" yaml:"id,omitempty"`
	Sheet    string      `json:"sheet" yaml:"sheet"`
	Variable string      `json:"variable" yaml:"variable"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    interface{} `json:"value,omitempty" yaml:"value,omitempty"`
}

// IsComplete reports whether the rule can be evaluated at all.
func (r *Rule) IsComplete() bool {
	return r != nil && r.Sheet != "" && r.Variable != ""
}

// Ref returns the environment key the rule reads.
func (r *Rule) Ref() string {
	return RefKey(r.Sheet, r.Variable)
}

// Block is a labeled list of rules combined under one logic mode.
type Block struct {
	ID    string  `json:"id" yaml:"id,omitempty"`
	Logic Logic   `json:"logic" yaml:"logic"`
	Rules []*Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	Label string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// Group is a container of blocks combined under one logic mode. Groups never
// contain other groups: a nested group is stripped during sanitization.
type Group struct {
	ID     string   `json:"id" yaml:"id,omitempty"`
	Logic  Logic    `json:"logic" yaml:"logic"`
	Blocks []*Block `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// TreeEntry is one top-level entry in a block-form condition tree: either a
// Block or a Group.
type TreeEntry interface {
	EntryID() string
	entryKind() string
}

// EntryID returns the block's ID.
func (b *Block) EntryID() string { return b.ID }

func (b *Block) entryKind() string { return "block" }

// EntryID returns the group's ID.
func (g *Group) EntryID() string { return g.ID }

func (g *Group) entryKind() string { return "group" }

// ConditionTree is a boolean rule tree in one of two shapes: flat (a bare
// rule list) or block-form (a list of blocks and groups). Both shapes combine
// their children under the top-level logic.
type ConditionTree struct {
	Logic   Logic
	Rules   []*Rule
	Entries []TreeEntry
}

// IsEmpty reports whether the tree contains nothing to evaluate. An empty
// tree never blocks execution.
func (t *ConditionTree) IsEmpty() bool {
	return t == nil || (len(t.Rules) == 0 && len(t.Entries) == 0)
}

// Sanitize enforces the tree's structural invariants in place: groups may
// only contain blocks. Any group nested inside a group is dropped.
func (t *ConditionTree) Sanitize() {
	if t == nil {
		return
	}
	if t.Logic == "" {
		t.Logic = LogicAll
	}
	for _, entry := range t.Entries {
		group, ok := entry.(*Group)
		if !ok {
			continue
		}
		if group.Logic == "" {
			group.Logic = LogicAll
		}
		kept := make([]*Block, 0, len(group.Blocks))
		for _, block := range group.Blocks {
			if block != nil {
				kept = append(kept, block)
			}
		}
		group.Blocks = kept
	}
}

// ParseConditionString decodes a JSON-encoded condition tree. A nil result
// means no condition: empty input, non-JSON input (legacy plain-text
// conditions) and structurally unusable documents are all treated as the
// absent condition, never as an error.
func ParseConditionString(raw string) *ConditionTree {
	if raw == "" || !gjson.Valid(raw) {
		return nil
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil
	}

	tree := &ConditionTree{Logic: normalizeLogic(doc.Get("logic").String())}

	if rules := doc.Get("rules"); rules.IsArray() {
		for _, r := range rules.Array() {
			tree.Rules = append(tree.Rules, parseRule(r))
		}
	}
	if blocks := doc.Get("blocks"); blocks.IsArray() {
		for _, b := range blocks.Array() {
			if entry := parseTreeEntry(b); entry != nil {
				tree.Entries = append(tree.Entries, entry)
			}
		}
	}
	tree.Sanitize()
	return tree
}

// parseTreeEntry decodes one top-level blocks[] entry. Entries without an
// explicit type are treated as blocks.
func parseTreeEntry(doc gjson.Result) TreeEntry {
	if doc.Get("type").String() == "group" {
		return parseGroup(doc)
	}
	return parseBlock(doc)
}

func parseRule(doc gjson.Result) *Rule {
	return &Rule{
		ID:       doc.Get("id").String(),
		Sheet:    doc.Get("sheet").String(),
		Variable: doc.Get("variable").String(),
		Operator: doc.Get("operator").String(),
		Value:    doc.Get("value").Value(),
	}
}

func parseBlock(doc gjson.Result) *Block {
	block := &Block{
		ID:    doc.Get("id").String(),
		Logic: normalizeLogic(doc.Get("logic").String()),
		Label: doc.Get("label").String(),
	}
	for _, r := range doc.Get("rules").Array() {
		block.Rules = append(block.Rules, parseRule(r))
	}
	return block
}

// parseGroup decodes a group entry. Only child entries that are blocks
// survive: a group inside a group is silently stripped, which keeps the
// two-level nesting invariant at the parse boundary.
func parseGroup(doc gjson.Result) *Group {
	group := &Group{
		ID:    doc.Get("id").String(),
		Logic: normalizeLogic(doc.Get("logic").String()),
	}
	for _, b := range doc.Get("blocks").Array() {
		if b.Get("type").String() == "group" {
			continue
		}
		group.Blocks = append(group.Blocks, parseBlock(b))
	}
	return group
}

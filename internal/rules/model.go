package rules

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyGroup indicates a group with no member rules.
	ErrEmptyGroup = errors.New("group has no rules")

	// ErrSelfDependency indicates a dependency edge from a group to itself.
	ErrSelfDependency = errors.New("dependency references its own group")

	// ErrDanglingReference indicates a group member or dependency endpoint
	// that does not exist in the aggregate.
	ErrDanglingReference = errors.New("dangling reference")
)

// RuleGroup is a cluster of semantically or structurally related rules,
// treated as one decision unit in the generated diagram.
//
// Confidence measures intra-cluster cohesion (mean cosine similarity of
// member embeddings to the centroid), not rule correctness.
type RuleGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Rules       []*Rule   `json:"-"`
	Category    string    `json:"category"`
	Confidence  float64   `json:"confidence"`
	Centroid    []float32 `json:"-"`
}

// RuleIDs returns the member rule ids in group order.
func (g *RuleGroup) RuleIDs() []string {
	ids := make([]string, len(g.Rules))
	for i, r := range g.Rules {
		ids[i] = r.ID
	}
	return ids
}

// Tables returns the distinct tables referenced by member rules, sorted.
func (g *RuleGroup) Tables() []string {
	return collectDistinct(g.Rules, func(r *Rule) []string { return r.Tables })
}

// Columns returns the distinct columns referenced by member rules, sorted.
func (g *RuleGroup) Columns() []string {
	return collectDistinct(g.Rules, func(r *Rule) []string { return r.Columns })
}

// Validate checks the group invariants: at least one member, no duplicate
// members, confidence in [0,1].
func (g *RuleGroup) Validate() error {
	if g.ID == "" {
		return errors.New("group id is empty")
	}
	if len(g.Rules) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyGroup, g.ID)
	}
	if g.Confidence < 0 || g.Confidence > 1 {
		return fmt.Errorf("group %s: %w: %f", g.ID, ErrConfidenceRange, g.Confidence)
	}
	seen := make(map[string]struct{}, len(g.Rules))
	for _, r := range g.Rules {
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("group %s: duplicate member rule %s", g.ID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

// DependencyTypeDataflow marks edges inferred from shared table or column
// references between two groups.
const DependencyTypeDataflow = "dataflow"

// RuleDependency is a directed, weighted edge between two group ids.
// Multiple edges between the same pair with different types are permitted;
// self-edges are not.
type RuleDependency struct {
	SourceID string  `json:"source_group_id"`
	TargetID string  `json:"target_group_id"`
	Type     string  `json:"dependency_type"`
	Strength float64 `json:"strength"`
}

// Validate checks the edge invariants.
func (d RuleDependency) Validate() error {
	if d.SourceID == "" || d.TargetID == "" {
		return errors.New("dependency endpoint is empty")
	}
	if d.SourceID == d.TargetID {
		return fmt.Errorf("%w: %s", ErrSelfDependency, d.SourceID)
	}
	if d.Strength < 0 || d.Strength > 1 {
		return fmt.Errorf("dependency %s->%s: strength %f out of range", d.SourceID, d.TargetID, d.Strength)
	}
	return nil
}

// DecisionModel is the aggregate handed to the diagram generator: every
// surviving rule, every group, every inferred dependency, plus free-form
// run metadata (repository, timestamps, git provenance, statistics).
type DecisionModel struct {
	Rules        []*Rule           `json:"rules"`
	Groups       []*RuleGroup      `json:"groups"`
	Dependencies []RuleDependency  `json:"dependencies"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Group returns the group with the given id, if present.
func (m *DecisionModel) Group(id string) (*RuleGroup, bool) {
	for _, g := range m.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

// Validate checks referential integrity: every rule referenced by a group
// exists in the aggregate rule list, every dependency endpoint names an
// existing group, and all member invariants hold.
func (m *DecisionModel) Validate() error {
	ruleIDs := make(map[string]struct{}, len(m.Rules))
	for _, r := range m.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		ruleIDs[r.ID] = struct{}{}
	}

	groupIDs := make(map[string]struct{}, len(m.Groups))
	for _, g := range m.Groups {
		if err := g.Validate(); err != nil {
			return err
		}
		if _, dup := groupIDs[g.ID]; dup {
			return fmt.Errorf("duplicate group id %s", g.ID)
		}
		groupIDs[g.ID] = struct{}{}
		for _, r := range g.Rules {
			if _, ok := ruleIDs[r.ID]; !ok {
				return fmt.Errorf("%w: group %s references rule %s", ErrDanglingReference, g.ID, r.ID)
			}
		}
	}

	for _, d := range m.Dependencies {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, ok := groupIDs[d.SourceID]; !ok {
			return fmt.Errorf("%w: dependency source %s", ErrDanglingReference, d.SourceID)
		}
		if _, ok := groupIDs[d.TargetID]; !ok {
			return fmt.Errorf("%w: dependency target %s", ErrDanglingReference, d.TargetID)
		}
	}
	return nil
}

// SetMeta records a metadata key, allocating the bag on first use.
func (m *DecisionModel) SetMeta(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string, 1)
	}
	m.Metadata[key] = value
}

// Statistics summarizes an extracted rule set for reports and the
// interchange document.
type Statistics struct {
	TotalRules    int            `json:"total_rules"`
	ByType        map[string]int `json:"by_type"`
	ByFile        map[string]int `json:"by_file"`
	UniqueTables  int            `json:"unique_tables"`
	UniqueColumns int            `json:"unique_columns"`
}

// Stats computes summary statistics over a rule set.
func Stats(rs []*Rule) Statistics {
	st := Statistics{
		TotalRules: len(rs),
		ByType:     make(map[string]int),
		ByFile:     make(map[string]int),
	}
	tables := make(map[string]struct{})
	columns := make(map[string]struct{})
	for _, r := range rs {
		st.ByType[string(r.Type)]++
		st.ByFile[r.Source.FilePath]++
		for _, t := range r.Tables {
			tables[t] = struct{}{}
		}
		for _, c := range r.Columns {
			columns[c] = struct{}{}
		}
	}
	st.UniqueTables = len(tables)
	st.UniqueColumns = len(columns)
	return st
}

func collectDistinct(rs []*Rule, pick func(*Rule) []string) []string {
	set := make(map[string]struct{})
	for _, r := range rs {
		for _, v := range pick(r) {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

package dmn

import (
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// Interchange is the JSON document handed to downstream graph tooling.
// Rules serialize with full provenance; groups carry member ids instead
// of inlined rules to keep the document non-redundant.
type Interchange struct {
	Metadata     map[string]string      `json:"metadata,omitempty"`
	Statistics   rules.Statistics       `json:"statistics"`
	Rules        []*rules.Rule          `json:"rules"`
	Groups       []InterchangeGroup     `json:"groups"`
	Dependencies []rules.RuleDependency `json:"dependencies"`
}

// InterchangeGroup is a group summary with member rule ids.
type InterchangeGroup struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Confidence  float64  `json:"confidence"`
	RuleIDs     []string `json:"rule_ids"`
}

// NewInterchange builds the interchange document for a model.
func NewInterchange(model *rules.DecisionModel) Interchange {
	groups := make([]InterchangeGroup, len(model.Groups))
	for i, g := range model.Groups {
		groups[i] = InterchangeGroup{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			Category:    g.Category,
			Confidence:  g.Confidence,
			RuleIDs:     g.RuleIDs(),
		}
	}

	deps := model.Dependencies
	if deps == nil {
		deps = []rules.RuleDependency{}
	}

	return Interchange{
		Metadata:     model.Metadata,
		Statistics:   rules.Stats(model.Rules),
		Rules:        model.Rules,
		Groups:       groups,
		Dependencies: deps,
	}
}

// MarshalInterchange renders the document as indented JSON.
func MarshalInterchange(model *rules.DecisionModel) ([]byte, error) {
	out, err := json.MarshalIndent(NewInterchange(model), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling interchange document: %w", err)
	}
	return out, nil
}

package cluster

import (
	"math"

	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// sharedRefsSaturation is the shared-name count at which an edge reaches
// full strength. Two or three shared references already indicate a tight
// data coupling between decision units.
const sharedRefsSaturation = 3.0

// InferDependencies emits dataflow edges between groups sharing table
// or column references, one edge in each direction: the graph expresses
// mutual data coupling, not causal precedence. Strength is the
// shared-name count scaled into (0, 1], saturating at
// sharedRefsSaturation.
func InferDependencies(groups []*rules.RuleGroup) []rules.RuleDependency {
	var out []rules.RuleDependency
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			shared := countShared(groups[i].Tables(), groups[j].Tables()) +
				countShared(groups[i].Columns(), groups[j].Columns())
			if shared == 0 {
				continue
			}
			strength := math.Min(1.0, float64(shared)/sharedRefsSaturation)
			out = append(out,
				rules.RuleDependency{
					SourceID: groups[i].ID,
					TargetID: groups[j].ID,
					Type:     rules.DependencyTypeDataflow,
					Strength: strength,
				},
				rules.RuleDependency{
					SourceID: groups[j].ID,
					TargetID: groups[i].ID,
					Type:     rules.DependencyTypeDataflow,
					Strength: strength,
				},
			)
		}
	}
	return out
}

func countShared(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	n := 0
	for _, v := range b {
		if _, ok := set[v]; ok {
			n++
		}
	}
	return n
}

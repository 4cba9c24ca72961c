package cluster

import (
	"fmt"
	"math"
	"testing"

	"github.com/fyrsmithlabs/rulemap/internal/config"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

func embeddedRule(id string, vec []float32, table string) *rules.Rule {
	return &rules.Rule{
		ID:                   id,
		Type:                 rules.TypeConditional,
		Description:          "d",
		NormalizedExpression: id + " > 0",
		Tables:               []string{table},
		Source:               rules.SourceLocation{FilePath: "f.sql", StartLine: 1, EndLine: 1},
		Confidence:           0.9,
		Embedding:            vec,
	}
}

// Two tight bundles on orthogonal axes, slightly perturbed.
func twoBundles() []*rules.Rule {
	return []*rules.Rule{
		embeddedRule("a1", []float32{1, 0, 0.01}, "orders"),
		embeddedRule("a2", []float32{0.99, 0.01, 0}, "orders"),
		embeddedRule("a3", []float32{1, 0.02, 0}, "orders"),
		embeddedRule("b1", []float32{0, 1, 0}, "customers"),
		embeddedRule("b2", []float32{0.01, 0.99, 0}, "customers"),
		embeddedRule("b3", []float32{0, 1, 0.02}, "customers"),
	}
}

func TestCosineSimilarity(t *testing.T) {
	if sim := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(sim-1) > 1e-9 {
		t.Errorf("identical vectors similarity = %f, want 1", sim)
	}
	if sim := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(sim) > 1e-9 {
		t.Errorf("orthogonal vectors similarity = %f, want 0", sim)
	}
	if sim := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); sim != 0 {
		t.Errorf("mismatched dimensions similarity = %f, want 0", sim)
	}
}

func TestKMeansSeparatesBundles(t *testing.T) {
	rs := twoBundles()
	c := New(config.ClusteringConfig{Method: config.MethodKMeans, Clusters: 2}, nil)

	groups := c.Cluster(rs)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	for _, g := range groups {
		if len(g.Rules) != 3 {
			t.Errorf("group %s has %d members, want 3", g.ID, len(g.Rules))
		}
		prefix := g.Rules[0].ID[:1]
		for _, r := range g.Rules {
			if r.ID[:1] != prefix {
				t.Errorf("group %s mixes bundles: %v", g.ID, g.RuleIDs())
			}
		}
		if g.Confidence <= 0.9 || g.Confidence > 1 {
			t.Errorf("group %s confidence = %f, want tight cohesion in (0.9, 1]", g.ID, g.Confidence)
		}
	}
}

func TestClusterCoversEveryRuleOnce(t *testing.T) {
	// One bare rule routes the whole batch through the structural
	// fallback, regardless of the configured method.
	rs := twoBundles()
	rs = append(rs, &rules.Rule{
		ID: "bare1", Type: rules.TypeConstraint, Description: "d",
		NormalizedExpression: "price > 0",
		Source:               rules.SourceLocation{FilePath: "schema.sql", StartLine: 1, EndLine: 1},
		Confidence:           0.95,
	})

	for _, method := range []string{config.MethodKMeans, config.MethodHierarchical} {
		c := New(config.ClusteringConfig{Method: method, Clusters: 2}, nil)
		groups := c.Cluster(rs)

		seen := make(map[string]int)
		for _, g := range groups {
			if g.Confidence != structuralConfidence {
				t.Errorf("%s: group %s confidence = %f, want structural %f", method, g.ID, g.Confidence, structuralConfidence)
			}
			for _, id := range g.RuleIDs() {
				seen[id]++
			}
		}
		if len(seen) != len(rs) {
			t.Errorf("%s: %d rules grouped, want %d", method, len(seen), len(rs))
		}
		for id, n := range seen {
			if n != 1 {
				t.Errorf("%s: rule %s appears in %d groups", method, id, n)
			}
		}
	}
}

func TestMixedBatchGroupsStructurally(t *testing.T) {
	rs := []*rules.Rule{
		embeddedRule("e1", []float32{1, 0, 0}, "orders"),
		embeddedRule("e2", []float32{0, 1, 0}, "orders"),
		{
			ID: "bare1", Type: rules.TypeConditional, Description: "d",
			NormalizedExpression: "price > 0",
			Source:               rules.SourceLocation{FilePath: "f.sql", StartLine: 9, EndLine: 9},
			Confidence:           0.95,
		},
	}

	groups := New(config.ClusteringConfig{Method: config.MethodKMeans, Clusters: 2}, nil).Cluster(rs)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1 shared (file, type) group", len(groups))
	}
	if len(groups[0].Rules) != 3 {
		t.Errorf("group has %d members, want all 3", len(groups[0].Rules))
	}
	if groups[0].Confidence != structuralConfidence {
		t.Errorf("confidence = %f, want %f", groups[0].Confidence, structuralConfidence)
	}
}

func TestDBSCANNoiseDrop(t *testing.T) {
	rs := []*rules.Rule{
		embeddedRule("a1", []float32{1, 0, 0}, "orders"),
		embeddedRule("a2", []float32{0.99, 0.01, 0}, "orders"),
		embeddedRule("a3", []float32{1, 0.01, 0.01}, "orders"),
		embeddedRule("outlier", []float32{0, 0, 1}, "misc"),
	}

	c := New(config.ClusteringConfig{
		Method: config.MethodDBSCAN, Eps: 0.1, MinSamples: 2,
		NoisePolicy: config.NoiseDrop,
	}, nil)

	groups := c.Cluster(rs)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1 (outlier dropped)", len(groups))
	}
	if len(groups[0].Rules) != 3 {
		t.Errorf("group has %d members, want 3", len(groups[0].Rules))
	}
}

func TestDBSCANNoiseIsolate(t *testing.T) {
	rs := []*rules.Rule{
		embeddedRule("a1", []float32{1, 0, 0}, "orders"),
		embeddedRule("a2", []float32{0.99, 0.01, 0}, "orders"),
		embeddedRule("outlier", []float32{0, 0, 1}, "misc"),
	}

	c := New(config.ClusteringConfig{
		Method: config.MethodDBSCAN, Eps: 0.1, MinSamples: 2,
		NoisePolicy: config.NoiseIsolate,
	}, nil)

	groups := c.Cluster(rs)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2 (outlier isolated)", len(groups))
	}

	last := groups[len(groups)-1]
	if len(last.Rules) != 1 || last.Rules[0].ID != "outlier" {
		t.Fatalf("isolated group members = %v", last.RuleIDs())
	}
	if last.Confidence != 1.0 {
		t.Errorf("singleton confidence = %f, want 1.0", last.Confidence)
	}
}

func TestStructuralFallback(t *testing.T) {
	mk := func(id, file string, typ rules.Type) *rules.Rule {
		return &rules.Rule{
			ID: id, Type: typ, Description: "d", NormalizedExpression: id,
			Source:     rules.SourceLocation{FilePath: file, StartLine: 1, EndLine: 1},
			Confidence: 0.9,
		}
	}
	rs := []*rules.Rule{
		mk("r1", "a.sql", rules.TypeConditional),
		mk("r2", "a.sql", rules.TypeConditional),
		mk("r3", "a.sql", rules.TypeConstraint),
		mk("r4", "b.sql", rules.TypeConditional),
	}

	groups := New(config.ClusteringConfig{Method: config.MethodKMeans, Clusters: 5}, nil).Cluster(rs)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3 (file x type)", len(groups))
	}
	for _, g := range groups {
		if g.Confidence != structuralConfidence {
			t.Errorf("group %s confidence = %f, want %f", g.ID, g.Confidence, structuralConfidence)
		}
	}
	if groups[0].RuleIDs()[0] != "r1" || len(groups[0].Rules) != 2 {
		t.Errorf("first group members = %v", groups[0].RuleIDs())
	}
}

func TestGroupIDsStable(t *testing.T) {
	c := New(config.ClusteringConfig{Method: config.MethodKMeans, Clusters: 2}, nil)

	first := c.Cluster(twoBundles())
	second := c.Cluster(twoBundles())
	if len(first) != len(second) {
		t.Fatalf("group counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("group %d id differs: %s vs %s", i, first[i].ID, second[i].ID)
		}
		if first[i].ID != fmt.Sprintf("group_%d", i+1) {
			t.Errorf("group id = %s, want group_%d", first[i].ID, i+1)
		}
		if first[i].Name != second[i].Name {
			t.Errorf("group %d name differs: %s vs %s", i, first[i].Name, second[i].Name)
		}
	}
}

func group(id string, tables, columns []string) *rules.RuleGroup {
	return &rules.RuleGroup{
		ID: id, Name: id, Confidence: 1.0,
		Rules: []*rules.Rule{{
			ID: "r_" + id, Type: rules.TypeConditional, Description: "d",
			NormalizedExpression: "x > 1",
			Tables:               tables,
			Columns:              columns,
			Source:               rules.SourceLocation{FilePath: "f.sql", StartLine: 1, EndLine: 1},
			Confidence:           0.9,
		}},
	}
}

func TestCategoryFromConceptTags(t *testing.T) {
	rs := []*rules.Rule{
		embeddedRule("a1", []float32{1, 0, 0}, "orders"),
		embeddedRule("a2", []float32{0.99, 0.01, 0}, "orders"),
		embeddedRule("a3", []float32{1, 0.02, 0}, "orders"),
	}
	rs[0].SetMeta(rules.MetadataDomainConcepts, "pricing,order")
	rs[1].SetMeta(rules.MetadataDomainConcepts, "pricing")

	groups := New(config.ClusteringConfig{Method: config.MethodKMeans, Clusters: 1}, nil).Cluster(rs)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].Category != "Pricing" {
		t.Errorf("category = %q, want Pricing (most frequent tag, title-cased)", groups[0].Category)
	}
	if groups[0].Name != "orders Pricing rules" {
		t.Errorf("name = %q", groups[0].Name)
	}
}

func TestCategoryFallsBackToRuleType(t *testing.T) {
	rs := []*rules.Rule{
		embeddedRule("a1", []float32{1, 0, 0}, "orders"),
		embeddedRule("a2", []float32{0.99, 0.01, 0}, "orders"),
	}

	groups := New(config.ClusteringConfig{Method: config.MethodKMeans, Clusters: 1}, nil).Cluster(rs)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].Category != string(rules.TypeConditional) {
		t.Errorf("category = %q, want rule-type fallback", groups[0].Category)
	}
}

func TestInferDependencies(t *testing.T) {
	groups := []*rules.RuleGroup{
		group("group_1", []string{"orders"}, []string{"total"}),
		group("group_2", []string{"orders"}, []string{"status"}),
		group("group_3", []string{"inventory"}, []string{"stock"}),
	}

	deps := InferDependencies(groups)
	if len(deps) != 2 {
		t.Fatalf("got %d edges, want 2 (one each direction)", len(deps))
	}

	d := deps[0]
	if d.SourceID != "group_1" || d.TargetID != "group_2" {
		t.Errorf("edge = %s->%s", d.SourceID, d.TargetID)
	}
	back := deps[1]
	if back.SourceID != "group_2" || back.TargetID != "group_1" {
		t.Errorf("reverse edge = %s->%s", back.SourceID, back.TargetID)
	}
	for _, d := range deps {
		if d.Type != rules.DependencyTypeDataflow {
			t.Errorf("type = %s", d.Type)
		}
		if math.Abs(d.Strength-1.0/3.0) > 1e-9 {
			t.Errorf("strength = %f, want 1/3 for one shared table", d.Strength)
		}
		if err := d.Validate(); err != nil {
			t.Errorf("edge invalid: %v", err)
		}
	}
}

func TestInferDependenciesSaturates(t *testing.T) {
	groups := []*rules.RuleGroup{
		group("group_1", []string{"orders", "customers"}, []string{"total", "status"}),
		group("group_2", []string{"orders", "customers"}, []string{"total", "status"}),
	}

	deps := InferDependencies(groups)
	if len(deps) != 2 {
		t.Fatalf("got %d edges, want 2", len(deps))
	}
	if deps[0].Strength != 1.0 {
		t.Errorf("strength = %f, want saturation at 1.0", deps[0].Strength)
	}
}

func TestHierarchicalTargetCount(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0}, {0.99, 0.01, 0},
		{0, 1, 0}, {0.01, 0.99, 0},
		{0, 0, 1},
	}
	clusters := hierarchical(vectors, 3)
	if len(clusters) != 3 {
		t.Fatalf("got %d clusters, want 3", len(clusters))
	}

	total := 0
	for _, c := range clusters {
		total += len(c)
	}
	if total != len(vectors) {
		t.Errorf("clustered %d points, want %d", total, len(vectors))
	}
}

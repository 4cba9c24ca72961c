package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/rulemap/internal/embeddings"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

func sampleRule(id, expr, desc string) *rules.Rule {
	return &rules.Rule{
		ID:                   id,
		Type:                 rules.TypeConditional,
		Description:          desc,
		NormalizedExpression: expr,
		Source:               rules.SourceLocation{FilePath: "pricing.sql", StartLine: 1, EndLine: 1},
		Confidence:           0.9,
	}
}

func TestEnrichWithStubAdapter(t *testing.T) {
	rs := []*rules.Rule{
		sampleRule("rule_1", "total > 1000", "CASE condition: total > 1000"),
		sampleRule("rule_2", "price > 0", "CHECK constraint: price > 0"),
	}

	e := New(NewStubAdapter(), true, nil)
	if err := e.Enrich(context.Background(), rs); err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	for _, r := range rs {
		if len(r.Embedding) != embeddings.StubDimension {
			t.Errorf("rule %s embedding dimension = %d, want %d", r.ID, len(r.Embedding), embeddings.StubDimension)
		}
		if r.Description == "" {
			t.Errorf("rule %s lost its description", r.ID)
		}
	}
	if got := rs[0].Metadata[MetadataConceptsKey]; !strings.Contains(got, "pricing") {
		t.Errorf("concepts for total rule = %q, want pricing", got)
	}
}

func TestEnrichDeterministicEmbeddings(t *testing.T) {
	mk := func() []*rules.Rule { return []*rules.Rule{sampleRule("rule_1", "total > 1000", "d")} }

	a, b := mk(), mk()
	e := New(NewStubAdapter(), false, nil)
	if err := e.Enrich(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if err := e.Enrich(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	for i := range a[0].Embedding {
		if a[0].Embedding[i] != b[0].Embedding[i] {
			t.Fatal("same rule embedded differently across runs")
		}
	}
}

func TestStubAdapterFillsBlankDescription(t *testing.T) {
	r := sampleRule("rule_1", "total > 1000", "")
	desc, err := NewStubAdapter().Description(context.Background(), r)
	if err != nil {
		t.Fatalf("Description: %v", err)
	}
	if desc == "" {
		t.Error("blank description not filled")
	}
	if !strings.Contains(desc, "pricing.sql") {
		t.Errorf("description = %q, want file name", desc)
	}
}

// failingAdapter errors on a single rule id to exercise isolation.
type failingAdapter struct {
	inner  Adapter
	failID string
}

func (f *failingAdapter) Embedding(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "poison") {
		return nil, errors.New("provider unavailable")
	}
	return f.inner.Embedding(ctx, text)
}

func (f *failingAdapter) Description(ctx context.Context, r *rules.Rule) (string, error) {
	if r.ID == f.failID {
		return "", errors.New("provider unavailable")
	}
	return f.inner.Description(ctx, r)
}

func TestEnrichIsolatesPerRuleFailures(t *testing.T) {
	rs := []*rules.Rule{
		sampleRule("rule_bad", "poison > 1", "has poison marker"),
		sampleRule("rule_good", "total > 1000", "fine"),
	}

	e := New(&failingAdapter{inner: NewStubAdapter(), failID: "rule_bad"}, false, nil)
	if err := e.Enrich(context.Background(), rs); err != nil {
		t.Fatalf("Enrich returned error for per-rule failure: %v", err)
	}

	if rs[0].Embedding != nil {
		t.Error("failed rule unexpectedly embedded")
	}
	if rs[0].Description != "has poison marker" {
		t.Errorf("failed rule description changed to %q", rs[0].Description)
	}
	if rs[1].Embedding == nil {
		t.Error("healthy rule not embedded after sibling failure")
	}
}

func TestEnrichHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(NewStubAdapter(), false, nil).Enrich(ctx, []*rules.Rule{sampleRule("r", "a > 1", "d")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestEmbeddingText(t *testing.T) {
	r := sampleRule("rule_1", "total > 1000", "High order check")
	r.Tables = []string{"orders"}
	r.Columns = []string{"total"}

	got := EmbeddingText(r)
	want := "High order check | total > 1000 | orders | total"
	if got != want {
		t.Errorf("EmbeddingText = %q, want %q", got, want)
	}

	empty := &rules.Rule{ID: "rule_x"}
	if EmbeddingText(empty) != "rule_x" {
		t.Errorf("empty rule text = %q, want rule id fallback", EmbeddingText(empty))
	}
}

func TestConcepts(t *testing.T) {
	tests := []struct {
		expr string
		desc string
		want []string
	}{
		{"price > 0 and stock_quantity >= 0", "", []string{"inventory", "pricing"}},
		{"customer.balance < credit_limit", "", []string{"customer", "payment"}},
		{"x > 1", "technical counter", nil},
	}
	for _, tt := range tests {
		r := sampleRule("r", tt.expr, tt.desc)
		got := Concepts(r)
		if len(got) != len(tt.want) {
			t.Errorf("Concepts(%q) = %v, want %v", tt.expr, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Concepts(%q) = %v, want %v", tt.expr, got, tt.want)
				break
			}
		}
	}
}

package enrich

import (
	"context"

	"github.com/fyrsmithlabs/rulemap/internal/embeddings"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// LLMAdapter combines a real embedding provider with an optional LLM
// describer. A nil describer leaves extractor descriptions untouched.
type LLMAdapter struct {
	provider  embeddings.Provider
	describer *ClaudeDescriber
}

// NewLLMAdapter creates an adapter over the given provider and describer.
func NewLLMAdapter(provider embeddings.Provider, describer *ClaudeDescriber) *LLMAdapter {
	return &LLMAdapter{provider: provider, describer: describer}
}

// Embedding delegates to the configured embedding provider.
func (a *LLMAdapter) Embedding(ctx context.Context, text string) ([]float32, error) {
	return a.provider.EmbedQuery(ctx, text)
}

// Description asks the describer for a rewritten description, or returns
// the current one when describing is disabled.
func (a *LLMAdapter) Description(ctx context.Context, r *rules.Rule) (string, error) {
	if a.describer == nil {
		return r.Description, nil
	}
	return a.describer.Describe(ctx, r)
}

var _ Adapter = (*LLMAdapter)(nil)

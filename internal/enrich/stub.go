package enrich

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fyrsmithlabs/rulemap/internal/embeddings"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// StubAdapter enriches offline: deterministic embeddings and templated
// descriptions. It is the default adapter, so analysis runs need no
// model download or API key.
type StubAdapter struct {
	provider *embeddings.StubProvider
}

// NewStubAdapter creates the offline enrichment adapter.
func NewStubAdapter() *StubAdapter {
	return &StubAdapter{provider: embeddings.NewStubProvider()}
}

// Embedding returns a deterministic vector for the text.
func (a *StubAdapter) Embedding(ctx context.Context, text string) ([]float32, error) {
	return a.provider.EmbedQuery(ctx, text)
}

// Description keeps the extractor's description and only fills blanks
// with a minimal template.
func (a *StubAdapter) Description(_ context.Context, r *rules.Rule) (string, error) {
	if r.Description != "" {
		return r.Description, nil
	}
	return fmt.Sprintf("%s rule from %s", r.Type, filepath.Base(r.Source.FilePath)), nil
}

var _ Adapter = (*StubAdapter)(nil)

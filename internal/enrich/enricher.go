// Package enrich augments normalized rules with embeddings, descriptions,
// and domain-concept tags. Enrichment is best-effort per rule: a failing
// rule is logged and skipped, never aborting the batch.
package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// Adapter produces embeddings and descriptions for rules.
type Adapter interface {
	// Embedding returns a vector for the rule's embedding text.
	Embedding(ctx context.Context, text string) ([]float32, error)
	// Description returns a human-readable description for the rule.
	Description(ctx context.Context, r *rules.Rule) (string, error)
}

// Enricher applies an adapter to every rule in a batch.
type Enricher struct {
	adapter  Adapter
	concepts bool
	logger   *logging.Logger
}

// New creates an enricher. When concepts is true, each rule is also
// tagged with matching domain concepts in its metadata.
func New(adapter Adapter, concepts bool, logger *logging.Logger) *Enricher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Enricher{
		adapter:  adapter,
		concepts: concepts,
		logger:   logger.Named("enrich"),
	}
}

// Enrich fills embeddings, descriptions, and concept tags in place.
// Individual rule failures are logged and skipped; only context
// cancellation aborts the batch.
func (e *Enricher) Enrich(ctx context.Context, rs []*rules.Rule) error {
	var failed int
	for _, r := range rs {
		if err := ctx.Err(); err != nil {
			return err
		}

		vec, err := e.adapter.Embedding(ctx, EmbeddingText(r))
		if err != nil {
			failed++
			e.logger.Warn("embedding failed, rule left unembedded",
				zap.String("rule_id", r.ID),
				zap.Error(err),
			)
		} else {
			r.Embedding = vec
		}

		desc, err := e.adapter.Description(ctx, r)
		if err != nil {
			e.logger.Warn("description failed, keeping extractor description",
				zap.String("rule_id", r.ID),
				zap.Error(err),
			)
		} else if desc != "" {
			r.Description = desc
		}

		if e.concepts {
			tagConcepts(r)
		}
	}

	e.logger.Info("enrichment complete",
		zap.Int("rules", len(rs)),
		zap.Int("embedding_failures", failed),
	)
	return nil
}

// EmbeddingText builds the text embedded for a rule: description,
// canonical expression, and referenced tables and columns.
func EmbeddingText(r *rules.Rule) string {
	parts := make([]string, 0, 4)
	if r.Description != "" {
		parts = append(parts, r.Description)
	}
	if r.NormalizedExpression != "" {
		parts = append(parts, r.NormalizedExpression)
	}
	if len(r.Tables) > 0 {
		parts = append(parts, strings.Join(r.Tables, " "))
	}
	if len(r.Columns) > 0 {
		parts = append(parts, strings.Join(r.Columns, " "))
	}
	if len(parts) == 0 {
		return r.ID
	}
	return strings.Join(parts, " | ")
}

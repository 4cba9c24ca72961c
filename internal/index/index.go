// Package index persists rule embeddings for semantic search. Two
// backends are supported: chromem-go for embedded zero-service storage
// and Qdrant over gRPC for a shared server.
package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fyrsmithlabs/rulemap/internal/config"
	"github.com/fyrsmithlabs/rulemap/internal/embeddings"
	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

var (
	ErrInvalidConfig      = errors.New("invalid index config")
	ErrEmptyDocuments     = errors.New("no documents to index")
	ErrCollectionNotFound = errors.New("collection not found")
)

// Document is one indexable unit, usually a single rule.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Hit is one search result, best first.
type Hit struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Store indexes documents and answers similarity queries.
type Store interface {
	Index(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, k int) ([]Hit, error)
	Close() error
}

// New selects a store backend from configuration.
func New(cfg config.IndexConfig, provider embeddings.Provider, logger *logging.Logger) (Store, error) {
	switch cfg.Provider {
	case config.IndexChromem, "":
		return NewChromemStore(cfg, provider, logger)
	case config.IndexQdrant:
		return NewQdrantStore(cfg, provider, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// DocumentsFromRules converts rules to indexable documents. Content is
// the rule's description and normalized expression; source coordinates
// ride along as metadata for result display.
func DocumentsFromRules(rs []*rules.Rule) []Document {
	docs := make([]Document, 0, len(rs))
	for _, r := range rs {
		content := r.Description
		if r.NormalizedExpression != "" {
			if content != "" {
				content += "\n"
			}
			content += r.NormalizedExpression
		}
		if content == "" {
			content = r.ID
		}
		docs = append(docs, Document{
			ID:      r.ID,
			Content: content,
			Metadata: map[string]string{
				"rule_type":  string(r.Type),
				"file":       r.Source.FilePath,
				"start_line": strconv.Itoa(r.Source.StartLine),
				"confidence": strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			},
		})
	}
	return docs
}

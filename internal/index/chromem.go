package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rulemap/internal/config"
	"github.com/fyrsmithlabs/rulemap/internal/embeddings"
	"github.com/fyrsmithlabs/rulemap/internal/logging"
)

// ChromemStore persists the index in an embedded chromem-go database.
// No external service is required; data lives in gob files under the
// configured path.
type ChromemStore struct {
	db         *chromem.DB
	provider   embeddings.Provider
	collection string
	logger     *logging.Logger
}

// NewChromemStore opens (or creates) a persistent database at the
// configured path.
func NewChromemStore(cfg config.IndexConfig, provider embeddings.Provider, logger *logging.Logger) (*ChromemStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding index path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("opening chromem db: %w", err)
	}

	log := logger.Named("index")
	log.Info("chromem index opened",
		zap.String("path", path),
		zap.String("collection", cfg.Collection),
	)
	return &ChromemStore{
		db:         db,
		provider:   provider,
		collection: cfg.Collection,
		logger:     log,
	}, nil
}

// Index embeds and stores the documents, replacing entries that share an id.
func (s *ChromemStore) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	col, err := s.db.GetOrCreateCollection(s.collection, nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("getting collection %s: %w", s.collection, err)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d documents: %w", len(docs), err)
	}

	cdocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		cdocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  d.Metadata,
			Embedding: vectors[i],
		}
	}
	// Embeddings are precomputed, so no add concurrency is needed.
	if err := col.AddDocuments(ctx, cdocs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	s.logger.Info("indexed documents",
		zap.String("collection", s.collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Search returns the k most similar documents to the query.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	col := s.db.GetCollection(s.collection, s.embeddingFunc())
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
	}

	// chromem requires nResults <= stored document count.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	if k <= 0 {
		k = 1
	}

	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", s.collection, err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}
	return hits, nil
}

// Close releases nothing: chromem persists on write.
func (s *ChromemStore) Close() error {
	return nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.provider.EmbedQuery(ctx, text)
	}
}

// expandPath resolves a leading ~ against the user's home directory.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/rulemap/internal/config"
	"github.com/fyrsmithlabs/rulemap/internal/embeddings"
	"github.com/fyrsmithlabs/rulemap/internal/logging"
)

const (
	qdrantMaxMessageSize = 50 * 1024 * 1024
	qdrantRequestTimeout = 30 * time.Second
	qdrantRetryAttempts  = 3

	payloadRuleID  = "rule_id"
	payloadContent = "content"
)

// QdrantStore indexes rules in a Qdrant server over gRPC.
type QdrantStore struct {
	client     *qdrant.Client
	provider   embeddings.Provider
	collection string
	logger     *logging.Logger
}

// NewQdrantStore connects to the configured Qdrant server. The
// collection is created on first index with cosine distance at the
// provider's dimension.
func NewQdrantStore(cfg config.IndexConfig, provider embeddings.Provider, logger *logging.Logger) (*QdrantStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	qcfg := &qdrant.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		UseTLS: cfg.Qdrant.UseTLS,
		APIKey: cfg.Qdrant.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(qdrantMaxMessageSize),
				grpc.MaxCallSendMsgSize(qdrantMaxMessageSize),
			),
		},
	}
	if !cfg.Qdrant.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		provider:   provider,
		collection: cfg.Collection,
		logger:     logger.Named("index"),
	}, nil
}

// Index embeds and upserts the documents. Point ids are UUIDs derived
// from the document id, so re-indexing the same rule overwrites its
// previous point.
func (s *QdrantStore) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d documents: %w", len(docs), err)
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		payload := make(map[string]*qdrant.Value, len(d.Metadata)+2)
		for k, v := range d.Metadata {
			payload[k] = stringValue(v)
		}
		payload[payloadRuleID] = stringValue(d.ID)
		payload[payloadContent] = stringValue(d.Content)

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(d.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, qdrantRequestTimeout)
	defer cancel()
	err = s.retry(ctx, func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	s.logger.Info("indexed documents",
		zap.String("collection", s.collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Search embeds the query and returns the k nearest points.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	vector, err := s.provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if k <= 0 {
		k = 1
	}

	ctx, cancel := context.WithTimeout(ctx, qdrantRequestTimeout)
	defer cancel()
	var results []*qdrant.ScoredPoint
	err = s.retry(ctx, func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
		}
		return nil, fmt.Errorf("querying %s: %w", s.collection, err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hit := Hit{Score: r.Score, Metadata: make(map[string]string)}
		for k, v := range r.Payload {
			switch k {
			case payloadRuleID:
				hit.ID = v.GetStringValue()
			case payloadContent:
				hit.Content = v.GetStringValue()
			default:
				hit.Metadata[k] = v.GetStringValue()
			}
		}
		hits[i] = hit
	}
	return hits, nil
}

// Close shuts down the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.provider.Dimension()),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.collection, err)
	}
	s.logger.Info("created qdrant collection",
		zap.String("collection", s.collection),
		zap.Int("dimension", s.provider.Dimension()),
	)
	return nil
}

// retry re-runs the operation on transient gRPC failures with doubling
// backoff.
func (s *QdrantStore) retry(ctx context.Context, op func() error) error {
	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt < qdrantRetryAttempts; attempt++ {
		if err := op(); err == nil {
			return nil
		} else if !isTransient(err) {
			return err
		} else {
			lastErr = err
		}

		if attempt == qdrantRetryAttempts-1 {
			break
		}
		s.logger.Warn("retrying qdrant operation",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

func isTransient(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

// pointID derives a stable UUID from a rule id, since Qdrant point ids
// must be UUIDs or integers.
func pointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
}

func stringValue(v string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
}

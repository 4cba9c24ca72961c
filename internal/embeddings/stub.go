package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
)

// StubDimension is the vector size of the deterministic stub provider,
// matching the bge-small models so index dimensions stay compatible.
const StubDimension = 384

// StubProvider derives a unit vector from a content digest of the input.
// The same text always yields the same vector, so runs are reproducible
// without a model download or a network dependency.
type StubProvider struct {
	dimension int
}

// NewStubProvider creates the deterministic offline provider.
func NewStubProvider() *StubProvider {
	return &StubProvider{dimension: StubDimension}
}

// EmbedDocuments generates deterministic embeddings for multiple texts.
func (p *StubProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		vec, err := p.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// EmbedQuery generates a deterministic embedding for a single text.
func (p *StubProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	digest := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(digest[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float64, p.dimension)
	var norm float64
	for i := range vec {
		vec[i] = rng.NormFloat64()
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, p.dimension)
	for i := range vec {
		out[i] = float32(vec[i] / norm)
	}
	return out, nil
}

// Dimension returns the stub vector size.
func (p *StubProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op for the stub.
func (p *StubProvider) Close() error {
	return nil
}

package cluster

import "math"

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched or zero-magnitude inputs yield 0.
func CosineSimilarity(vec1, vec2 []float32) float64 {
	if len(vec1) == 0 || len(vec1) != len(vec2) {
		return 0.0
	}

	var dot, mag1, mag2 float64
	for i := 0; i < len(vec1); i++ {
		v1 := float64(vec1[i])
		v2 := float64(vec2[i])
		dot += v1 * v2
		mag1 += v1 * v1
		mag2 += v2 * v2
	}
	if mag1 == 0.0 || mag2 == 0.0 {
		return 0.0
	}
	return dot / (math.Sqrt(mag1) * math.Sqrt(mag2))
}

// cosineDistance is 1 - similarity, clamped to [0, 2].
func cosineDistance(vec1, vec2 []float32) float64 {
	return 1.0 - CosineSimilarity(vec1, vec2)
}

// centroid computes the element-wise mean of the vectors. All vectors
// must share one dimension; nil is returned for empty input.
func centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, vec := range vectors {
		for i, v := range vec {
			sum[i] += float64(v)
		}
	}
	out := make([]float32, dim)
	n := float64(len(vectors))
	for i := range sum {
		out[i] = float32(sum[i] / n)
	}
	return out
}

package cluster

// hierarchical performs agglomerative clustering with average linkage
// under cosine distance, merging until targetClusters remain.
func hierarchical(vectors [][]float32, targetClusters int) [][]int {
	n := len(vectors)
	if n == 0 {
		return nil
	}
	if targetClusters < 1 {
		targetClusters = 1
	}
	if targetClusters > n {
		targetClusters = n
	}

	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}

	for len(clusters) > targetClusters {
		bestA, bestB := -1, -1
		bestDist := 0.0
		for a := 0; a < len(clusters); a++ {
			for b := a + 1; b < len(clusters); b++ {
				d := averageLinkage(vectors, clusters[a], clusters[b])
				if bestA == -1 || d < bestDist {
					bestA, bestB = a, b
					bestDist = d
				}
			}
		}

		merged := append(append([]int{}, clusters[bestA]...), clusters[bestB]...)
		next := make([][]int, 0, len(clusters)-1)
		for i, c := range clusters {
			if i == bestA || i == bestB {
				continue
			}
			next = append(next, c)
		}
		clusters = append(next, merged)
	}
	return clusters
}

// averageLinkage is the mean pairwise cosine distance between two
// clusters' members.
func averageLinkage(vectors [][]float32, a, b []int) float64 {
	var sum float64
	for _, i := range a {
		for _, j := range b {
			sum += cosineDistance(vectors[i], vectors[j])
		}
	}
	return sum / float64(len(a)*len(b))
}

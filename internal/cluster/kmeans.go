package cluster

const kmeansMaxIterations = 100

// kmeans partitions vectors into at most k clusters and returns the
// member index list per cluster. Initial centroids are evenly spaced
// over the input, so runs are deterministic for identical input order.
func kmeans(vectors [][]float32, k int) [][]int {
	n := len(vectors)
	if n == 0 {
		return nil
	}
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}

	centroids := make([][]float32, k)
	for i := 0; i < k; i++ {
		centroids[i] = vectors[i*n/k]
	}

	assignments := make([]int, n)
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, vec := range vectors {
			best := nearestCentroid(vec, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		for c := 0; c < k; c++ {
			var members [][]float32
			for i, a := range assignments {
				if a == c {
					members = append(members, vectors[i])
				}
			}
			// An emptied cluster keeps its previous centroid.
			if len(members) > 0 {
				centroids[c] = centroid(members)
			}
		}
	}

	clusters := make([][]int, k)
	for i, a := range assignments {
		clusters[a] = append(clusters[a], i)
	}

	out := make([][]int, 0, k)
	for _, members := range clusters {
		if len(members) > 0 {
			out = append(out, members)
		}
	}
	return out
}

func nearestCentroid(vec []float32, centroids [][]float32) int {
	best := 0
	bestSim := -2.0
	for c, cent := range centroids {
		if sim := CosineSimilarity(vec, cent); sim > bestSim {
			bestSim = sim
			best = c
		}
	}
	return best
}

package cluster

const (
	dbscanUnvisited = 0
	dbscanNoise     = -1
)

// dbscan labels vectors by density reachability under cosine distance.
// It returns the member index list per cluster plus the indexes labeled
// noise. A point is a core point when at least minSamples points
// (itself included) lie within eps.
func dbscan(vectors [][]float32, eps float64, minSamples int) (clusters [][]int, noise []int) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}
	if minSamples < 1 {
		minSamples = 1
	}

	labels := make([]int, n)
	cluster := 0

	for i := 0; i < n; i++ {
		if labels[i] != dbscanUnvisited {
			continue
		}
		neighbors := regionQuery(vectors, i, eps)
		if len(neighbors) < minSamples {
			labels[i] = dbscanNoise
			continue
		}

		cluster++
		labels[i] = cluster

		// Expand over the growing frontier; border points join the
		// cluster but only core points extend it.
		for f := 0; f < len(neighbors); f++ {
			j := neighbors[f]
			if labels[j] == dbscanNoise {
				labels[j] = cluster
				continue
			}
			if labels[j] != dbscanUnvisited {
				continue
			}
			labels[j] = cluster

			jNeighbors := regionQuery(vectors, j, eps)
			if len(jNeighbors) >= minSamples {
				neighbors = append(neighbors, jNeighbors...)
			}
		}
	}

	byCluster := make(map[int][]int)
	for i, label := range labels {
		if label == dbscanNoise {
			noise = append(noise, i)
			continue
		}
		byCluster[label] = append(byCluster[label], i)
	}
	for c := 1; c <= cluster; c++ {
		if members := byCluster[c]; len(members) > 0 {
			clusters = append(clusters, members)
		}
	}
	return clusters, noise
}

func regionQuery(vectors [][]float32, idx int, eps float64) []int {
	var neighbors []int
	for j := range vectors {
		if cosineDistance(vectors[idx], vectors[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

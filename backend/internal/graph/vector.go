package graph

import (
	"math"
	"sort"

	"github.com/viterin/vek/vek32"
)

// CosineDistance returns 1 - cosine similarity, in [0,2]. Mismatched or
// empty vectors are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 2
	}
	sim := vek32.CosineSimilarity(a, b)
	// vek32 returns NaN for zero vectors
	if math.IsNaN(float64(sim)) {
		return 1
	}
	return 1 - float64(sim)
}

// rankNeighbors orders candidates by ascending distance to embedding and
// keeps the first k. Ties keep the older node first.
func rankNeighbors(candidates []Node, embedding []float32, k int) []Neighbor {
	neighbors := make([]Neighbor, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) != len(embedding) {
			continue
		}
		neighbors = append(neighbors, Neighbor{Node: c, Distance: CosineDistance(embedding, c.Embedding)})
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Node.CreatedAt.Before(neighbors[j].Node.CreatedAt)
	})
	if k > 0 && len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// sortConnectionStats applies the recommendation ordering in place
func sortConnectionStats(stats []ConnectionStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.ConnectionStrength != b.ConnectionStrength {
			return a.ConnectionStrength > b.ConnectionStrength
		}
		if a.AvgWeight != b.AvgWeight {
			return a.AvgWeight > b.AvgWeight
		}
		return a.Node.CreatedAt.Before(b.Node.CreatedAt)
	})
}

package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 1.0, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, 2.0, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, 2.0, CosineDistance([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 2.0, CosineDistance(nil, nil))
}

func TestRankNeighbors_TopKAndDimensionFilter(t *testing.T) {
	base := time.Now()
	candidates := []Node{
		{ID: "far", Embedding: []float32{0, 1}, CreatedAt: base},
		{ID: "near", Embedding: []float32{1, 0.1}, CreatedAt: base.Add(time.Second)},
		{ID: "wrong-dims", Embedding: []float32{1, 0, 0}, CreatedAt: base},
		{ID: "exact", Embedding: []float32{1, 0}, CreatedAt: base.Add(2 * time.Second)},
	}

	ranked := rankNeighbors(candidates, []float32{1, 0}, 2)

	assert.Len(t, ranked, 2)
	assert.Equal(t, "exact", ranked[0].Node.ID)
	assert.Equal(t, "near", ranked[1].Node.ID)
	assert.InDelta(t, 1.0, ranked[0].Similarity(), 1e-6)
}

package index

import (
	"fmt"
	"math"
	"sort"
)

// denseStore is an append-only collection of unit-normalized vectors.
// Search is exact brute force; corpora here are thousands of sections, not
// billions, and exact results matter more than sublinear lookups.
type denseStore struct {
	dimension int
	vectors   [][]float32
}

func newDenseStore(dimension int) *denseStore {
	return &denseStore{dimension: dimension}
}

// add appends vectors in order. All dimensions are checked before anything
// is appended, so a failed call leaves the store unchanged.
func (s *denseStore) add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(v))
		}
	}
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *denseStore) size() int {
	return len(s.vectors)
}

// positionScore pairs a position in the mapping list with a retrieval
// score. Both index legs speak in positions; metadata joins happen later.
type positionScore struct {
	position int
	score    float64
}

// search returns the top k positions ordered descending by inner product.
// Stored and query vectors are unit length, so the inner product equals
// cosine similarity in [-1, 1]. An empty store yields an empty result.
func (s *denseStore) search(query []float32, k int) ([]positionScore, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}
	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	scores := make([]positionScore, len(s.vectors))
	for i, v := range s.vectors {
		scores[i] = positionScore{position: i, score: dotProduct(query, v)}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].position < scores[j].position
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

func dotProduct(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// normalizeVector scales v to unit length in place. Zero vectors are left
// untouched.
func normalizeVector(v []float32) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	inv := 1 / math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

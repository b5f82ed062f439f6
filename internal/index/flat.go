// Package index implements exact nearest-neighbor search over
// unit-normalized vectors. Ranking uses the inner product, which equals
// cosine similarity because every vector is normalized on the way in.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when a vector's width disagrees with
// the dimension fixed by the first add. This is a configuration error,
// not a recoverable condition.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Match is one search hit: the ordinal position of the stored vector,
// its similarity score and its 1-based rank.
type Match struct {
	Position int
	Score    float64
	Rank     int
}

// Flat is a brute-force inner-product index. The dimension is fixed by
// the first Add and never changes for the lifetime of the index.
// Flat is not safe for concurrent use; callers serialize access.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty, uninitialized index.
func NewFlat() *Flat {
	return &Flat{}
}

// Restore rebuilds an index from persisted vectors. The vectors are
// assumed to be normalized already and are taken as-is.
func Restore(dim int, vectors [][]float32) (*Flat, error) {
	if dim <= 0 && len(vectors) > 0 {
		return nil, fmt.Errorf("restore: invalid dimension %d", dim)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("restore vector %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(v), dim)
		}
	}
	return &Flat{dim: dim, vectors: vectors}, nil
}

// Add normalizes each vector to unit L2 norm and appends it in order.
// The first call fixes the index dimension. All vectors are validated
// before any is appended, so a failed Add leaves the index unchanged.
func (f *Flat) Add(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	dim := f.dim
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return fmt.Errorf("add: %w: empty vector", ErrDimensionMismatch)
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("add vector %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(v), dim)
		}
	}

	for _, v := range vectors {
		f.vectors = append(f.vectors, normalized(v))
	}
	f.dim = dim
	return nil
}

// Search returns the min(k, size) stored vectors with the highest inner
// product against the normalized query, descending by score with 1-based
// ranks. An empty or uninitialized index yields an empty result.
func (f *Flat) Search(query []float32, k int) ([]Match, error) {
	if f.dim == 0 || len(f.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query: %w: got %d, want %d", ErrDimensionMismatch, len(query), f.dim)
	}

	q := normalized(query)
	scores := make([]float64, len(f.vectors))
	for i, v := range f.vectors {
		scores[i] = dot(v, q)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	matches := make([]Match, k)
	for i := 0; i < k; i++ {
		pos := order[i]
		matches[i] = Match{Position: pos, Score: scores[pos], Rank: i + 1}
	}
	return matches, nil
}

// Size returns the number of stored vectors.
func (f *Flat) Size() int {
	return len(f.vectors)
}

// Dimension returns the fixed dimension, or 0 when uninitialized.
func (f *Flat) Dimension() int {
	return f.dim
}

// Truncate drops all vectors past the first n. Used to roll back an add
// whose persistence failed.
func (f *Flat) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(f.vectors) {
		f.vectors = f.vectors[:n]
	}
}

// Vectors exposes the stored (normalized) vectors for persistence.
// Callers must not modify the returned slices.
func (f *Flat) Vectors() [][]float32 {
	return f.vectors
}

func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

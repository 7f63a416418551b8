// Package sampler draws indices from finite discrete distributions.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidDistribution means the weights cannot define a probability distribution.
var ErrInvalidDistribution = errors.New("invalid distribution")

// Source provides uniform randomness in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Sampler draws index i with probability weights[i]/sum(weights).
// It is read-only after New and safe for concurrent use.
type Sampler struct {
	cum   []float64 // cumulative weights
	total float64
	last  int // last index with a positive weight
}

// New validates weights and precomputes the cumulative table.
func New(weights []float64) (*Sampler, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: no weights", ErrInvalidDistribution)
	}

	s := &Sampler{cum: make([]float64, len(weights)), last: -1}
	for i, w := range weights {
		switch {
		case math.IsNaN(w) || math.IsInf(w, 0):
			return nil, fmt.Errorf("%w: weight %d is %v", ErrInvalidDistribution, i, w)
		case w < 0:
			return nil, fmt.Errorf("%w: weight %d is negative (%v)", ErrInvalidDistribution, i, w)
		case w > 0:
			s.last = i
		}
		s.total += w
		s.cum[i] = s.total
	}

	if s.total <= 0 || math.IsInf(s.total, 0) {
		return nil, fmt.Errorf("%w: total weight is %v", ErrInvalidDistribution, s.total)
	}

	return s, nil
}

// Len returns the number of items.
func (s *Sampler) Len() int { return len(s.cum) }

// Prob returns the probability of drawing index i.
func (s *Sampler) Prob(i int) float64 {
	if i < 0 || i >= len(s.cum) {
		return 0
	}
	prev := 0.0
	if i > 0 {
		prev = s.cum[i-1]
	}
	return (s.cum[i] - prev) / s.total
}

// Draw consumes one value from src and returns the drawn index.
func (s *Sampler) Draw(src Source) int {
	return s.At(src.Float64())
}

// At maps u in [0, 1) to an index. Values outside the range are clamped.
func (s *Sampler) At(u float64) int {
	if u < 0 {
		u = 0
	}
	v := u * s.total
	i := sort.Search(len(s.cum), func(i int) bool { return s.cum[i] > v })
	if i >= len(s.cum) {
		// rounding pushed v onto the total
		return s.last
	}
	return i
}

// PrefixDecay returns the weights 1/2, 1/4, ... 1/2^(l-1), 1/2^(l-1) for prefix lengths 1..l.
// The last length absorbs the tail mass so the weights sum to 1.
func PrefixDecay(l int) []float64 {
	if l < 1 {
		return nil
	}

	seq := make([]float64, l)
	for k := range seq {
		seq[k] = math.Ldexp(1, -(k + 1))
	}
	seq[l-1] *= 2
	return seq
}

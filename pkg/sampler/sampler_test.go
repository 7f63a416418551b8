package sampler

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct {
	vals []float64
	pos  int
}

func (f *fixedSource) Float64() float64 {
	v := f.vals[f.pos%len(f.vals)]
	f.pos++
	return v
}

func TestNewInvalid(t *testing.T) {
	for _, weights := range [][]float64{nil, {}, {0, 0, 0}, {1, -1, 2}, {1, 2, -0.5}} {
		_, err := New(weights)
		assert.ErrorIs(t, err, ErrInvalidDistribution, "%v", weights)
	}
}

func TestDrawFrequencies(t *testing.T) {
	weights := []float64{1, 2, 3, 4}
	s, err := New(weights)
	require.NoError(t, err)

	const draws = 100000
	r := rand.New(rand.NewSource(42))
	hits := make([]int, len(weights))
	for i := 0; i < draws; i++ {
		idx := s.Draw(r)
		require.True(t, idx >= 0 && idx < len(weights))
		hits[idx]++
	}

	for i, w := range weights {
		assert.InDelta(t, w/10, float64(hits[i])/draws, 0.01, "index %d", i)
		assert.InDelta(t, w/10, s.Prob(i), 1e-12)
	}
}

func TestZeroWeightNeverDrawn(t *testing.T) {
	s, err := New([]float64{0, 1, 0, 1, 0})
	require.NoError(t, err)

	src := &fixedSource{vals: []float64{0, 0.25, 0.5, 0.499999, 0.75, 0.9999999999}}
	for i := 0; i < 100; i++ {
		idx := s.Draw(src)
		assert.Contains(t, []int{1, 3}, idx)
	}
	assert.Equal(t, 3, s.At(1))
	assert.Equal(t, 0.0, s.Prob(2))

	s, err = New([]float64{0, 1})
	require.NoError(t, err)
	for _, u := range []float64{-0.1, -5, 0, 0.5, 1, 2} {
		assert.Equal(t, 1, s.At(u), u)
	}
}

func TestAtBoundaries(t *testing.T) {
	s, err := New([]float64{1, 1, 2})
	require.NoError(t, err)

	assert.Equal(t, 0, s.At(0))
	assert.Equal(t, 0, s.At(0.2499))
	assert.Equal(t, 1, s.At(0.25))
	assert.Equal(t, 2, s.At(0.5))
	assert.Equal(t, 2, s.At(0.999999))
	assert.Equal(t, 3, s.Len())
}

func TestDeterministic(t *testing.T) {
	weights := []float64{5, 1, 0, 7, 3}
	a, err := New(weights)
	require.NoError(t, err)
	b, err := New(weights)
	require.NoError(t, err)

	ra, rb := rand.New(rand.NewSource(7)), rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		assert.Equal(t, a.Draw(ra), b.Draw(rb))
	}
}

func TestPrefixDecay(t *testing.T) {
	assert.Equal(t, []float64{0.5, 0.25, 0.125, 0.0625, 0.0625}, PrefixDecay(5))
	assert.Equal(t, []float64{1}, PrefixDecay(1))
	assert.Equal(t, []float64{0.5, 0.5}, PrefixDecay(2))
	assert.Nil(t, PrefixDecay(0))

	for l := 1; l <= 12; l++ {
		sum := 0.0
		for _, w := range PrefixDecay(l) {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "l=%d", l)
	}
}

func TestPrefixPicker(t *testing.T) {
	keywords := []string{"a", "ab", "museum", "château", "bus stop"}
	p, err := NewPrefixPicker(keywords, []float64{1, 2, 3, 4, 5}, 0)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(1))
	seen := map[int]int{}
	for i := 0; i < 20000; i++ {
		keyword, prefix := p.Pick(r)
		require.True(t, strings.HasPrefix(keyword, prefix), "%q %q", keyword, prefix)

		n := utf8.RuneCountInString(prefix)
		limit := utf8.RuneCountInString(keyword)
		if limit > MaxPrefixLen {
			limit = MaxPrefixLen
		}
		require.True(t, n >= 1 && n <= limit, "%q %q", keyword, prefix)
		if keyword == "museum" {
			seen[n]++
		}
	}

	// 1/2 of museum prefixes have one rune, 1/16 have five.
	total := 0
	for _, v := range seen {
		total += v
	}
	assert.InDelta(t, 0.5, float64(seen[1])/float64(total), 0.03)
	assert.InDelta(t, 0.0625, float64(seen[5])/float64(total), 0.02)
}

func TestPrefixPickerInvalid(t *testing.T) {
	_, err := NewPrefixPicker([]string{"a"}, []float64{1, 2}, 0)
	assert.ErrorIs(t, err, ErrInvalidDistribution)

	_, err = NewPrefixPicker([]string{"a", ""}, []float64{1, 2}, 0)
	assert.ErrorIs(t, err, ErrInvalidDistribution)

	_, err = NewPrefixPicker(nil, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidDistribution)
}

func TestPickerKeywordOnly(t *testing.T) {
	p, err := NewPrefixPicker([]string{"cafe", "park"}, []float64{0, 3}, 3)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		assert.Equal(t, "park", p.Keyword(r))
		_, prefix := p.Pick(r)
		assert.True(t, len(prefix) <= 3)
	}
}

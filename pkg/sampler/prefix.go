package sampler

import "fmt"

// MaxPrefixLen is the longest prefix drawn for a keyword.
const MaxPrefixLen = 5

// PrefixPicker draws a keyword by frequency and then a prefix of it.
type PrefixPicker struct {
	keywords [][]rune
	sampler  *Sampler
	decays   []*Sampler // decays[l] samples prefix lengths for a keyword of l runes
	maxLen   int
}

// NewPrefixPicker builds a picker over keywords weighted by counts.
// maxLen <= 0 selects MaxPrefixLen.
func NewPrefixPicker(keywords []string, counts []float64, maxLen int) (*PrefixPicker, error) {
	if len(keywords) != len(counts) {
		return nil, fmt.Errorf("%w: %d keywords with %d counts", ErrInvalidDistribution, len(keywords), len(counts))
	}
	if maxLen <= 0 {
		maxLen = MaxPrefixLen
	}

	s, err := New(counts)
	if err != nil {
		return nil, err
	}

	p := &PrefixPicker{
		keywords: make([][]rune, len(keywords)),
		sampler:  s,
		decays:   make([]*Sampler, maxLen+1),
		maxLen:   maxLen,
	}
	for i, k := range keywords {
		if k == "" {
			return nil, fmt.Errorf("%w: keyword %d is empty", ErrInvalidDistribution, i)
		}
		p.keywords[i] = []rune(k)
	}

	for l := 1; l <= maxLen; l++ {
		if p.decays[l], err = New(PrefixDecay(l)); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Keyword draws a keyword only.
func (p *PrefixPicker) Keyword(src Source) string {
	return string(p.keywords[p.sampler.Draw(src)])
}

// Pick draws a keyword and a 1-based prefix length of at most min(len(keyword), maxLen).
func (p *PrefixPicker) Pick(src Source) (keyword, prefix string) {
	k := p.keywords[p.sampler.Draw(src)]
	l := len(k)
	if l > p.maxLen {
		l = p.maxLen
	}

	n := p.decays[l].Draw(src) + 1
	return string(k), string(k[:n])
}

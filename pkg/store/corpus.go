package store

import (
	"github.com/bingoohuang/walkperf/pkg/sampler"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Corpus is the keyword frequency table used to draw realistic query terms.
type Corpus struct {
	trie     *patricia.Trie
	keywords []string
	counts   []float64
}

// NewCorpus merges duplicate keywords by summing their counts and drops empty ones.
func NewCorpus(keywords []Keyword) *Corpus {
	c := &Corpus{trie: patricia.NewTrie()}
	for _, k := range keywords {
		if k.Keyword == "" {
			continue
		}

		key := patricia.Prefix(k.Keyword)
		if item := c.trie.Get(key); item != nil {
			c.counts[item.(int)] += k.Count
			continue
		}

		c.trie.Insert(key, len(c.keywords))
		c.keywords = append(c.keywords, k.Keyword)
		c.counts = append(c.counts, k.Count)
	}
	return c
}

func (c *Corpus) Len() int           { return len(c.keywords) }
func (c *Corpus) Keywords() []string { return c.keywords }
func (c *Corpus) Counts() []float64  { return c.counts }

// Count returns the merged count of keyword k.
func (c *Corpus) Count(k string) float64 {
	if item := c.trie.Get(patricia.Prefix(k)); item != nil {
		return c.counts[item.(int)]
	}
	return 0
}

// Candidates returns the number of corpus keywords starting with prefix.
func (c *Corpus) Candidates(prefix string) int {
	n := 0
	_ = c.trie.VisitSubtree(patricia.Prefix(prefix), func(patricia.Prefix, patricia.Item) error {
		n++
		return nil
	})
	return n
}

// Picker builds the keyword then prefix sampler. maxLen <= 0 selects sampler.MaxPrefixLen.
func (c *Corpus) Picker(maxLen int) (*sampler.PrefixPicker, error) {
	return sampler.NewPrefixPicker(c.keywords, c.counts, maxLen)
}

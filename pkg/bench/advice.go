package bench

import (
	"context"

	"github.com/bingoohuang/walkperf"
	"github.com/bingoohuang/walkperf/pkg/sampler"
	"github.com/bingoohuang/walkperf/pkg/smartwalk"
	"github.com/bingoohuang/walkperf/pkg/store"
)

// AdviceKeywords asks for keyword completions of prefixes typed the way users type them:
// a keyword drawn by frequency, cut to a short prefix with the decaying length profile.
// Buckets are the requested number of completions.
type AdviceKeywords struct {
	base
	corpus *store.Corpus
	picker *sampler.PrefixPicker
}

func (a *AdviceKeywords) Init(ctx context.Context, c *walkperf.Config, s store.Store) (*walkperf.BenchOption, error) {
	corpus, picker, err := keywordPicker(ctx, s)
	if err != nil {
		return nil, err
	}
	a.corpus, a.picker = corpus, picker
	log.Debug("keywords loaded", "bench", a.spec.Name, "keywords", corpus.Len())

	return a.connect(c)
}

func (a *AdviceKeywords) Invoke(ctx context.Context, c *walkperf.Config, p walkperf.Point) (*walkperf.Result, error) {
	keyword, prefix := a.picker.Pick(c.Rand)
	uri := smartwalk.AdviceKeywordsURI(prefix, int(p.BucketValue))

	result, _, err := a.get(ctx, uri)
	if err != nil {
		return nil, err
	}
	result.Input = prefix

	if a.verbose >= 2 {
		log.Debug("prefix", "keyword", keyword, "prefix", prefix, "candidates", a.corpus.Candidates(prefix))
	}
	return result, nil
}

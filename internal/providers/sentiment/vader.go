package sentiment

import "github.com/jonreiter/govader"

// VaderScorer wraps the VADER lexicon analyzer. Construct once at process
// start; the analyzer is read-only after load and safe to share.
type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderScorer) Polarity(text string) float64 {
	return v.analyzer.PolarityScores(text).Compound
}

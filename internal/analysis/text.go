package analysis

import (
	"context"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/prepstage/intervue/internal/providers/embedding"
	"github.com/prepstage/intervue/internal/providers/grammar"
	"github.com/prepstage/intervue/internal/providers/sentiment"
)

const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"

	// Compound polarity at or beyond these bounds flips the label.
	sentimentThreshold = 0.05

	// Substituted when the correction capability fails: assume average.
	grammarFallbackScore = 75.0

	// No expected keywords means no signal either way.
	keywordNeutralScore = 50.0
)

// SentimentResult, GrammarResult, and ContentResult each carry a Fallback tag
// so callers can tell a computed value from a neutral default substituted
// after an analyzer failure.
type SentimentResult struct {
	Score    float64
	Label    string
	Fallback bool
}

type GrammarResult struct {
	Score    float64
	Fallback bool
}

type ContentResult struct {
	KeywordMatchScore  float64
	MatchedKeywords    []string
	SemanticSimilarity *float64
	Embedding          []float32
	Fallback           bool
}

type TextMetrics struct {
	Sentiment SentimentResult
	Grammar   GrammarResult
	Content   ContentResult
}

// TextAnalyzer scores a transcript for sentiment, grammatical well-formedness,
// and content alignment. The three sub-scores are independent: a failure in
// one substitutes its neutral default and never blocks the others.
type TextAnalyzer struct {
	sentiment sentiment.Scorer
	grammar   grammar.Provider
	embedder  embedding.Provider
	log       *logrus.Logger
}

func NewTextAnalyzer(s sentiment.Scorer, g grammar.Provider, e embedding.Provider, log *logrus.Logger) *TextAnalyzer {
	if log == nil {
		log = logrus.New()
	}
	return &TextAnalyzer{sentiment: s, grammar: g, embedder: e, log: log}
}

func (a *TextAnalyzer) Analyze(ctx context.Context, transcript, referenceAnswer string, expectedKeywords []string) TextMetrics {
	return TextMetrics{
		Sentiment: a.analyzeSentiment(transcript),
		Grammar:   a.checkGrammar(ctx, transcript),
		Content:   a.matchContent(ctx, transcript, referenceAnswer, expectedKeywords),
	}
}

func (a *TextAnalyzer) analyzeSentiment(transcript string) SentimentResult {
	if a.sentiment == nil || strings.TrimSpace(transcript) == "" {
		return SentimentResult{Score: 0, Label: SentimentNeutral, Fallback: a.sentiment == nil}
	}

	compound := a.sentiment.Polarity(transcript)
	return SentimentResult{Score: compound, Label: SentimentLabel(compound)}
}

// SentimentLabel is a deterministic function of the compound score.
func SentimentLabel(compound float64) string {
	switch {
	case compound >= sentimentThreshold:
		return SentimentPositive
	case compound <= -sentimentThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func (a *TextAnalyzer) checkGrammar(ctx context.Context, transcript string) GrammarResult {
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return GrammarResult{Score: 0}
	}

	if a.grammar == nil {
		return GrammarResult{Score: grammarFallbackScore, Fallback: true}
	}

	corrected, err := a.grammar.Correct(ctx, transcript)
	if err != nil {
		a.log.WithError(err).Warn("grammar correction failed, using fallback score")
		return GrammarResult{Score: grammarFallbackScore, Fallback: true}
	}

	if corrected == transcript {
		return GrammarResult{Score: 100}
	}

	// Unchanged-word-set ratio. A crude stand-in for grammaticality, kept
	// deliberately: reordering the same words still scores high.
	original := wordSet(transcript)
	after := wordSet(corrected)
	unchanged := 0
	for w := range original {
		if _, ok := after[w]; ok {
			unchanged++
		}
	}

	score := float64(unchanged) / float64(len(words)) * 100
	return GrammarResult{Score: round2(score)}
}

func (a *TextAnalyzer) matchContent(ctx context.Context, transcript, referenceAnswer string, expectedKeywords []string) ContentResult {
	lower := strings.ToLower(transcript)

	matched := make([]string, 0, len(expectedKeywords))
	for _, kw := range expectedKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}

	keywordScore := keywordNeutralScore
	if len(expectedKeywords) > 0 {
		keywordScore = round2(float64(len(matched)) / float64(len(expectedKeywords)) * 100)
	}

	out := ContentResult{
		KeywordMatchScore: keywordScore,
		MatchedKeywords:   matched,
	}

	// Semantic similarity is optional: absent embedder, empty inputs, or a
	// provider failure leave it at the defined degenerate value.
	zero := 0.0
	if strings.TrimSpace(transcript) == "" || strings.TrimSpace(referenceAnswer) == "" {
		out.SemanticSimilarity = &zero
		return out
	}
	if a.embedder == nil {
		out.SemanticSimilarity = &zero
		out.Fallback = true
		return out
	}

	userVec, err := a.embedder.Embed(ctx, transcript)
	if err == nil {
		var refVec []float32
		refVec, err = a.embedder.Embed(ctx, referenceAnswer)
		if err == nil {
			sim := round2(clamp(CosineSimilarity(userVec, refVec)*100, 0, 100))
			out.SemanticSimilarity = &sim
			out.Embedding = userVec
			return out
		}
	}

	a.log.WithError(err).Warn("embedding failed, semantic similarity unavailable")
	out.SemanticSimilarity = &zero
	out.Fallback = true
	return out
}

// CosineSimilarity of two vectors; 0 when either has no magnitude or the
// dimensions disagree.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func wordSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

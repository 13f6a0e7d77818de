package sentiment

// Scorer produces a compound polarity value in roughly [-1, 1].
type Scorer interface {
	Polarity(text string) float64
}

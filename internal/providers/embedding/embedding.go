package embedding

import "context"

type Provider interface {
	// Embed returns the dense vector for a text. Callers treat a failure as
	// "similarity absent", never as a hard error.
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}

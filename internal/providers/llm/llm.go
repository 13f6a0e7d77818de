package llm

import "context"

type Provider interface {
	// Generate returns the full model output for a single prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

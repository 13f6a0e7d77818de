package grammar

import "context"

type Provider interface {
	// Correct returns a grammatically corrected rewrite of the text.
	Correct(ctx context.Context, text string) (string, error)
}

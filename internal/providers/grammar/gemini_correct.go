package grammar

import (
	"context"
	"strings"

	"github.com/prepstage/intervue/internal/providers/llm"
	"github.com/prepstage/intervue/internal/utils"
)

const correctionPrompt = `Correct the grammar and spelling of the following text.
Return ONLY the corrected text, with no commentary, quotes, or formatting.
Keep the wording as close to the original as possible.

Text:
`

// GeminiCorrector runs the correction prompt through the shared LLM provider.
type GeminiCorrector struct {
	llm llm.Provider
}

func NewGeminiCorrector(p llm.Provider) *GeminiCorrector {
	return &GeminiCorrector{llm: p}
}

func (g *GeminiCorrector) Correct(ctx context.Context, text string) (string, error) {
	out, err := g.llm.Generate(ctx, correctionPrompt+text)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(utils.StripCodeFences(out)), nil
}

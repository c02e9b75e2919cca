package llm

import (
	"context"
	"iter"

	"protein-advisor/internal/common/logger"
)

// Composer streams the sales-pitch text for a selection.
type Composer struct {
	gen    Generator
	logger logger.Logger
}

func NewComposer(gen Generator, log logger.Logger) *Composer {
	return &Composer{
		gen:    gen,
		logger: log.With(map[string]interface{}{"component": "response-composer"}),
	}
}

// Compose returns a finite, non-restartable fragment stream. Callers must
// concatenate the whole stream before parsing it.
func (c *Composer) Compose(ctx context.Context, in WriterInput) iter.Seq2[string, error] {
	prompt := BuildWriterPrompt(in)
	c.logger.Debug("composing response", map[string]interface{}{
		"candidates":  len(in.Selection.Candidates),
		"keyMetric":   string(in.Selection.KeyMetric),
		"promptBytes": len(prompt),
	})
	return c.gen.Stream(ctx, prompt)
}

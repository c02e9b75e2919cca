// Package llm holds the two language-model boundaries of a turn: the intent
// classifier and the streaming response composer, both backed by Gemini.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"protein-advisor/internal/common/logger"

	"google.golang.org/genai"
)

var (
	ErrLLMTimeout = errors.New("LLM_TIMEOUT")
	ErrLLMFailed  = errors.New("LLM_GENERATION_FAILED")
	ErrEmptyReply = errors.New("empty model reply")
)

// Generator is the raw text-generation transport.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Stream yields text fragments in order. A non-nil error is always the
	// last value yielded.
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

type GenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float32
	HTTPClient  *http.Client
}

// GenAIClient calls Gemini through google.golang.org/genai with bounded
// retries and exponential backoff.
type GenAIClient struct {
	client *genai.Client
	config GenAIConfig
	logger logger.Logger
}

func NewGenAIClient(ctx context.Context, cfg GenAIConfig, log logger.Logger) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash-lite"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{
		client: client,
		config: cfg,
		logger: log.With(map[string]interface{}{"component": "genai", "model": cfg.Model}),
	}, nil
}

func (c *GenAIClient) generationConfig() *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{}
	if c.config.Temperature > 0 {
		gc.Temperature = genai.Ptr(c.config.Temperature)
	}
	return gc
}

func (c *GenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return "", err
			}
		}

		resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(prompt), c.generationConfig())
		if err == nil {
			if text := resp.Text(); strings.TrimSpace(text) != "" {
				return text, nil
			}
			err = ErrEmptyReply
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		c.logger.Warn("generate attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	return "", fmt.Errorf("%w: %v", ErrLLMFailed, lastErr)
}

// Stream retries only while nothing has been yielded; once text has reached
// the caller a failure ends the stream with an error.
func (c *GenAIClient) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()

		var lastErr error
		for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
			if attempt > 0 {
				if err := c.backoff(ctx, attempt); err != nil {
					yield("", err)
					return
				}
			}

			emitted := false
			var streamErr error
			for resp, err := range c.client.Models.GenerateContentStream(ctx, c.config.Model, genai.Text(prompt), c.generationConfig()) {
				if err != nil {
					streamErr = err
					break
				}
				text := resp.Text()
				if text == "" {
					continue
				}
				emitted = true
				if !yield(text, nil) {
					return
				}
			}

			if streamErr == nil {
				if !emitted {
					streamErr = ErrEmptyReply
				} else {
					return
				}
			}
			if ctx.Err() != nil {
				yield("", fmt.Errorf("%w: %v", ErrLLMTimeout, streamErr))
				return
			}
			if emitted {
				yield("", fmt.Errorf("%w: stream interrupted: %v", ErrLLMFailed, streamErr))
				return
			}
			lastErr = streamErr
			c.logger.Warn("stream attempt failed", map[string]interface{}{
				"attempt": attempt + 1,
				"error":   streamErr.Error(),
			})
		}
		yield("", fmt.Errorf("%w: %v", ErrLLMFailed, lastErr))
	}
}

func (c *GenAIClient) backoff(ctx context.Context, attempt int) error {
	wait := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrLLMTimeout, ctx.Err())
	}
}

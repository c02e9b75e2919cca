package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"protein-advisor/internal/common/logger"
	"protein-advisor/internal/common/metrics"
	"protein-advisor/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

var ErrMalformedIntent = errors.New("INTENT_MALFORMED")

var intentSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"key_metric"},
	"properties": map[string]interface{}{
		"key_metric": map[string]interface{}{"type": "string", "minLength": 1},
		"relevant_tags": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"user_desire_summary": map[string]interface{}{"type": "string"},
		"desire_summary":      map[string]interface{}{"type": "string"},
	},
}

type rawIntent struct {
	KeyMetric         string   `json:"key_metric"`
	RelevantTags      []string `json:"relevant_tags"`
	UserDesireSummary string   `json:"user_desire_summary"`
	DesireSummary     string   `json:"desire_summary"`
}

// Classifier turns conversation text into an Intent. It never fails: any
// transport or parse problem yields models.DefaultIntent().
type Classifier struct {
	gen    Generator
	logger logger.Logger
}

func NewClassifier(gen Generator, log logger.Logger) *Classifier {
	return &Classifier{
		gen:    gen,
		logger: log.With(map[string]interface{}{"component": "intent-classifier"}),
	}
}

func (c *Classifier) Classify(ctx context.Context, conversation string) models.Intent {
	reply, err := c.gen.Generate(ctx, BuildClassifierPrompt(conversation))
	if err != nil {
		reason := "generation"
		if errors.Is(err, ErrLLMTimeout) {
			reason = "timeout"
		}
		return c.fallback(reason, err)
	}

	intent, err := ParseIntent(reply)
	if err != nil {
		return c.fallback("parse", err)
	}
	return intent
}

func (c *Classifier) fallback(reason string, err error) models.Intent {
	metrics.IntentFallbacks.WithLabelValues(reason).Inc()
	c.logger.Warn("intent classification fell back to default", map[string]interface{}{
		"reason": reason,
		"error":  err.Error(),
	})
	return models.DefaultIntent()
}

// ParseIntent reads the classifier's JSON reply. Code fences and text around
// the JSON object are tolerated. An unrecognised key metric maps to "other".
func ParseIntent(reply string) (models.Intent, error) {
	body := extractJSONObject(reply)
	if body == "" {
		return models.Intent{}, fmt.Errorf("%w: no JSON object in reply", ErrMalformedIntent)
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return models.Intent{}, fmt.Errorf("%w: %v", ErrMalformedIntent, err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(intentSchema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return models.Intent{}, fmt.Errorf("%w: schema validation: %v", ErrMalformedIntent, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return models.Intent{}, fmt.Errorf("%w: %s", ErrMalformedIntent, strings.Join(msgs, "; "))
	}

	var raw rawIntent
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return models.Intent{}, fmt.Errorf("%w: %v", ErrMalformedIntent, err)
	}

	metric, _ := models.ParseKeyMetric(strings.TrimSpace(raw.KeyMetric))
	intent := models.Intent{
		KeyMetric:     metric,
		RelevantTags:  []string{},
		DesireSummary: strings.TrimSpace(raw.UserDesireSummary),
	}
	if intent.DesireSummary == "" {
		intent.DesireSummary = strings.TrimSpace(raw.DesireSummary)
	}
	if intent.DesireSummary == "" {
		intent.DesireSummary = models.DefaultDesireSummary
	}
	for _, tag := range raw.RelevantTags {
		if tag = strings.TrimSpace(tag); tag != "" {
			intent.RelevantTags = append(intent.RelevantTags, tag)
		}
	}
	return intent, nil
}

func extractJSONObject(reply string) string {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

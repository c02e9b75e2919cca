package dialogue

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"protein-advisor/internal/catalog"
	apperrors "protein-advisor/internal/common/errors"
	"protein-advisor/internal/common/logger"
	"protein-advisor/internal/common/metrics"
	"protein-advisor/internal/common/observability"
	"protein-advisor/internal/llm"
	"protein-advisor/internal/models"
	"protein-advisor/internal/selector"
)

// FailureMessage is the assistant text recorded when a turn cannot be
// completed. Internal error details are only logged.
const FailureMessage = "Sorry, something went wrong while preparing your recommendation. Please try again in a moment."

type IntentClassifier interface {
	Classify(ctx context.Context, conversation string) models.Intent
}

type ResponseComposer interface {
	Compose(ctx context.Context, in llm.WriterInput) iter.Seq2[string, error]
}

// Sink receives composed fragments as they arrive. It may be nil.
type Sink func(fragment string)

// TurnResult describes an accepted turn after it finished.
type TurnResult struct {
	Reply     models.Turn
	Selection *models.SelectionResult
}

type Engine struct {
	store      catalog.Store
	classifier IntentClassifier
	composer   ResponseComposer
	logger     logger.Logger
	obs        *observability.Observability
	now        func() time.Time
}

type EngineOption func(*Engine)

func WithObservability(obs *observability.Observability) EngineOption {
	return func(e *Engine) { e.obs = obs }
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store catalog.Store, classifier IntentClassifier, composer ResponseComposer, log logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      store,
		classifier: classifier,
		composer:   composer,
		logger:     log.With(map[string]interface{}{"component": "dialogue-engine"}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitTurn runs one chat turn. When another turn of the same session is in
// flight the submission is dropped and accepted is false. Classification,
// composition and catalog problems never surface as errors: they end the turn
// with a failed assistant message and the session stays usable.
func (e *Engine) SubmitTurn(ctx context.Context, s *Session, text string, sink Sink) (result TurnResult, accepted bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, false, ErrEmptyTurn
	}

	start, accepted, err := s.begin(text, e.now())
	if err != nil {
		return TurnResult{}, false, err
	}
	if !accepted {
		metrics.TurnsDropped.Inc()
		e.logger.Info("turn dropped, another turn is in flight", map[string]interface{}{
			"sessionId": s.ID,
		})
		return TurnResult{}, false, nil
	}

	begun := e.now()
	ctx, endSpan := e.obs.StartSpan(ctx, "advisor.turn", attribute.String("session.id", s.ID))

	// The flag is cleared here whatever happens inside run, panics included.
	var reply models.Turn
	var sel *models.SelectionResult
	var turnErr error
	defer func() {
		if r := recover(); r != nil {
			turnErr = fmt.Errorf("panic: %v", r)
			reply, sel = failedTurn(), nil
			result, accepted = TurnResult{Reply: reply}, true
		}
		s.complete(reply, sel, e.now())
		e.observe(ctx, s.ID, sel, turnErr, e.now().Sub(begun))
		endSpan(turnErr)
	}()

	reply, sel, turnErr = e.run(ctx, text, start, sink)
	if turnErr != nil {
		reply, sel = failedTurn(), nil
	}
	result = TurnResult{Reply: reply, Selection: sel}
	result.Reply.Role = models.RoleAssistant
	return result, true, nil
}

func (e *Engine) run(ctx context.Context, text string, start turnStart, sink Sink) (models.Turn, *models.SelectionResult, error) {
	spanCtx, end := e.obs.StartSpan(ctx, "advisor.catalog")
	cat, err := e.store.Snapshot(spanCtx)
	end(err)
	if err != nil {
		return models.Turn{}, nil, err
	}

	userPrompt := text
	if start.first {
		userPrompt = llm.FirstTurnPrompt(start.persona, text)
	}

	spanCtx, end = e.obs.StartSpan(ctx, "advisor.classify")
	intent := e.classifier.Classify(spanCtx, llm.FormatPersona(start.persona)+"\n"+llm.FormatHistory(start.history))
	end(nil)

	sel := selector.Select(cat, intent, start.persona)

	spanCtx, end = e.obs.StartSpan(ctx, "advisor.compose",
		attribute.String("key_metric", string(sel.KeyMetric)),
		attribute.Int("candidates", len(sel.Candidates)),
	)
	full, err := e.compose(spanCtx, llm.WriterInput{
		UserPrompt:    userPrompt,
		DesireSummary: intent.DesireSummary,
		Selection:     sel,
		History:       start.history,
		NutritionTip:  llm.TipFor(intent).Text,
	}, sink)
	end(err)
	if err != nil {
		return models.Turn{}, nil, err
	}

	main, suggestions := ParseResponse(full)
	reply := models.Turn{
		Role:        models.RoleAssistant,
		Text:        main,
		Suggestions: suggestions,
		ProductIDs:  ExtractProductIDs(main),
	}
	if len(sel.Candidates) == 0 {
		return reply, nil, nil
	}
	return reply, &sel, nil
}

// compose drains the fragment stream. Suggestion markers can straddle
// fragment boundaries, so parsing waits for the full text.
func (e *Engine) compose(ctx context.Context, in llm.WriterInput, sink Sink) (string, error) {
	var b strings.Builder
	for fragment, err := range e.composer.Compose(ctx, in) {
		if errors.Is(err, llm.ErrLLMTimeout) {
			return "", apperrors.NewLLMTimeoutError(err)
		}
		if err != nil {
			return "", apperrors.NewCompositionFailedError(err)
		}
		b.WriteString(fragment)
		if sink != nil {
			sink(fragment)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", apperrors.NewCompositionFailedError(llm.ErrEmptyReply)
	}
	return b.String(), nil
}

func (e *Engine) observe(ctx context.Context, sessionID string, sel *models.SelectionResult, turnErr error, took time.Duration) {
	outcome := "ok"
	keyMetric := string(models.MetricOther)
	if sel != nil {
		keyMetric = string(sel.KeyMetric)
	}
	if turnErr != nil {
		outcome = "failed"
		stdErr := apperrors.Normalize(turnErr)
		e.logger.Error("turn failed", map[string]interface{}{
			"sessionId":     sessionID,
			"errorCode":     string(stdErr.Code),
			"errorCategory": apperrors.GetErrorCategory(stdErr.Code),
			"error":         turnErr,
		})
	} else {
		e.logger.Info("turn completed", map[string]interface{}{
			"sessionId":  sessionID,
			"keyMetric":  keyMetric,
			"durationMs": took.Milliseconds(),
		})
	}
	metrics.TurnsProcessed.WithLabelValues(outcome, keyMetric).Inc()
	metrics.TurnDuration.WithLabelValues(outcome).Observe(took.Seconds())
	e.obs.RecordTurnProcessed(ctx, outcome, keyMetric)
	e.obs.RecordTurnDuration(ctx, took, outcome)
}

func failedTurn() models.Turn {
	return models.Turn{Role: models.RoleAssistant, Text: FailureMessage, Failed: true}
}

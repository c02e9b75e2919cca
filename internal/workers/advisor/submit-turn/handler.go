// internal/workers/advisor/submit-turn/handler.go
package submitturn

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "protein-advisor/internal/common/errors"
	"protein-advisor/internal/common/logger"
	"protein-advisor/internal/common/metrics"
	"protein-advisor/internal/dialogue"
)

const (
	TaskType = "submit-turn"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

// Handler feeds a user message from a process instance into a live session.
// A submission that arrives while the session is busy completes the job with
// accepted=false.
type Handler struct {
	config     *Config
	sessions   *dialogue.Manager
	engine     *dialogue.Engine
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, sessions *dialogue.Manager, engine *dialogue.Engine, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		sessions:   sessions,
		engine:     engine,
		logger:     log,
		errHandler: apperrors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrNilInput
	}
	if strings.TrimSpace(input.SessionID) == "" {
		return nil, apperrors.NewInvalidRequestError("sessionId is required")
	}

	session, err := h.sessions.Get(input.SessionID)
	if err != nil {
		return nil, err
	}

	res, accepted, err := h.engine.SubmitTurn(ctx, session, input.Text, nil)
	switch {
	case errors.Is(err, dialogue.ErrSessionNotChatting):
		return nil, apperrors.NewSessionStateInvalidError(err.Error())
	case errors.Is(err, dialogue.ErrEmptyTurn):
		return nil, apperrors.NewInvalidRequestError("text must not be empty")
	case err != nil:
		return nil, err
	}

	if !accepted {
		h.logger.Info("turn dropped", map[string]interface{}{"sessionId": session.ID})
		return &Output{Accepted: false}, nil
	}

	reply := res.Reply
	return &Output{
		Accepted:        true,
		AssistantTurn:   &reply,
		Selection:       res.Selection,
		ComparisonTable: res.Selection.ComparisonTable(),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
	h.errHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

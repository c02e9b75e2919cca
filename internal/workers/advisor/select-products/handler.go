// internal/workers/advisor/select-products/handler.go
package selectproducts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"protein-advisor/internal/catalog"
	apperrors "protein-advisor/internal/common/errors"
	"protein-advisor/internal/common/logger"
	"protein-advisor/internal/common/metrics"
	"protein-advisor/internal/models"
	"protein-advisor/internal/selector"
)

const (
	TaskType = "select-products"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

// Handler runs the product selector against the live catalog snapshot.
type Handler struct {
	config     *Config
	store      catalog.Store
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, store catalog.Store, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		store:      store,
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

	cat, err := h.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	persona := input.Persona
	if persona.Experience == "" {
		persona = models.DefaultPersona()
	}
	if err := persona.Validate(cat); err != nil {
		return nil, apperrors.NewPersonaInvalidError(err)
	}

	intent := input.Intent
	intent.KeyMetric, _ = models.ParseKeyMetric(string(intent.KeyMetric))

	sel := selector.Select(cat, intent, persona)
	h.logger.Info("selection completed", map[string]interface{}{
		"keyMetric":   string(sel.KeyMetric),
		"candidates":  len(sel.Candidates),
		"hasBaseline": sel.Baseline != nil,
	})

	table := sel.ComparisonTable()
	if table == nil {
		table = []models.ComparisonRow{}
	}
	return &Output{
		Selection:       sel,
		ComparisonTable: table,
		CatalogSource:   cat.Source,
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

package getdocumentchecklist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "visa-checklist/internal/common/errors"
	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/common/metrics"
	"visa-checklist/internal/common/validation"
	"visa-checklist/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "get-document-checklist"

var schema = validation.MustCompile(TaskType, inputSchema)

// ChecklistService is satisfied by *service.Service.
type ChecklistService interface {
	GetChecklist(ctx context.Context, applicationID string) (*models.ChecklistView, error)
	Await(ctx context.Context, applicationID string) (*models.ChecklistView, error)
}

type Handler struct {
	config       *Config
	service      ChecklistService
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(cfg *Config, svc ChecklistService, log logger.Logger) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log = logger.Component(log, "worker").WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       cfg,
		service:      svc,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := ParseInput(job.GetVariables())
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

// ParseInput validates raw job variables.
func ParseInput(variables string) (*Input, error) {
	res := schema.ValidateBytes([]byte(variables))
	if !res.Valid {
		return nil, apperrors.NewInvalidInputError(strings.Join(res.GetErrorMessages(), "; "))
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	input.ApplicationID = strings.TrimSpace(input.ApplicationID)
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	get := h.service.GetChecklist
	if input.Wait {
		get = h.service.Await
	}

	view, err := get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	h.logger.Info("checklist served", map[string]interface{}{
		"applicationId":  input.ApplicationID,
		"status":         view.Status,
		"items":          len(view.Items),
		"aiFallbackUsed": view.AIFallbackUsed,
	})

	return &Output{
		ChecklistStatus: string(view.Status),
		Checklist:       *view,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":          job.GetKey(),
		"checklistStatus": output.ChecklistStatus,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := string(apperrors.ErrCodeInternalError)
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

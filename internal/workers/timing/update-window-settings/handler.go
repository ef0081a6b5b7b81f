// internal/workers/timing/update-window-settings/handler.go
package updatewindowsettings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"salon-workers/internal/common/errors"
	"salon-workers/internal/common/logger"
	"salon-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const TaskType = "update-window-settings"

// SettingsStore reads and persists per-salon service-window settings.
type SettingsStore interface {
	Get(ctx context.Context, salonID string) (*models.SalonSettings, error)
	UpdateServiceWindow(ctx context.Context, salonID string, sw models.ServiceWindowSettings) error
}

type Handler struct {
	config *Config
	store  SettingsStore
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, store SettingsStore, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  store,
		errors: errors.NewErrorHandler(log),
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		stdErr := errors.NewValidationError(fmt.Sprintf("parse input: %v", err), nil)
		h.completeWithErrorPayload(ctx, client, job, stdErr)
		return
	}

	output, stdErr := h.execute(ctx, &input)
	if stdErr != nil {
		if stdErr.Retryable {
			h.errors.HandleJobError(ctx, client, job, stdErr)
			return
		}
		h.completeWithErrorPayload(ctx, client, job, stdErr)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, *errors.StandardError) {
	if input.Operation != "" && input.Operation != OperationUpdateServiceWindow {
		return nil, errors.NewUnknownOperationError(input.Operation)
	}

	if err := input.Validate(); err != nil {
		return nil, errors.NewSettingsValidationError(fieldErrors(err))
	}

	current, err := h.store.Get(ctx, input.SalonID)
	if err != nil {
		return nil, errors.NewUsageStoreError("read salon settings", err)
	}
	if current == nil {
		return nil, errors.NewSalonNotFoundError(input.SalonID)
	}

	old := current.ServiceWindow

	if err := h.store.UpdateServiceWindow(ctx, input.SalonID, input.Settings); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewSalonNotFoundError(input.SalonID)
		}
		return nil, errors.NewSettingsUpdateFailedError(err)
	}

	h.logger.Info("service window settings updated", map[string]interface{}{
		"salonId": input.SalonID,
	})

	return &Output{
		Updated:        true,
		OldSettings:    old,
		NewSettings:    input.Settings,
		ImpactEstimate: estimateImpact(old, input.Settings),
	}, nil
}

// estimateImpact gives a qualitative read on how the change shifts the
// savings/responsiveness trade-off.
func estimateImpact(old, updated models.ServiceWindowSettings) string {
	if !old.OptimizationEnabled && updated.OptimizationEnabled {
		return "optimization enabled: expect cost savings with slower off-window replies"
	}
	if old.OptimizationEnabled && !updated.OptimizationEnabled {
		return "optimization disabled: every off-window reply will be sent immediately at full cost"
	}

	switch {
	case updated.MaxOptimizationPercent > old.MaxOptimizationPercent:
		return "higher optimization ceiling: more replies delayed, larger expected savings"
	case updated.MaxOptimizationPercent < old.MaxOptimizationPercent:
		return "lower optimization ceiling: fewer replies delayed, smaller expected savings"
	case updated.CostThreshold > old.CostThreshold:
		return "higher cost threshold: optimization triggers less often"
	case updated.CostThreshold < old.CostThreshold:
		return "lower cost threshold: optimization triggers more often"
	default:
		return "no significant change in optimization behavior expected"
	}
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
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) completeWithErrorPayload(ctx context.Context, client worker.JobClient, job entities.Job, stdErr *errors.StandardError) {
	h.logger.Error("settings update rejected", map[string]interface{}{
		"jobKey":    job.Key,
		"errorCode": string(stdErr.Code),
		"message":   stdErr.Message,
	})

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(errors.NewErrorPayload(stdErr))
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func fieldErrors(err error) []errors.FieldError {
	verrs, ok := err.(validation.Errors)
	if !ok {
		return []errors.FieldError{{Field: "input", Message: err.Error()}}
	}

	fields := make([]errors.FieldError, 0, len(verrs))
	for name, ferr := range verrs {
		fields = append(fields, errors.FieldError{Field: name, Message: ferr.Error()})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return fields
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, *errors.StandardError) {
	return h.execute(ctx, input)
}

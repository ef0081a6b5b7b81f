// internal/workers/routing/select-model/handler.go
package selectmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"salon-workers/internal/analytics"
	"salon-workers/internal/budget"
	"salon-workers/internal/common/errors"
	"salon-workers/internal/common/logger"
	"salon-workers/internal/common/metrics"
	"salon-workers/internal/common/observability"
	"salon-workers/internal/models"
	"salon-workers/internal/signals"
	"salon-workers/internal/store"
	"salon-workers/pkg/catalog"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	TaskType = "select-model"

	engineName = "model-router"
)

// Request types with a fixed business-rule model assignment. Catalog order
// is irrelevant here: the rule names the model directly.
var directMap = map[string]string{
	RequestComplexProblemSolving: catalog.ModelReasoning,
	RequestVoiceResponse:         catalog.ModelVoice,
	RequestGeneralInquiry:        catalog.ModelFastChat,
	RequestBookingInquiry:        catalog.ModelFastChat,
}

var directReasons = map[string]string{
	RequestComplexProblemSolving: "complex problem solving is always handled by the reasoning model",
	RequestVoiceResponse:         "voice responses are always handled by the voice synthesis model",
	RequestGeneralInquiry:        "general inquiries are always handled by the fast low-cost model",
	RequestBookingInquiry:        "booking inquiries are always handled by the fast low-cost model",
}

// SettingsProvider reads per-salon configuration.
type SettingsProvider interface {
	Get(ctx context.Context, salonID string) (*models.SalonSettings, error)
}

// UsageReader reads the trailing usage window and records decision events.
type UsageReader interface {
	QueryHistory(ctx context.Context, salonID string, since time.Time) ([]models.UsageRecord, error)
	InsertUsageEvent(ctx context.Context, rec models.UsageRecord) error
}

// BudgetReader reads the salon's current spend position.
type BudgetReader interface {
	Snapshot(ctx context.Context, salonID string) models.BudgetState
}

// DecisionRecorder accepts best-effort analytics events.
type DecisionRecorder interface {
	Record(ctx context.Context, event analytics.DecisionEvent)
}

// BudgetAlerter notifies the salon when a request is rejected over budget.
// May be nil when no alert channels are configured.
type BudgetAlerter interface {
	Alert(ctx context.Context, salonID string, util budget.Utilization, reason string)
}

type Handler struct {
	config    *Config
	settings  SettingsProvider
	usage     UsageReader
	budget    BudgetReader
	sink      DecisionRecorder
	alerter   BudgetAlerter
	obs       *observability.Observability
	catalog   *catalog.Catalog
	extractor *signals.Extractor
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(
	config *Config,
	settings SettingsProvider,
	usage UsageReader,
	budgetReader BudgetReader,
	sink DecisionRecorder,
	alerter BudgetAlerter,
	obs *observability.Observability,
	cat *catalog.Catalog,
	log logger.Logger,
) *Handler {
	return &Handler{
		config:    config,
		settings:  settings,
		usage:     usage,
		budget:    budgetReader,
		sink:      sink,
		alerter:   alerter,
		obs:       obs,
		catalog:   cat,
		extractor: signals.NewExtractor(),
		errors:    errors.NewErrorHandler(log),
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		stdErr := errors.NewValidationError(fmt.Sprintf("parse input: %v", err), nil)
		h.completeWithErrorPayload(ctx, client, job, stdErr)
		return
	}

	output, stdErr := h.execute(ctx, &input)
	metrics.DecisionDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordDecisionDuration(ctx, time.Since(start), engineName)

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
	if err := input.Validate(); err != nil {
		return nil, errors.NewValidationError("invalid routing input", fieldErrors(err))
	}

	settings, err := h.settings.Get(ctx, input.Context.SalonID)
	if err != nil {
		return nil, errors.NewUsageStoreError("read salon settings", err)
	}
	if settings == nil {
		return nil, errors.NewSalonNotFoundError(input.Context.SalonID)
	}

	enabled := settings.EnabledModels
	if input.EnabledModels != nil {
		enabled = input.EnabledModels
	}
	constraints := settings.Budget
	if input.Budget != nil {
		constraints = *input.Budget
	}

	enabledIDs := h.enabledModelIDs(enabled)
	if len(enabledIDs) == 0 {
		return nil, errors.NewNoModelsEnabledError(input.Context.SalonID)
	}

	output := h.decide(ctx, input, enabledIDs)

	// Budget re-validation is independent of which phase produced the
	// estimate.
	state := h.budget.Snapshot(ctx, input.Context.SalonID)
	if check := budget.Check(output.EstimatedCost, constraints, state); !check.Allowed {
		output = h.budgetExceeded(output, check.Reason, constraints, state, enabledIDs)
		h.sendBudgetAlert(input.Context.SalonID, budget.Utilize(state, constraints), check.Reason)
	}

	metrics.RoutingDecisions.WithLabelValues(output.RoutingDecision, output.SelectedModel).Inc()
	h.obs.RecordDecision(ctx, engineName, output.RoutingDecision)
	h.logger.Info("routing decision", map[string]interface{}{
		"salonId":        input.Context.SalonID,
		"conversationId": input.Context.ConversationID,
		"decision":       output.RoutingDecision,
		"model":          output.SelectedModel,
		"confidence":     output.Confidence,
		"estimatedCost":  output.EstimatedCost,
	})

	if output.RoutingDecision == DecisionModelSelected {
		h.recordDecision(input, output)
	}

	return output, nil
}

// decide runs Phase A when the request type has an enabled direct mapping,
// otherwise falls back to weighted scoring.
func (h *Handler) decide(ctx context.Context, input *Input, enabledIDs []string) *Output {
	requestType := input.NormalizedRequestType()
	enabled := make(map[string]bool, len(enabledIDs))
	for _, id := range enabledIDs {
		enabled[id] = true
	}

	if mapped, ok := directMap[requestType]; ok && enabled[mapped] {
		spec := h.catalog.Get(mapped)
		return &Output{
			RoutingDecision: DecisionModelSelected,
			SelectedModel:   spec.ID,
			Confidence:      1.0,
			Reasoning:       directReasons[requestType],
			EstimatedCost:   estimateCost(spec, input.MessageContent),
			Capabilities:    capabilitiesOf(spec),
			Alternatives:    []Alternative{},
		}
	}

	return h.scoreAndSelect(ctx, input, enabledIDs)
}

func (h *Handler) scoreAndSelect(ctx context.Context, input *Input, enabledIDs []string) *Output {
	sig := h.extractor.Extract(input.MessageContent, input.Context.Sentiment)
	complexity := sig.Overall()

	perf := h.loadHistory(ctx, input.Context.SalonID)

	mode := input.OptimizationMode
	if mode == "" {
		mode = h.config.DefaultMode
	}
	weights := weightsFor(mode)

	candidates := scoreModels(h.catalog, enabledIDs, input.MessageContent, complexity, perf, weights)
	best := pickBest(candidates)
	selected := candidates[best]

	rest := make([]scoredModel, 0, len(candidates)-1)
	for i, c := range candidates {
		if i != best {
			rest = append(rest, c)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Weighted > rest[j].Weighted })

	alternatives := make([]Alternative, 0, 2)
	for _, c := range rest {
		if len(alternatives) == 2 {
			break
		}
		alternatives = append(alternatives, Alternative{Model: c.Spec.ID, Score: c.Weighted})
	}

	ensemble := len(rest) > 0 && selected.Weighted-rest[0].Weighted < 0.1

	return &Output{
		RoutingDecision:   DecisionModelSelected,
		SelectedModel:     selected.Spec.ID,
		Confidence:        clamp01(selected.Weighted),
		Reasoning:         scoreReasoning(selected, weights, mode),
		EstimatedCost:     selected.EstimatedCost,
		Capabilities:      capabilitiesOf(selected.Spec),
		Alternatives:      alternatives,
		EnsembleAvailable: ensemble,
	}
}

// loadHistory degrades to catalog priors when the usage window cannot be
// read.
func (h *Handler) loadHistory(ctx context.Context, salonID string) map[string]models.ModelPerformance {
	since := time.Now().UTC().AddDate(0, 0, -h.config.HistoryWindowDays)
	records, err := h.usage.QueryHistory(ctx, salonID, since)
	if err != nil {
		h.logger.Warn("usage history unavailable, using priors", map[string]interface{}{
			"salonId": salonID,
			"error":   err.Error(),
		})
		return nil
	}
	return store.AggregateByModel(records)
}

// budgetExceeded overrides a candidate decision with a budget rejection,
// keeping the estimate and suggesting the cheapest cheaper model.
func (h *Handler) budgetExceeded(prev *Output, reason string, constraints models.BudgetConstraints, state models.BudgetState, enabledIDs []string) *Output {
	util := budget.Utilize(state, constraints)

	suggested := ""
	if spec := h.catalog.Get(prev.SelectedModel); spec != nil {
		suggested = h.cheapestBelow(spec.BaseCostPer1K, enabledIDs)
	}

	return &Output{
		RoutingDecision: DecisionBudgetExceeded,
		SelectedModel:   ModelNone,
		Confidence:      1.0,
		Reasoning:       fmt.Sprintf("budget exceeded: %s", reason),
		EstimatedCost:   prev.EstimatedCost,
		Alternatives:    []Alternative{},
		BudgetUtilization: &Utilization{
			DailyPercent:   util.DailyPercent,
			MonthlyPercent: util.MonthlyPercent,
		},
		SuggestedAlternative: suggested,
	}
}

func (h *Handler) cheapestBelow(cost float64, enabledIDs []string) string {
	cheapest := ""
	cheapestCost := cost
	for _, id := range enabledIDs {
		if spec := h.catalog.Get(id); spec != nil && spec.BaseCostPer1K < cheapestCost {
			cheapest = spec.ID
			cheapestCost = spec.BaseCostPer1K
		}
	}
	return cheapest
}

func (h *Handler) enabledModelIDs(enabled map[string]bool) []string {
	var ids []string
	for i := range h.catalog.Models {
		if enabled[h.catalog.Models[i].ID] {
			ids = append(ids, h.catalog.Models[i].ID)
		}
	}
	return ids
}

// sendBudgetAlert notifies the salon asynchronously. The workflow response
// never waits on alert delivery.
func (h *Handler) sendBudgetAlert(salonID string, util budget.Utilization, reason string) {
	if h.alerter == nil {
		return
	}
	go func() {
		defer func() { _ = recover() }()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.alerter.Alert(ctx, salonID, util, reason)
	}()
}

// recordDecision feeds the usage history and analytics asynchronously.
// Failures are counted and logged, never surfaced to the caller.
func (h *Handler) recordDecision(input *Input, output *Output) {
	rec := models.UsageRecord{
		SalonID:        input.Context.SalonID,
		ConversationID: input.Context.ConversationID,
		Model:          output.SelectedModel,
		Cost:           output.EstimatedCost,
		Confidence:     output.Confidence,
		Reasoning:      output.Reasoning,
		Timestamp:      time.Now().UTC(),
	}

	event := analytics.DecisionEvent{
		Engine:         engineName,
		SalonID:        input.Context.SalonID,
		ConversationID: input.Context.ConversationID,
		Outcome:        output.RoutingDecision,
		Model:          output.SelectedModel,
		Confidence:     output.Confidence,
		Details: map[string]interface{}{
			"reasoning":      output.Reasoning,
			"estimated_cost": output.EstimatedCost,
		},
	}

	go func() {
		defer func() { _ = recover() }()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.usage.InsertUsageEvent(ctx, rec); err != nil {
			metrics.UsageEventFailures.Inc()
			h.logger.Warn("usage event write failed", map[string]interface{}{
				"salonId": rec.SalonID,
				"model":   rec.Model,
				"error":   err.Error(),
			})
		}
		if h.sink != nil {
			h.sink.Record(ctx, event)
		}
	}()
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

// completeWithErrorPayload completes the job with the structured error
// envelope so the process routes it to the error channel instead of
// retrying.
func (h *Handler) completeWithErrorPayload(ctx context.Context, client worker.JobClient, job entities.Job, stdErr *errors.StandardError) {
	h.logger.Error("terminal decision error", map[string]interface{}{
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

// fieldErrors flattens an ozzo validation result into field-level messages.
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

func capabilitiesOf(spec *catalog.ModelSpec) *Capabilities {
	return &Capabilities{
		DisplayName:   spec.DisplayName,
		OutputChannel: spec.OutputChannel,
		Reasoning:     spec.Reasoning,
		Voice:         spec.Voice,
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, *errors.StandardError) {
	return h.execute(ctx, input)
}

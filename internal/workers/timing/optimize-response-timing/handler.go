// internal/workers/timing/optimize-response-timing/handler.go
package optimizeresponsetiming

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"salon-workers/internal/analytics"
	"salon-workers/internal/common/errors"
	"salon-workers/internal/common/logger"
	"salon-workers/internal/common/metrics"
	"salon-workers/internal/common/observability"
	"salon-workers/internal/models"
	"salon-workers/internal/signals"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	TaskType = "optimize-response-timing"

	engineName = "timing-optimizer"
)

// Gap prediction bounds.
const (
	defaultGapHours     = 4.0
	gapOutlierMaxHours  = 72.0
	gapConservatism     = 0.7
	gapFloorHours       = 1.0
	gapCeilingHours     = 12.0
	minSafeGapHours     = 2.0
	delayMinutesPerHour = 30.0
	minDelayMinutes     = 60
	maxDelayMinutes     = 240
)

// A booking lexical match with at least this probability makes the message
// too booking-related to delay, even below the hard gate threshold.
const stronglyBookingProbability = 0.3

// SettingsProvider reads per-salon configuration.
type SettingsProvider interface {
	Get(ctx context.Context, salonID string) (*models.SalonSettings, error)
}

// TimingReader provides the message timestamps the window check and gap
// prediction run on.
type TimingReader interface {
	LastInboundMessageAt(ctx context.Context, conversationID string) (*time.Time, error)
	CustomerMessageTimestamps(ctx context.Context, customerID string, limit int) ([]time.Time, error)
}

// DecisionRecorder accepts best-effort analytics events.
type DecisionRecorder interface {
	Record(ctx context.Context, event analytics.DecisionEvent)
}

type Handler struct {
	config   *Config
	settings SettingsProvider
	timing   TimingReader
	sink     DecisionRecorder
	obs      *observability.Observability
	errors   *errors.ErrorHandler
	logger   logger.Logger

	// Injectable clock for window-math tests.
	now func() time.Time
}

func NewHandler(
	config *Config,
	settings SettingsProvider,
	timing TimingReader,
	sink DecisionRecorder,
	obs *observability.Observability,
	log logger.Logger,
) *Handler {
	return &Handler{
		config:   config,
		settings: settings,
		timing:   timing,
		sink:     sink,
		obs:      obs,
		errors:   errors.NewErrorHandler(log),
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:      func() time.Time { return time.Now().UTC() },
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

// execute walks the decision forward: window check, safety gates, then the
// risk evaluation. Each stage either decides or hands off to the next.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, *errors.StandardError) {
	if err := input.Validate(); err != nil {
		return nil, errors.NewValidationError("invalid timing input", fieldErrors(err))
	}

	sw, stdErr := h.resolveSettings(ctx, input)
	if stdErr != nil {
		return nil, stdErr
	}

	output, decided := h.evaluateWindow(ctx, input, sw)
	if !decided {
		windowStatus := output.WindowStatus
		output, decided = h.evaluateSafetyGates(input, sw)
		if !decided {
			output = h.evaluateRisk(ctx, input, sw)
		}
		output.WindowStatus = windowStatus
		output.MessageWillIncurCost = true
	}

	h.recordDecision(input, output)

	result := "immediate"
	if output.ShouldOptimize {
		result = "optimize"
	}
	metrics.TimingDecisions.WithLabelValues(result).Inc()
	h.obs.RecordDecision(ctx, engineName, result)

	h.logger.Info("timing decision", map[string]interface{}{
		"salonId":        input.Context.SalonID,
		"conversationId": input.Context.ConversationID,
		"shouldOptimize": output.ShouldOptimize,
		"delayMinutes":   output.DelayMinutes,
		"confidence":     output.Confidence,
	})

	return output, nil
}

func (h *Handler) resolveSettings(ctx context.Context, input *Input) (models.ServiceWindowSettings, *errors.StandardError) {
	if input.ServiceWindow != nil {
		return *input.ServiceWindow, nil
	}

	settings, err := h.settings.Get(ctx, input.Context.SalonID)
	if err != nil {
		return models.ServiceWindowSettings{}, errors.NewUsageStoreError("read salon settings", err)
	}
	if settings == nil {
		return models.ServiceWindowSettings{}, errors.NewSalonNotFoundError(input.Context.SalonID)
	}
	return settings.ServiceWindow, nil
}

// evaluateWindow checks whether the reply is already inside the free
// window. A missing or unreadable last-inbound timestamp is treated as
// outside the window, so the cost question falls through to the gates.
func (h *Handler) evaluateWindow(ctx context.Context, input *Input, sw models.ServiceWindowSettings) (*Output, bool) {
	last, err := h.timing.LastInboundMessageAt(ctx, input.Context.ConversationID)
	if err != nil {
		h.logger.Warn("last inbound lookup failed, assuming window expired", map[string]interface{}{
			"conversationId": input.Context.ConversationID,
			"error":          err.Error(),
		})
	}

	windowHours := float64(sw.FreeWindowHours)
	status := &WindowStatus{}

	if last != nil {
		elapsed := h.now().Sub(*last).Hours()
		status.LastInboundAt = last.Format(time.RFC3339)
		status.HoursRemaining = windowHours - elapsed
		if status.HoursRemaining < 0 {
			status.HoursRemaining = 0
		}

		if elapsed < windowHours {
			status.IsActive = true
			status.ExpiresAt = last.Add(time.Duration(windowHours * float64(time.Hour))).Format(time.RFC3339)

			return &Output{
				ShouldOptimize:       false,
				DelayMinutes:         0,
				EstimatedSavings:     0,
				Confidence:           1.0,
				Reasoning:            "already within free window, reply costs nothing",
				RiskFactors:          []string{},
				AlternativeActions:   []string{},
				MessageWillIncurCost: false,
				WindowStatus:         status,
			}, true
		}
	}

	return &Output{WindowStatus: status}, false
}

// evaluateSafetyGates applies the ordered short-circuit gates. The booking
// probability gate runs before urgency and ignores the override flag.
func (h *Handler) evaluateSafetyGates(input *Input, sw models.ServiceWindowSettings) (*Output, bool) {
	prob := input.Probability()

	if !sw.OptimizationEnabled {
		return gateDecision("service window optimization is disabled for this salon", 1.0, nil), true
	}

	if prob > 0.8 {
		return gateDecision(
			fmt.Sprintf("high booking probability (%.2f), responding immediately to protect the lead", prob),
			0.9, []string{"high_booking_probability"}), true
	}

	if input.Context.Sentiment == models.SentimentNegative {
		return gateDecision(
			"negative sentiment detected, immediate response protects the relationship",
			0.9, []string{"negative_sentiment"}), true
	}

	if input.Urgency() == models.UrgencyUrgent && !input.OverrideSafety {
		return gateDecision(
			"urgent customer request, immediate response required",
			0.9, []string{"urgent_request"}), true
	}

	if signals.IsBookingRelated(input.MessageContent) && prob > 0.5 {
		return gateDecision(
			fmt.Sprintf("booking-related message with probability %.2f, responding immediately", prob),
			0.9, []string{"booking_related"}), true
	}

	return nil, false
}

// evaluateRisk decides between delaying and replying immediately once the
// gates have passed.
func (h *Handler) evaluateRisk(ctx context.Context, input *Input, sw models.ServiceWindowSettings) *Output {
	prob := input.Probability()
	urgency := input.Urgency()
	gapHours := h.predictedGapHours(ctx, input.Context.CustomerID)

	stronglyBooking := signals.IsBookingRelated(input.MessageContent) && prob >= stronglyBookingProbability

	lowRisk := prob < 0.5 &&
		(urgency == models.UrgencyLow || urgency == models.UrgencyMedium) &&
		gapHours > minSafeGapHours &&
		!stronglyBooking

	if !lowRisk {
		riskFactors := []string{}
		if prob >= 0.5 {
			riskFactors = append(riskFactors, "elevated_booking_probability")
		}
		if urgency == models.UrgencyHigh || urgency == models.UrgencyUrgent {
			riskFactors = append(riskFactors, "elevated_urgency")
		}
		if gapHours <= minSafeGapHours {
			riskFactors = append(riskFactors, "customer_replies_quickly")
		}
		if stronglyBooking {
			riskFactors = append(riskFactors, "booking_related")
		}

		return &Output{
			ShouldOptimize:     false,
			Confidence:         0.7,
			Reasoning:          "moderate risk, immediate response recommended",
			RiskFactors:        riskFactors,
			AlternativeActions: []string{"respond_immediately"},
		}
	}

	delay := int(gapHours * delayMinutesPerHour)
	if delay < minDelayMinutes {
		delay = minDelayMinutes
	}
	if delay > maxDelayMinutes {
		delay = maxDelayMinutes
	}

	confidence := 0.9 - prob
	if confidence < 0.6 {
		confidence = 0.6
	}

	return &Output{
		ShouldOptimize:   true,
		DelayMinutes:     delay,
		EstimatedSavings: sw.TemplateCost,
		Confidence:       confidence,
		Reasoning:        fmt.Sprintf("safe to delay response by %d minutes", delay),
		RiskFactors:      []string{},
		AlternativeActions: []string{
			"send_template_after_delay",
			"respond_immediately",
		},
	}
}

// predictedGapHours averages the customer's recent inter-message gaps,
// discarding outliers, then scales down for conservatism.
func (h *Handler) predictedGapHours(ctx context.Context, customerID string) float64 {
	avg := defaultGapHours

	timestamps, err := h.timing.CustomerMessageTimestamps(ctx, customerID, h.config.GapHistoryLimit)
	if err != nil {
		h.logger.Warn("message history unavailable, using default gap", map[string]interface{}{
			"customerId": customerID,
			"error":      err.Error(),
		})
		timestamps = nil
	}

	if len(timestamps) >= 2 {
		var sum float64
		var count int
		for i := 0; i < len(timestamps)-1; i++ {
			gap := timestamps[i].Sub(timestamps[i+1]).Hours()
			if gap <= 0 || gap >= gapOutlierMaxHours {
				continue
			}
			sum += gap
			count++
		}
		if count > 0 {
			avg = sum / float64(count)
		}
	}

	predicted := avg * gapConservatism
	if predicted < gapFloorHours {
		predicted = gapFloorHours
	}
	if predicted > gapCeilingHours {
		predicted = gapCeilingHours
	}
	return predicted
}

func gateDecision(reason string, confidence float64, riskFactors []string) *Output {
	if riskFactors == nil {
		riskFactors = []string{}
	}
	return &Output{
		ShouldOptimize:     false,
		DelayMinutes:       0,
		EstimatedSavings:   0,
		Confidence:         confidence,
		Reasoning:          reason,
		RiskFactors:        riskFactors,
		AlternativeActions: []string{"respond_immediately"},
	}
}

// recordDecision emits the analytics event asynchronously; a sink failure
// never alters the returned decision.
func (h *Handler) recordDecision(input *Input, output *Output) {
	if h.sink == nil {
		return
	}

	outcome := "immediate"
	if output.ShouldOptimize {
		outcome = "optimize"
	}

	event := analytics.DecisionEvent{
		Engine:         engineName,
		SalonID:        input.Context.SalonID,
		ConversationID: input.Context.ConversationID,
		Outcome:        outcome,
		Confidence:     output.Confidence,
		Details: map[string]interface{}{
			"should_optimize": output.ShouldOptimize,
			"delay_minutes":   output.DelayMinutes,
			"reasoning":       output.Reasoning,
		},
	}

	go func() {
		defer func() { _ = recover() }()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.sink.Record(ctx, event)
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

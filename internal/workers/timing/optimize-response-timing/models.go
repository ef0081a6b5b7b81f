// internal/workers/timing/optimize-response-timing/models.go
package optimizeresponsetiming

import (
	"salon-workers/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Input struct {
	MessageContent  string                     `json:"messageContent"`
	CustomerUrgency string                     `json:"customerUrgency"`
	OverrideSafety  bool                       `json:"overrideSafety"`
	Context         models.ConversationContext `json:"conversationContext"`

	// Optional overrides for the salon's stored values.
	BookingProbability *float64                      `json:"bookingProbability,omitempty"`
	ServiceWindow      *models.ServiceWindowSettings `json:"serviceWindowSettings,omitempty"`
}

func (in *Input) Validate() error {
	if err := validation.ValidateStruct(in,
		validation.Field(&in.CustomerUrgency, validation.In(
			"", models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh, models.UrgencyUrgent)),
		validation.Field(&in.BookingProbability, validation.Min(0.0), validation.Max(1.0)),
	); err != nil {
		return err
	}

	return validation.ValidateStruct(&in.Context,
		validation.Field(&in.Context.SalonID, validation.Required),
		validation.Field(&in.Context.ConversationID, validation.Required),
		validation.Field(&in.Context.BookingProbability, validation.Min(0.0), validation.Max(1.0)),
	)
}

// Urgency returns the caller-supplied urgency, defaulting to medium.
func (in *Input) Urgency() string {
	if in.CustomerUrgency == "" {
		return models.UrgencyMedium
	}
	return in.CustomerUrgency
}

// Probability returns the booking probability, preferring the explicit
// override over the conversation context.
func (in *Input) Probability() float64 {
	if in.BookingProbability != nil {
		return *in.BookingProbability
	}
	return in.Context.BookingProbability
}

// WindowStatus reports where the conversation sits relative to the
// free-messaging window.
type WindowStatus struct {
	IsActive       bool    `json:"is_active"`
	ExpiresAt      string  `json:"expires_at,omitempty"`
	HoursRemaining float64 `json:"hours_remaining"`
	LastInboundAt  string  `json:"last_inbound_at,omitempty"`
}

type Output struct {
	ShouldOptimize       bool     `json:"should_optimize"`
	DelayMinutes         int      `json:"delay_minutes"`
	EstimatedSavings     float64  `json:"estimated_savings"`
	Confidence           float64  `json:"confidence"`
	Reasoning            string   `json:"reasoning"`
	RiskFactors          []string `json:"risk_factors"`
	AlternativeActions   []string `json:"alternative_actions"`
	MessageWillIncurCost bool     `json:"message_will_incur_cost"`

	WindowStatus *WindowStatus `json:"service_window_status,omitempty"`
}

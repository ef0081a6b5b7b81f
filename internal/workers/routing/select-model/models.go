// internal/workers/routing/select-model/models.go
package selectmodel

import (
	"strings"

	"salon-workers/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Request types with a direct business-rule mapping.
const (
	RequestComplexProblemSolving = "complex_problem_solving"
	RequestVoiceResponse         = "voice_response"
	RequestGeneralInquiry        = "general_inquiry"
	RequestBookingInquiry        = "booking_inquiry"
)

// Routing outcomes.
const (
	DecisionModelSelected  = "model_selected"
	DecisionBudgetExceeded = "budget_exceeded"

	// SelectedModel value when no model could be chosen.
	ModelNone = "none"
)

// Optimization modes selecting the scoring weight preset.
const (
	ModeCostEfficiency = "cost_efficiency"
	ModeQuality        = "quality"
	ModeBalanced       = "balanced"
	ModeSpeed          = "speed"
	ModePremium        = "premium"
)

type Input struct {
	MessageContent   string                     `json:"messageContent"`
	RequestType      string                     `json:"requestType"`
	Priority         string                     `json:"priority,omitempty"`
	OptimizationMode string                     `json:"optimizationMode,omitempty"`
	Context          models.ConversationContext `json:"conversationContext"`
	Budget           *models.BudgetConstraints  `json:"budgetConstraints,omitempty"`

	// Optional override of the salon's stored per-model flags.
	EnabledModels map[string]bool `json:"enabledModels,omitempty"`
}

// Validate checks the loosely-typed workflow variables before any decision
// logic runs. Every violated field is reported.
func (in *Input) Validate() error {
	if err := validation.ValidateStruct(in,
		validation.Field(&in.MessageContent, validation.Required),
		validation.Field(&in.RequestType, validation.Required),
		validation.Field(&in.OptimizationMode, validation.In(
			"", ModeCostEfficiency, ModeQuality, ModeBalanced, ModeSpeed, ModePremium)),
	); err != nil {
		return err
	}

	return validation.ValidateStruct(&in.Context,
		validation.Field(&in.Context.SalonID, validation.Required),
		validation.Field(&in.Context.BookingProbability, validation.Min(0.0), validation.Max(1.0)),
	)
}

// NormalizedRequestType folds caller spelling variants ("Complex Problem
// Solving", "complex-problem-solving") onto the canonical identifiers.
func (in *Input) NormalizedRequestType() string {
	t := strings.ToLower(strings.TrimSpace(in.RequestType))
	t = strings.ReplaceAll(t, " ", "_")
	t = strings.ReplaceAll(t, "-", "_")
	return t
}

type Capabilities struct {
	DisplayName   string `json:"display_name"`
	OutputChannel string `json:"output_channel"`
	Reasoning     bool   `json:"reasoning"`
	Voice         bool   `json:"voice"`
}

type Alternative struct {
	Model string  `json:"model"`
	Score float64 `json:"score"`
}

type Utilization struct {
	DailyPercent   float64 `json:"daily_percent"`
	MonthlyPercent float64 `json:"monthly_percent"`
}

type Output struct {
	RoutingDecision   string        `json:"routing_decision"`
	SelectedModel     string        `json:"selected_model"`
	Confidence        float64       `json:"confidence"`
	Reasoning         string        `json:"reasoning"`
	EstimatedCost     float64       `json:"estimated_cost"`
	Capabilities      *Capabilities `json:"capabilities,omitempty"`
	Alternatives      []Alternative `json:"alternatives"`
	EnsembleAvailable bool          `json:"ensemble_available"`

	// Populated on budget_exceeded.
	BudgetUtilization    *Utilization `json:"budget_utilization,omitempty"`
	SuggestedAlternative string       `json:"suggested_alternative,omitempty"`
}

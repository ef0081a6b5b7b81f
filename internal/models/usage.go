// internal/models/usage.go
package models

import "time"

// UsageRecord is one historical provider invocation.
type UsageRecord struct {
	SalonID        string    `json:"salonId"`
	ConversationID string    `json:"conversationId,omitempty"`
	Model          string    `json:"model"`
	Cost           float64   `json:"cost"`
	ResponseTimeMs int       `json:"responseTimeMs"`
	Confidence     float64   `json:"confidence"`
	Reasoning      string    `json:"reasoning,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Success reports whether the record counts toward a model's success rate.
// Confidence >= 0.5 with a positive response time is the closest observable
// proxy the stored record shape allows.
func (r UsageRecord) Success() bool {
	return r.Confidence >= 0.5 && r.ResponseTimeMs > 0
}

// ModelPerformance aggregates usage records for one model over a window.
type ModelPerformance struct {
	Model         string  `json:"model"`
	Requests      int     `json:"requests"`
	SuccessRate   float64 `json:"successRate"`
	AvgCost       float64 `json:"avgCost"`
	AvgResponseMs float64 `json:"avgResponseMs"`
	TotalCost     float64 `json:"totalCost"`
}

// BudgetState is the salon's spend position, read fresh per decision.
type BudgetState struct {
	DailySpent      float64 `json:"dailySpent"`
	MonthlySpent    float64 `json:"monthlySpent"`
	DailyRequests   int     `json:"dailyRequests"`
	MonthlyRequests int     `json:"monthlyRequests"`

	// Known is false when the usage store could not be read; enforcement
	// degrades to allow rather than blocking on unknown spend.
	Known bool `json:"known"`
}

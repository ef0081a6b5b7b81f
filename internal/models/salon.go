// internal/models/salon.go
package models

// SalonSettings is the per-salon configuration snapshot passed explicitly
// into every decision. There is no process-wide settings singleton.
type SalonSettings struct {
	SalonID       string                `json:"salonId"`
	EnabledModels map[string]bool       `json:"enabledModels"`
	Budget        BudgetConstraints     `json:"budget"`
	ServiceWindow ServiceWindowSettings `json:"serviceWindow"`
}

// ModelEnabled reports whether the salon has the given model switched on.
// Unknown model names are treated as disabled.
func (s *SalonSettings) ModelEnabled(model string) bool {
	if s == nil {
		return false
	}
	return s.EnabledModels[model]
}

// SalonContact carries the owner contact details budget alerts go to.
// Either field may be empty.
type SalonContact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// BudgetConstraints bounds what a single request and the salon as a whole
// may spend on AI providers.
type BudgetConstraints struct {
	MaxCost       float64 `json:"maxCost"`
	EnforceLimit  bool    `json:"enforceLimit"`
	DailyBudget   float64 `json:"dailyBudget"`
	MonthlyBudget float64 `json:"monthlyBudget"`
}

// ServiceWindowSettings controls the response-timing optimizer.
type ServiceWindowSettings struct {
	OptimizationEnabled    bool    `json:"optimizationEnabled"`
	FreeWindowHours        float64 `json:"freeWindowHours"`
	TemplateCost           float64 `json:"templateCost"`
	CostThreshold          float64 `json:"costThreshold"`
	MaxOptimizationPercent float64 `json:"maxOptimizationPercent"`
}

// DefaultServiceWindowSettings mirrors the messaging platform's standard
// 24 hour customer service window.
func DefaultServiceWindowSettings() ServiceWindowSettings {
	return ServiceWindowSettings{
		OptimizationEnabled:    true,
		FreeWindowHours:        24,
		TemplateCost:           0.05,
		CostThreshold:          0.01,
		MaxOptimizationPercent: 60,
	}
}

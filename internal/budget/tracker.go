// internal/budget/tracker.go
package budget

import (
	"context"
	"time"

	"salon-workers/internal/common/logger"
	"salon-workers/internal/models"
)

// SpendReader provides the salon's current spend position.
type SpendReader interface {
	BudgetSpend(ctx context.Context, salonID string, now time.Time) (models.BudgetState, error)
}

// Decision is the outcome of a budget check for one estimated request cost.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Utilization is the salon's spend expressed against its configured limits.
// A zero limit reports zero utilization rather than dividing by it.
type Utilization struct {
	DailyPercent   float64 `json:"dailyPercent"`
	MonthlyPercent float64 `json:"monthlyPercent"`
}

// Tracker checks estimated request costs against per-salon budget
// constraints, reading spend fresh for each decision.
type Tracker struct {
	spend  SpendReader
	logger logger.Logger
}

func NewTracker(spend SpendReader, log logger.Logger) *Tracker {
	return &Tracker{
		spend:  spend,
		logger: log.WithFields(map[string]interface{}{"component": "budget-tracker"}),
	}
}

// Snapshot reads the salon's current spend. A store failure degrades to an
// unknown state so enforcement allows the request instead of blocking it.
func (t *Tracker) Snapshot(ctx context.Context, salonID string) models.BudgetState {
	state, err := t.spend.BudgetSpend(ctx, salonID, time.Now().UTC())
	if err != nil {
		t.logger.Warn("budget spend lookup failed, allowing request", map[string]interface{}{
			"salonId": salonID,
			"error":   err.Error(),
		})
		return models.BudgetState{Known: false}
	}
	return state
}

// Check decides whether a request with the estimated cost fits the salon's
// budget. Limits set to zero are treated as unlimited.
func Check(estCost float64, constraints models.BudgetConstraints, state models.BudgetState) Decision {
	if !constraints.EnforceLimit {
		return Decision{Allowed: true, Reason: "enforcement disabled"}
	}

	// The per-request cap needs no spend data, so it applies even when the
	// store could not be read.
	if constraints.MaxCost > 0 && estCost >= constraints.MaxCost {
		return Decision{Allowed: false, Reason: "estimated cost exceeds per-request limit"}
	}

	if !state.Known {
		return Decision{Allowed: true, Reason: "spend unknown, enforcement skipped"}
	}
	if constraints.DailyBudget > 0 && state.DailySpent+estCost > constraints.DailyBudget {
		return Decision{Allowed: false, Reason: "daily budget exhausted"}
	}
	if constraints.MonthlyBudget > 0 && state.MonthlySpent+estCost > constraints.MonthlyBudget {
		return Decision{Allowed: false, Reason: "monthly budget exhausted"}
	}

	return Decision{Allowed: true}
}

// Utilize expresses the spend state as percentages of the configured limits.
func Utilize(state models.BudgetState, constraints models.BudgetConstraints) Utilization {
	var u Utilization
	if constraints.DailyBudget > 0 {
		u.DailyPercent = state.DailySpent / constraints.DailyBudget * 100
	}
	if constraints.MonthlyBudget > 0 {
		u.MonthlyPercent = state.MonthlySpent / constraints.MonthlyBudget * 100
	}
	return u
}

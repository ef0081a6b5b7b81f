package budget

import (
	"context"
	"testing"
	"time"

	"salon-workers/internal/common/logger"
	"salon-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

type stubSpendReader struct {
	state models.BudgetState
	err   error
}

func (s stubSpendReader) BudgetSpend(_ context.Context, _ string, _ time.Time) (models.BudgetState, error) {
	return s.state, s.err
}

func TestSnapshot(t *testing.T) {
	want := models.BudgetState{DailySpent: 1.5, MonthlySpent: 22.0, Known: true}
	tracker := NewTracker(stubSpendReader{state: want}, logger.NewTestLogger(t))

	got := tracker.Snapshot(context.Background(), "salon-1")
	assert.Equal(t, want, got)
}

func TestSnapshotStoreFailureDegradesToUnknown(t *testing.T) {
	tracker := NewTracker(stubSpendReader{err: assert.AnError}, logger.NewTestLogger(t))

	got := tracker.Snapshot(context.Background(), "salon-1")
	assert.False(t, got.Known)
}

func TestCheck(t *testing.T) {
	enforced := models.BudgetConstraints{
		MaxCost:       0.01,
		EnforceLimit:  true,
		DailyBudget:   5.0,
		MonthlyBudget: 100.0,
	}
	known := models.BudgetState{DailySpent: 1.0, MonthlySpent: 20.0, Known: true}

	tests := []struct {
		name        string
		estCost     float64
		constraints models.BudgetConstraints
		state       models.BudgetState
		wantAllowed bool
	}{
		{
			name:        "within all limits",
			estCost:     0.005,
			constraints: enforced,
			state:       known,
			wantAllowed: true,
		},
		{
			name:        "exceeds per-request limit",
			estCost:     0.02,
			constraints: enforced,
			state:       known,
			wantAllowed: false,
		},
		{
			name:        "cost equal to per-request limit is rejected",
			estCost:     0.01,
			constraints: enforced,
			state:       known,
			wantAllowed: false,
		},
		{
			name:        "exceeds daily budget",
			estCost:     0.005,
			constraints: enforced,
			state:       models.BudgetState{DailySpent: 4.999, MonthlySpent: 20.0, Known: true},
			wantAllowed: false,
		},
		{
			name:        "exceeds monthly budget",
			estCost:     0.005,
			constraints: enforced,
			state:       models.BudgetState{DailySpent: 1.0, MonthlySpent: 99.999, Known: true},
			wantAllowed: false,
		},
		{
			name:        "enforcement disabled allows over-limit cost",
			estCost:     0.02,
			constraints: models.BudgetConstraints{MaxCost: 0.01, EnforceLimit: false},
			state:       known,
			wantAllowed: true,
		},
		{
			name:        "unknown spend degrades to allow",
			estCost:     0.005,
			constraints: enforced,
			state:       models.BudgetState{Known: false},
			wantAllowed: true,
		},
		{
			name:        "per-request cap applies even with unknown spend",
			estCost:     0.02,
			constraints: enforced,
			state:       models.BudgetState{Known: false},
			wantAllowed: false,
		},
		{
			name:        "zero limits are unlimited",
			estCost:     10.0,
			constraints: models.BudgetConstraints{EnforceLimit: true},
			state:       known,
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.estCost, tt.constraints, tt.state)
			assert.Equal(t, tt.wantAllowed, got.Allowed, got.Reason)
		})
	}
}

func TestUtilize(t *testing.T) {
	state := models.BudgetState{DailySpent: 2.5, MonthlySpent: 50.0, Known: true}
	constraints := models.BudgetConstraints{DailyBudget: 5.0, MonthlyBudget: 100.0}

	u := Utilize(state, constraints)
	assert.InDelta(t, 50.0, u.DailyPercent, 1e-9)
	assert.InDelta(t, 50.0, u.MonthlyPercent, 1e-9)
}

func TestUtilizeZeroLimits(t *testing.T) {
	u := Utilize(models.BudgetState{DailySpent: 2.5}, models.BudgetConstraints{})
	assert.Zero(t, u.DailyPercent)
	assert.Zero(t, u.MonthlyPercent)
}

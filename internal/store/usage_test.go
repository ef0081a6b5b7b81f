package store

import (
	"context"
	"testing"
	"time"

	"salon-workers/internal/common/logger"
	"salon-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsageStore(t *testing.T) (*UsageStore, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := NewUsageStore(db, rdb, time.Minute, logger.NewTestLogger(t))
	return store, mock, mr
}

func TestAggregateByModel(t *testing.T) {
	now := time.Now()
	records := []models.UsageRecord{
		{Model: "gpt-4o-mini", Cost: 0.0002, ResponseTimeMs: 800, Confidence: 0.9, Timestamp: now},
		{Model: "gpt-4o-mini", Cost: 0.0004, ResponseTimeMs: 1200, Confidence: 0.8, Timestamp: now},
		{Model: "gpt-4o", Cost: 0.004, ResponseTimeMs: 2500, Confidence: 0.95, Timestamp: now},
	}

	perf := AggregateByModel(records)

	require.Len(t, perf, 2)

	mini := perf["gpt-4o-mini"]
	assert.Equal(t, 2, mini.Requests)
	assert.InDelta(t, 0.0006, mini.TotalCost, 1e-9)
	assert.InDelta(t, 0.0003, mini.AvgCost, 1e-9)
	assert.InDelta(t, 1000, mini.AvgResponseMs, 1e-9)
	assert.InDelta(t, 1.0, mini.SuccessRate, 1e-9)

	full := perf["gpt-4o"]
	assert.Equal(t, 1, full.Requests)
	assert.InDelta(t, 0.004, full.AvgCost, 1e-9)
	assert.InDelta(t, 2500, full.AvgResponseMs, 1e-9)
}

func TestAggregateByModelSuccessRate(t *testing.T) {
	now := time.Now()
	records := []models.UsageRecord{
		{Model: "gpt-4o-mini", Cost: 0.001, ResponseTimeMs: 900, Confidence: 0.9, Timestamp: now},
		{Model: "gpt-4o-mini", Cost: 0.001, ResponseTimeMs: 900, Confidence: 0.3, Timestamp: now},
		{Model: "gpt-4o-mini", Cost: 0.001, ResponseTimeMs: 0, Confidence: 0.9, Timestamp: now},
	}

	perf := AggregateByModel(records)
	assert.InDelta(t, 1.0/3.0, perf["gpt-4o-mini"].SuccessRate, 1e-9)
}

func TestAggregateByModelEmpty(t *testing.T) {
	perf := AggregateByModel(nil)
	assert.Empty(t, perf)
}

func TestQueryHistory(t *testing.T) {
	store, mock, _ := newTestUsageStore(t)

	since := time.Now().Add(-30 * 24 * time.Hour)
	created := time.Now().Add(-time.Hour)

	rows := sqlmock.NewRows([]string{"model", "cost", "response_time_ms", "confidence", "created_at"}).
		AddRow("gpt-4o-mini", 0.0002, 850, 0.9, created).
		AddRow("gpt-4o", 0.004, 2400, 0.95, created.Add(-time.Hour))

	mock.ExpectQuery(`SELECT model, cost, response_time_ms, confidence, created_at`).
		WithArgs("salon-1", since).
		WillReturnRows(rows)

	records, err := store.QueryHistory(context.Background(), "salon-1", since)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "gpt-4o-mini", records[0].Model)
	assert.Equal(t, "salon-1", records[0].SalonID)
	assert.InDelta(t, 0.0002, records[0].Cost, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUsageEvent(t *testing.T) {
	store, mock, _ := newTestUsageStore(t)

	rec := models.UsageRecord{
		SalonID:        "salon-1",
		ConversationID: "conv-1",
		Model:          "gpt-4o-mini",
		Cost:           0.0003,
		ResponseTimeMs: 900,
		Confidence:     0.85,
		Reasoning:      "direct mapping for general_inquiry",
		Timestamp:      time.Now(),
	}

	mock.ExpectExec(`INSERT INTO model_usage`).
		WithArgs(rec.SalonID, rec.ConversationID, rec.Model, rec.Cost,
			rec.ResponseTimeMs, rec.Confidence, rec.Reasoning, rec.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertUsageEvent(context.Background(), rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastInboundMessageAt(t *testing.T) {
	store, mock, _ := newTestUsageStore(t)

	ts := time.Now().Add(-2 * time.Hour).UTC().Truncate(time.Millisecond)
	mock.ExpectQuery(`SELECT MAX\(created_at\)`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(ts))

	got, err := store.LastInboundMessageAt(context.Background(), "conv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(ts))
	assert.NoError(t, mock.ExpectationsWereMet())

	// second call served from cache, no further DB expectation
	got2, err := store.LastInboundMessageAt(context.Background(), "conv-1")
	require.NoError(t, err)
	require.NotNil(t, got2)
	assert.True(t, got2.Equal(ts))
}

func TestLastInboundMessageAtNoMessages(t *testing.T) {
	store, mock, _ := newTestUsageStore(t)

	mock.ExpectQuery(`SELECT MAX\(created_at\)`).
		WithArgs("conv-empty").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	got, err := store.LastInboundMessageAt(context.Background(), "conv-empty")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCustomerMessageTimestamps(t *testing.T) {
	store, mock, _ := newTestUsageStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"created_at"}).
		AddRow(now.Add(-time.Hour)).
		AddRow(now.Add(-5 * time.Hour)).
		AddRow(now.Add(-9 * time.Hour))

	mock.ExpectQuery(`SELECT created_at`).
		WithArgs("cust-1", 10).
		WillReturnRows(rows)

	timestamps, err := store.CustomerMessageTimestamps(context.Background(), "cust-1", 10)
	require.NoError(t, err)
	require.Len(t, timestamps, 3)
	assert.True(t, timestamps[0].After(timestamps[1]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetSpend(t *testing.T) {
	store, mock, _ := newTestUsageStore(t)

	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"daily_spent", "daily_requests", "monthly_spent", "monthly_requests"}).
		AddRow(1.25, 40, 18.50, 620)

	mock.ExpectQuery(`FROM model_usage`).
		WithArgs("salon-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	state, err := store.BudgetSpend(context.Background(), "salon-1", now)
	require.NoError(t, err)
	assert.True(t, state.Known)
	assert.InDelta(t, 1.25, state.DailySpent, 1e-9)
	assert.Equal(t, 40, state.DailyRequests)
	assert.InDelta(t, 18.50, state.MonthlySpent, 1e-9)
	assert.Equal(t, 620, state.MonthlyRequests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetSpendQueryError(t *testing.T) {
	store, mock, _ := newTestUsageStore(t)

	mock.ExpectQuery(`FROM model_usage`).
		WillReturnError(assert.AnError)

	state, err := store.BudgetSpend(context.Background(), "salon-1", time.Now())
	assert.Error(t, err)
	assert.False(t, state.Known)
}

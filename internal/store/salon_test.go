package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"salon-workers/internal/common/logger"
	"salon-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSalonStore(t *testing.T) (*SalonStore, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := NewSalonStore(db, rdb, time.Minute, logger.NewTestLogger(t))
	return store, mock, mr
}

func salonRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"enabled_models", "max_cost", "enforce_limit", "daily_budget", "monthly_budget",
		"optimization_enabled", "free_window_hours", "template_cost",
		"cost_threshold", "max_optimization_percent",
	}).AddRow(
		[]byte(`{"gpt-4o-mini": true, "gpt-4o": true, "elevenlabs-tts": false}`),
		0.01, true, 5.0, 100.0,
		true, 24, 0.05, 0.01, 60.0,
	)
}

func TestSalonStoreGet(t *testing.T) {
	store, mock, _ := newTestSalonStore(t)

	mock.ExpectQuery(`FROM salon_settings`).
		WithArgs("salon-1").
		WillReturnRows(salonRows())

	settings, err := store.Get(context.Background(), "salon-1")
	require.NoError(t, err)
	require.NotNil(t, settings)

	assert.Equal(t, "salon-1", settings.SalonID)
	assert.True(t, settings.ModelEnabled("gpt-4o-mini"))
	assert.False(t, settings.ModelEnabled("elevenlabs-tts"))
	assert.InDelta(t, 0.01, settings.Budget.MaxCost, 1e-9)
	assert.True(t, settings.Budget.EnforceLimit)
	assert.True(t, settings.ServiceWindow.OptimizationEnabled)
	assert.InDelta(t, 24, settings.ServiceWindow.FreeWindowHours, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalonStoreGetCachesResult(t *testing.T) {
	store, mock, mr := newTestSalonStore(t)

	mock.ExpectQuery(`FROM salon_settings`).
		WithArgs("salon-1").
		WillReturnRows(salonRows())

	_, err := store.Get(context.Background(), "salon-1")
	require.NoError(t, err)
	require.True(t, mr.Exists("salon:settings:salon-1"))

	// second read is served from the cache; sqlmock would fail on an
	// unexpected query
	settings, err := store.Get(context.Background(), "salon-1")
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.True(t, settings.ModelEnabled("gpt-4o"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalonStoreGetFromCache(t *testing.T) {
	store, _, mr := newTestSalonStore(t)

	cached := models.SalonSettings{
		SalonID:       "salon-2",
		EnabledModels: map[string]bool{"gpt-4o-mini": true},
		ServiceWindow: models.DefaultServiceWindowSettings(),
	}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	mr.Set("salon:settings:salon-2", string(data))

	settings, err := store.Get(context.Background(), "salon-2")
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "salon-2", settings.SalonID)
}

func TestSalonStoreGetCacheErrorFallsThrough(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rdb, rmock := redismock.NewClientMock()
	rmock.ExpectGet("salon:settings:salon-1").SetErr(assert.AnError)

	store := NewSalonStore(db, rdb, time.Minute, logger.NewTestLogger(t))

	mock.ExpectQuery(`FROM salon_settings`).
		WithArgs("salon-1").
		WillReturnRows(salonRows())

	settings, err := store.Get(context.Background(), "salon-1")
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.True(t, settings.ModelEnabled("gpt-4o-mini"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalonStoreGetUnknownSalon(t *testing.T) {
	store, mock, _ := newTestSalonStore(t)

	mock.ExpectQuery(`FROM salon_settings`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"enabled_models"}))

	settings, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, settings)
}

func TestSalonStoreGetMalformedEnabledModels(t *testing.T) {
	store, mock, _ := newTestSalonStore(t)

	rows := sqlmock.NewRows([]string{
		"enabled_models", "max_cost", "enforce_limit", "daily_budget", "monthly_budget",
		"optimization_enabled", "free_window_hours", "template_cost",
		"cost_threshold", "max_optimization_percent",
	}).AddRow([]byte(`not json`), 0.01, false, 0.0, 0.0, true, 24, 0.05, 0.01, 60.0)

	mock.ExpectQuery(`FROM salon_settings`).
		WithArgs("salon-3").
		WillReturnRows(rows)

	settings, err := store.Get(context.Background(), "salon-3")
	require.NoError(t, err)
	require.NotNil(t, settings)
	// unknown model map means every model reads as disabled
	assert.False(t, settings.ModelEnabled("gpt-4o-mini"))
}

func TestUpdateServiceWindow(t *testing.T) {
	store, mock, mr := newTestSalonStore(t)

	mr.Set("salon:settings:salon-1", "stale")

	sw := models.ServiceWindowSettings{
		OptimizationEnabled:    true,
		FreeWindowHours:        24,
		TemplateCost:           0.05,
		CostThreshold:          0.02,
		MaxOptimizationPercent: 40,
	}

	mock.ExpectExec(`UPDATE salon_settings`).
		WithArgs("salon-1", sw.OptimizationEnabled, sw.FreeWindowHours,
			sw.TemplateCost, sw.CostThreshold, sw.MaxOptimizationPercent).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateServiceWindow(context.Background(), "salon-1", sw)
	require.NoError(t, err)
	assert.False(t, mr.Exists("salon:settings:salon-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactInfo(t *testing.T) {
	store, mock, _ := newTestSalonStore(t)

	mock.ExpectQuery(`SELECT contact_email, contact_phone`).
		WithArgs("salon-1").
		WillReturnRows(sqlmock.NewRows([]string{"contact_email", "contact_phone"}).
			AddRow("owner@salon.example", "+4915112345678"))

	contact, err := store.ContactInfo(context.Background(), "salon-1")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "owner@salon.example", contact.Email)
	assert.Equal(t, "+4915112345678", contact.Phone)
}

func TestContactInfoNullColumns(t *testing.T) {
	store, mock, _ := newTestSalonStore(t)

	mock.ExpectQuery(`SELECT contact_email, contact_phone`).
		WithArgs("salon-1").
		WillReturnRows(sqlmock.NewRows([]string{"contact_email", "contact_phone"}).
			AddRow(nil, nil))

	contact, err := store.ContactInfo(context.Background(), "salon-1")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Empty(t, contact.Email)
	assert.Empty(t, contact.Phone)
}

func TestContactInfoUnknownSalon(t *testing.T) {
	store, mock, _ := newTestSalonStore(t)

	mock.ExpectQuery(`SELECT contact_email, contact_phone`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"contact_email", "contact_phone"}))

	contact, err := store.ContactInfo(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestUpdateServiceWindowUnknownSalon(t *testing.T) {
	store, mock, _ := newTestSalonStore(t)

	mock.ExpectExec(`UPDATE salon_settings`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateServiceWindow(context.Background(), "missing", models.DefaultServiceWindowSettings())
	assert.Error(t, err)
}

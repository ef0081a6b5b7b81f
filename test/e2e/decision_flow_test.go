// test/e2e/decision_flow_test.go
//
// In-process flow tests: the real worker handlers wired to mocked
// PostgreSQL and an embedded Redis, exercising the decision pipeline the
// way the workflow engine runs it — router output fed to the routing
// gateway as a variable envelope.
package e2e

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-workers/internal/budget"
	"salon-workers/internal/common/errors"
	"salon-workers/internal/common/logger"
	"salon-workers/internal/models"
	"salon-workers/internal/store"
	"salon-workers/pkg/catalog"

	routedecision "salon-workers/internal/workers/infrastructure/route-decision"
	selectmodel "salon-workers/internal/workers/routing/select-model"
	optimizetiming "salon-workers/internal/workers/timing/optimize-response-timing"
)

type env struct {
	salons *store.SalonStore
	usage  *store.UsageStore
	mock   sqlmock.Sqlmock
}

// newEnv wires real stores to sqlmock and miniredis. Expectations are
// unordered because decision recording runs on its own goroutine.
func newEnv(t *testing.T) *env {
	t.Helper()

	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(false),
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	// No-op logger: the async usage event write may outlive the test.
	log := logger.NewNoOpLogger()

	return &env{
		salons: store.NewSalonStore(db, rdb, time.Minute, log),
		usage:  store.NewUsageStore(db, rdb, time.Minute, log),
		mock:   mock,
	}
}

func (e *env) expectSettings(salonID string, maxCost float64, enforce bool) {
	rows := sqlmock.NewRows([]string{
		"enabled_models", "max_cost", "enforce_limit", "daily_budget", "monthly_budget",
		"optimization_enabled", "free_window_hours", "template_cost",
		"cost_threshold", "max_optimization_percent",
	}).AddRow(
		[]byte(`{"gpt-4o-mini": true, "gpt-4o": true, "elevenlabs-tts": true}`),
		maxCost, enforce, 50.0, 500.0,
		true, 24.0, 0.05, 0.01, 60.0,
	)
	e.mock.ExpectQuery(`FROM salon_settings`).WithArgs(salonID).WillReturnRows(rows)
}

func (e *env) expectBudgetSpend(daily, monthly float64) {
	rows := sqlmock.NewRows([]string{"daily_spent", "daily_requests", "monthly_spent", "monthly_requests"}).
		AddRow(daily, 3, monthly, 40)
	e.mock.ExpectQuery(`FROM model_usage`).WillReturnRows(rows)
}

func (e *env) expectUsageEventInsert() {
	e.mock.ExpectExec(`INSERT INTO model_usage`).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func newRouterHandler(e *env) *selectmodel.Handler {
	return selectmodel.NewHandler(
		selectmodel.LoadConfig(),
		e.salons,
		e.usage,
		budget.NewTracker(e.usage, logger.NewNoOpLogger()),
		nil,
		nil,
		nil,
		catalog.Default(),
		logger.NewNoOpLogger(),
	)
}

func toEnvelope(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &envelope))
	return envelope
}

func TestModelSelectionRoutesToModelChannel(t *testing.T) {
	e := newEnv(t)
	e.expectSettings("salon-e2e-1", 0.05, true)
	e.expectBudgetSpend(0.5, 12.0)
	e.expectUsageEventInsert()

	router := newRouterHandler(e)
	out, stdErr := router.Execute(context.Background(), &selectmodel.Input{
		MessageContent: "what time do you open on saturdays?",
		RequestType:    "general_inquiry",
		Context: models.ConversationContext{
			SalonID:        "salon-e2e-1",
			ConversationID: "conv-e2e-1",
			CustomerID:     "cust-e2e-1",
			Sentiment:      models.SentimentNeutral,
		},
	})
	require.Nil(t, stdErr)
	require.Equal(t, selectmodel.DecisionModelSelected, out.RoutingDecision)
	require.Equal(t, catalog.ModelFastChat, out.SelectedModel)

	gateway := routedecision.NewHandler(routedecision.LoadConfig(), catalog.Default(), logger.NewNoOpLogger())
	routed := gateway.Execute(context.Background(), toEnvelope(t, out))

	assert.Equal(t, catalog.ChannelFastModel, routed.OutputChannel)
	assert.Equal(t, routedecision.RouteSelectedModel, routed.Route)
	assert.Equal(t, catalog.ModelFastChat, routed.Model)
}

func TestBudgetRejectionRoutesToDefaultChannel(t *testing.T) {
	e := newEnv(t)
	e.expectSettings("salon-e2e-2", 0.0001, true)
	e.expectBudgetSpend(0, 0)

	router := newRouterHandler(e)
	out, stdErr := router.Execute(context.Background(), &selectmodel.Input{
		MessageContent: strings.Repeat("please walk me through every treatment option in detail ", 50),
		RequestType:    "general_inquiry",
		Context: models.ConversationContext{
			SalonID:        "salon-e2e-2",
			ConversationID: "conv-e2e-2",
			Sentiment:      models.SentimentNeutral,
		},
	})
	require.Nil(t, stdErr)
	require.Equal(t, selectmodel.DecisionBudgetExceeded, out.RoutingDecision)
	require.Equal(t, selectmodel.ModelNone, out.SelectedModel)

	gateway := routedecision.NewHandler(routedecision.LoadConfig(), catalog.Default(), logger.NewNoOpLogger())
	routed := gateway.Execute(context.Background(), toEnvelope(t, out))

	assert.Equal(t, catalog.ChannelDefault, routed.OutputChannel)
	assert.Equal(t, routedecision.RouteBudgetExceeded, routed.Route)
}

func TestValidationErrorPayloadRoutesToDefaultChannel(t *testing.T) {
	e := newEnv(t)

	router := newRouterHandler(e)
	_, stdErr := router.Execute(context.Background(), &selectmodel.Input{
		RequestType: "general_inquiry",
		Context:     models.ConversationContext{SalonID: "salon-e2e-3"},
	})
	require.NotNil(t, stdErr)
	require.False(t, stdErr.Retryable)

	payload := errors.NewErrorPayload(stdErr)
	gateway := routedecision.NewHandler(routedecision.LoadConfig(), catalog.Default(), logger.NewNoOpLogger())
	routed := gateway.Execute(context.Background(), toEnvelope(t, payload))

	assert.Equal(t, catalog.ChannelDefault, routed.OutputChannel)
	assert.Equal(t, routedecision.RouteError, routed.Route)
}

func TestTimingOptimizerReadsWindowFromStore(t *testing.T) {
	e := newEnv(t)
	e.expectSettings("salon-e2e-4", 0.05, true)

	lastInbound := time.Now().UTC().Add(-2 * time.Hour)
	e.mock.ExpectQuery(`FROM conversation_messages`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(lastInbound))

	optimizer := optimizetiming.NewHandler(
		optimizetiming.LoadConfig(),
		e.salons,
		e.usage,
		nil,
		nil,
		logger.NewNoOpLogger(),
	)

	out, stdErr := optimizer.Execute(context.Background(), &optimizetiming.Input{
		MessageContent: "thanks, see you then!",
		Context: models.ConversationContext{
			SalonID:        "salon-e2e-4",
			ConversationID: "conv-e2e-4",
			CustomerID:     "cust-e2e-4",
			Sentiment:      models.SentimentPositive,
		},
	})
	require.Nil(t, stdErr)

	assert.False(t, out.ShouldOptimize, "inside the free window there is nothing to defer")
	assert.False(t, out.MessageWillIncurCost)
	require.NotNil(t, out.WindowStatus)
	assert.True(t, out.WindowStatus.IsActive)
	assert.InDelta(t, 22, out.WindowStatus.HoursRemaining, 0.2)
}

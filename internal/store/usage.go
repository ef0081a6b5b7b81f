// internal/store/usage.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salon-workers/internal/common/logger"
	"salon-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const lastInboundCachePrefix = "conv:lastinbound:"

// UsageStore reads historical model usage and conversation message timing,
// and records new usage events.
type UsageStore struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewUsageStore(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *UsageStore {
	return &UsageStore{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "usage-store"}),
	}
}

// QueryHistory returns usage records for the salon since the given time,
// newest first.
func (s *UsageStore) QueryHistory(ctx context.Context, salonID string, since time.Time) ([]models.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, cost, response_time_ms, confidence, created_at
		FROM model_usage
		WHERE salon_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`, salonID, since)
	if err != nil {
		return nil, fmt.Errorf("query usage history: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		rec := models.UsageRecord{SalonID: salonID}
		if err := rows.Scan(&rec.Model, &rec.Cost, &rec.ResponseTimeMs, &rec.Confidence, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AggregateByModel folds usage records into per-model performance stats.
// Pure arithmetic: totals are sums, averages are means over the records.
func AggregateByModel(records []models.UsageRecord) map[string]models.ModelPerformance {
	perf := make(map[string]models.ModelPerformance)
	successes := make(map[string]int)
	responseSums := make(map[string]float64)

	for _, rec := range records {
		p := perf[rec.Model]
		p.Model = rec.Model
		p.Requests++
		p.TotalCost += rec.Cost
		responseSums[rec.Model] += float64(rec.ResponseTimeMs)
		if rec.Success() {
			successes[rec.Model]++
		}
		perf[rec.Model] = p
	}

	for model, p := range perf {
		p.AvgCost = p.TotalCost / float64(p.Requests)
		p.AvgResponseMs = responseSums[model] / float64(p.Requests)
		p.SuccessRate = float64(successes[model]) / float64(p.Requests)
		perf[model] = p
	}

	return perf
}

// InsertUsageEvent records one provider invocation decision.
func (s *UsageStore) InsertUsageEvent(ctx context.Context, rec models.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_usage
			(salon_id, conversation_id, model, cost, response_time_ms, confidence, reasoning, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.SalonID, rec.ConversationID, rec.Model, rec.Cost,
		rec.ResponseTimeMs, rec.Confidence, rec.Reasoning, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// LastInboundMessageAt returns the timestamp of the most recent inbound
// message in the conversation, or nil when none exists.
func (s *UsageStore) LastInboundMessageAt(ctx context.Context, conversationID string) (*time.Time, error) {
	cacheKey := lastInboundCachePrefix + conversationID
	if val, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return &ts, nil
		}
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT MAX(created_at)
		FROM conversation_messages
		WHERE conversation_id = $1 AND direction = 'inbound'`, conversationID)

	var ts sql.NullTime
	if err := row.Scan(&ts); err != nil {
		return nil, fmt.Errorf("query last inbound message: %w", err)
	}
	if !ts.Valid {
		return nil, nil
	}

	s.redis.Set(ctx, cacheKey, ts.Time.Format(time.RFC3339Nano), s.cacheTTL)
	return &ts.Time, nil
}

// CustomerMessageTimestamps returns the customer's most recent inbound
// message timestamps, newest first, up to limit.
func (s *UsageStore) CustomerMessageTimestamps(ctx context.Context, customerID string, limit int) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at
		FROM conversation_messages
		WHERE customer_id = $1 AND direction = 'inbound'
		ORDER BY created_at DESC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query customer message history: %w", err)
	}
	defer rows.Close()

	var timestamps []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan message timestamp: %w", err)
		}
		timestamps = append(timestamps, ts)
	}
	return timestamps, rows.Err()
}

// BudgetSpend returns the salon's spend and request counts for the current
// day and month.
func (s *UsageStore) BudgetSpend(ctx context.Context, salonID string, now time.Time) (models.BudgetState, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(cost) FILTER (WHERE created_at >= $2), 0),
			COUNT(*) FILTER (WHERE created_at >= $2),
			COALESCE(SUM(cost), 0),
			COUNT(*)
		FROM model_usage
		WHERE salon_id = $1 AND created_at >= $3`, salonID, dayStart, monthStart)

	var state models.BudgetState
	err := row.Scan(&state.DailySpent, &state.DailyRequests, &state.MonthlySpent, &state.MonthlyRequests)
	if err != nil {
		return models.BudgetState{}, fmt.Errorf("query budget spend: %w", err)
	}

	state.Known = true
	return state, nil
}

// internal/store/salon.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"salon-workers/internal/common/logger"
	"salon-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const salonCachePrefix = "salon:settings:"

// SalonStore reads and writes per-salon settings, with a Redis read-through
// cache in front of PostgreSQL.
type SalonStore struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewSalonStore(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *SalonStore {
	return &SalonStore{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "salon-store"}),
	}
}

// Get returns the salon's settings, or (nil, nil) when the salon is unknown.
// Cache failures fall through to the database.
func (s *SalonStore) Get(ctx context.Context, salonID string) (*models.SalonSettings, error) {
	cacheKey := salonCachePrefix + salonID
	if val, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var settings models.SalonSettings
		if err := json.Unmarshal([]byte(val), &settings); err == nil {
			return &settings, nil
		}
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT enabled_models, max_cost, enforce_limit, daily_budget, monthly_budget,
		       optimization_enabled, free_window_hours, template_cost,
		       cost_threshold, max_optimization_percent
		FROM salon_settings
		WHERE salon_id = $1`, salonID)

	settings := models.SalonSettings{SalonID: salonID}
	var enabledModels []byte
	err := row.Scan(
		&enabledModels,
		&settings.Budget.MaxCost,
		&settings.Budget.EnforceLimit,
		&settings.Budget.DailyBudget,
		&settings.Budget.MonthlyBudget,
		&settings.ServiceWindow.OptimizationEnabled,
		&settings.ServiceWindow.FreeWindowHours,
		&settings.ServiceWindow.TemplateCost,
		&settings.ServiceWindow.CostThreshold,
		&settings.ServiceWindow.MaxOptimizationPercent,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query salon settings: %w", err)
	}

	if err := json.Unmarshal(enabledModels, &settings.EnabledModels); err != nil {
		settings.EnabledModels = map[string]bool{}
	}

	if data, err := json.Marshal(settings); err == nil {
		s.redis.Set(ctx, cacheKey, data, s.cacheTTL)
	}

	return &settings, nil
}

// ContactInfo returns the salon's alert contacts, or (nil, nil) when the
// salon is unknown. Contacts are read straight from the database: alerts
// are rare enough that caching them is not worth a stale phone number.
func (s *SalonStore) ContactInfo(ctx context.Context, salonID string) (*models.SalonContact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT contact_email, contact_phone
		FROM salon_settings
		WHERE salon_id = $1`, salonID)

	var email, phone sql.NullString
	if err := row.Scan(&email, &phone); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query salon contacts: %w", err)
	}

	return &models.SalonContact{
		Email: email.String,
		Phone: phone.String,
	}, nil
}

// UpdateServiceWindow persists new service-window settings and invalidates
// the cache entry so the next decision sees them.
func (s *SalonStore) UpdateServiceWindow(ctx context.Context, salonID string, sw models.ServiceWindowSettings) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE salon_settings
		SET optimization_enabled = $2, free_window_hours = $3, template_cost = $4,
		    cost_threshold = $5, max_optimization_percent = $6, updated_at = NOW()
		WHERE salon_id = $1`,
		salonID,
		sw.OptimizationEnabled,
		sw.FreeWindowHours,
		sw.TemplateCost,
		sw.CostThreshold,
		sw.MaxOptimizationPercent,
	)
	if err != nil {
		return fmt.Errorf("update service window settings: %w", err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return sql.ErrNoRows
	}

	if err := s.redis.Del(ctx, salonCachePrefix+salonID).Err(); err != nil {
		s.logger.Warn("failed to invalidate settings cache", map[string]interface{}{
			"salonId": salonID,
			"error":   err,
		})
	}

	return nil
}

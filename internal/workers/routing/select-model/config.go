// internal/workers/routing/select-model/config.go
package selectmodel

import "time"

type Config struct {
	Timeout           time.Duration
	HistoryWindowDays int
	DefaultMode       string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           10 * time.Second,
		HistoryWindowDays: 30,
		DefaultMode:       "balanced",
	}
}

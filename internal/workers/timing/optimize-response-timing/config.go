// internal/workers/timing/optimize-response-timing/config.go
package optimizeresponsetiming

import "time"

type Config struct {
	Timeout time.Duration

	// Number of historical inbound messages consulted when predicting the
	// customer's next-message gap.
	GapHistoryLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         10 * time.Second,
		GapHistoryLimit: 10,
	}
}

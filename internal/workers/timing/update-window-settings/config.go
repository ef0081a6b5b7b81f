// internal/workers/timing/update-window-settings/config.go
package updatewindowsettings

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}

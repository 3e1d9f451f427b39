// internal/workers/conversation/get-conversion-metrics/config.go
package getconversionmetrics

import (
	"time"

	"conversation-workers/internal/common/config"
)

type Config struct {
	Timeout           time.Duration
	DefaultPeriodDays int
}

func LoadConfig(wc config.WorkerConfig) *Config {
	cfg := &Config{
		Timeout:           30 * time.Second,
		DefaultPeriodDays: 30,
	}
	if wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	return cfg
}

// internal/workers/conversation/mark-abandoned-sessions/config.go
package markabandonedsessions

import (
	"time"

	"conversation-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig defaults to the two minutes a full sweep may take.
func LoadConfig(wc config.WorkerConfig) *Config {
	cfg := &Config{Timeout: 2 * time.Minute}
	if wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	return cfg
}

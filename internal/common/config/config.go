// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	Logging    LoggingConfig           `mapstructure:"logging"`
	Reconciler ReconcilerConfig        `mapstructure:"reconciler"`
	Telemetry  TelemetryConfig         `mapstructure:"telemetry"`
	Scheduler  SchedulerConfig         `mapstructure:"scheduler"`
	Server     ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the lib/pq keyword/value connection string. Sessions are
// tagged with application_name so they show up in pg_stat_activity.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=conversation-workers connect_timeout=5",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// ReconcilerConfig holds the outcome reconciler thresholds.
type ReconcilerConfig struct {
	TimeoutAfter        int     `mapstructure:"timeout_after"`         // milliseconds
	BookingAbandonAfter int     `mapstructure:"booking_abandon_after"` // milliseconds
	FinishedAfter       int     `mapstructure:"finished_after"`        // milliseconds
	ScanLimit           int     `mapstructure:"scan_limit"`
	SweepConcurrency    int     `mapstructure:"sweep_concurrency"`
	SpamConfidence      float64 `mapstructure:"spam_confidence"`
}

// TelemetryConfig holds intent-to-outcome telemetry settings.
type TelemetryConfig struct {
	IntentTTL int `mapstructure:"intent_ttl"` // milliseconds
}

// SchedulerConfig holds cron specs for the periodic sweeps.
type SchedulerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	TimeoutSweep  string `mapstructure:"timeout_sweep"`
	BookingSweep  string `mapstructure:"booking_sweep"`
	FinishedSweep string `mapstructure:"finished_sweep"`
	JobTimeout    int    `mapstructure:"job_timeout"` // milliseconds
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Package container provides dependency injection and lifecycle management
// for the caseflow service.
package container

import (
	"fmt"
	"time"
)

// Storage drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Workflow WorkflowConfig
	Outbox   OutboxConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is "sqlite" or "memory"
	Driver string

	// Path to SQLite database file, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// AutoMigrate applies embedded migrations on start
	AutoMigrate bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WorkflowConfig holds engine settings.
type WorkflowConfig struct {
	// MaxActiveCases caps PENDING plus IN_PROGRESS cases per caseworker
	MaxActiveCases int
}

// OutboxConfig holds event outbox settings.
type OutboxConfig struct {
	// Enabled writes events to the outbox inside the transition transaction.
	// When false, events go straight to the dispatcher after commit.
	Enabled bool

	// RunRelay starts the background relay; one-shot callers flush instead
	RunRelay bool

	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "data/caseflow.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Workflow: WorkflowConfig{
			MaxActiveCases: 5,
		},
		Outbox: OutboxConfig{
			Enabled:      true,
			RunRelay:     true,
			PollInterval: 2 * time.Second,
			BatchSize:    50,
			MaxAttempts:  5,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverMemory, c.Database.Driver)
	}

	if c.Workflow.MaxActiveCases <= 0 {
		return fmt.Errorf("workflow.max_active_cases must be positive")
	}

	if c.Outbox.Enabled && c.Outbox.RunRelay {
		if c.Outbox.PollInterval <= 0 {
			return fmt.Errorf("outbox.poll_interval must be positive")
		}
		if c.Outbox.BatchSize <= 0 {
			return fmt.Errorf("outbox.batch_size must be positive")
		}
	}

	return nil
}

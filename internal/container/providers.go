package container

import (
	"database/sql"
	"fmt"

	"github.com/garyjia/caseflow/internal/application/dispatcher"
	"github.com/garyjia/caseflow/internal/application/notification"
	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/application/service"
	"github.com/garyjia/caseflow/internal/application/workflow"
	"github.com/garyjia/caseflow/internal/infrastructure/persistence/memory"
	"github.com/garyjia/caseflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/caseflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/caseflow/internal/infrastructure/worker"
	"github.com/garyjia/caseflow/pkg/database"
	"github.com/garyjia/caseflow/pkg/utils"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
// SqlDB is nil for the memory driver.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr port.TransactionManager
	Repositories   *RepositoryBundle
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Cases    port.CaseRepository
	AuditLog port.AuditLogRepository
	Users    port.UserDirectory
	Outbox   port.OutboxRepository
}

// ServiceBundle groups the application services.
type ServiceBundle struct {
	Cases service.CaseService
}

// ProvideDatabase opens the configured store and builds its repositories.
// The SQLite driver runs embedded migrations when AutoMigrate is set.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == DriverMemory {
		store := memory.NewStore()
		return &DatabaseBundle{
			TransactionMgr: store,
			Repositories: &RepositoryBundle{
				Cases:    store.Cases(),
				AuditLog: store.AuditLog(),
				Users:    store.Users(),
				Outbox:   store.Outbox(),
			},
		}, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if _, err := database.NewMigrator(db, logger).RunMigrations(database.Migrations()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	repos, err := ProvideRepositories(db.DB, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
		Repositories:   repos,
	}, nil
}

// ProvideRepositories creates the SQLite repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Cases:    repository.NewCaseRepository(sqlDB, logger),
		AuditLog: repository.NewCaseLogRepository(sqlDB, logger),
		Users:    repository.NewUserRepository(sqlDB, logger),
		Outbox:   repository.NewOutboxRepository(sqlDB, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher and subscribes the
// notification and audit handlers.
func ProvideDispatcher(users port.IdentityProvider, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if users == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	kv := utils.NewKeyValueLogger(logger.Named("events"))
	disp := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))

	handler := notification.NewHandler(users, notification.LogDeliverer{Logger: kv}, kv)
	handler.Register(disp)

	return disp, nil
}

// WorkflowDeps holds dependencies for the workflow engine and services.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Config     *Config
	Logger     *zap.Logger
}

func (d *WorkflowDeps) validate() error {
	if d == nil {
		return fmt.Errorf("workflow dependencies are required")
	}
	if d.Repos == nil {
		return fmt.Errorf("repositories are required")
	}
	if d.TxManager == nil {
		return fmt.Errorf("transaction manager is required")
	}
	if d.Dispatcher == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if d.Config == nil {
		return fmt.Errorf("config is required")
	}
	if d.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// ProvideWorkflowEngine creates the case workflow engine. With the outbox
// enabled events are written to it; otherwise they go to the dispatcher.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	opts := []workflow.EngineOption{
		workflow.WithMaxActiveCases(deps.Config.Workflow.MaxActiveCases),
		workflow.WithLogger(utils.NewKeyValueLogger(deps.Logger.Named("workflow"))),
	}
	if deps.Config.Outbox.Enabled {
		opts = append(opts, workflow.WithOutbox(deps.Repos.Outbox))
	} else {
		opts = append(opts, workflow.WithEventSink(dispatcher.AsSink(deps.Dispatcher, false)))
	}

	return workflow.NewEngine(
		deps.Repos.Cases,
		deps.Repos.Users,
		deps.Repos.AuditLog,
		deps.TxManager,
		opts...,
	), nil
}

// ProvideServices creates the application services.
func ProvideServices(deps *WorkflowDeps) (*ServiceBundle, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithMaxActiveCases(deps.Config.Workflow.MaxActiveCases),
	}
	if deps.Config.Outbox.Enabled {
		opts = append(opts, service.WithOutbox(deps.Repos.Outbox))
	} else {
		opts = append(opts, service.WithEventSink(dispatcher.AsSink(deps.Dispatcher, false)))
	}

	return &ServiceBundle{
		Cases: service.NewCaseService(
			deps.Repos.Cases,
			deps.Repos.AuditLog,
			deps.Repos.Users,
			deps.TxManager,
			utils.NewKeyValueLogger(deps.Logger.Named("service")),
			opts...,
		),
	}, nil
}

// ProvideOutboxRelay creates the relay that drains the outbox into the dispatcher.
// It returns nil when the outbox is disabled.
func ProvideOutboxRelay(cfg *OutboxConfig, outbox port.OutboxRepository, disp dispatcher.Dispatcher, logger *zap.Logger) *worker.OutboxRelay {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return worker.NewOutboxRelay(worker.OutboxRelayConfig{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		MaxAttempts:  cfg.MaxAttempts,
	}, outbox, dispatcher.AsSink(disp, false), logger.Named("relay"))
}

// ProvideWorkers creates the worker manager with all workers registered but not started.
func ProvideWorkers(relay *worker.OutboxRelay, cfg *OutboxConfig, logger *zap.Logger) (*worker.Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(logger)
	if relay != nil && cfg != nil && cfg.RunRelay {
		manager.Register(relay)
	}
	return manager, nil
}

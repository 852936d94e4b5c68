package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/internflow/internal/application/dispatcher"
	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/application/service"
	"github.com/garyjia/internflow/internal/domain/entity"
	"github.com/garyjia/internflow/internal/infrastructure/export"
	infraLark "github.com/garyjia/internflow/internal/infrastructure/external/lark"
	"github.com/garyjia/internflow/internal/infrastructure/notify"
	"github.com/garyjia/internflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/internflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/internflow/internal/infrastructure/worker"
	httpapi "github.com/garyjia/internflow/internal/interfaces/http"
	"github.com/garyjia/internflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database and applies the embedded migrations
// unless cfg.SkipMigrations is set.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
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

	if !cfg.SkipMigrations {
		if err := database.NewMigrator(db, logger).Migrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Definition: repository.NewDefinitionRepository(db.DB, logger),
		Instance:   repository.NewInstanceRepository(db.DB, logger),
		Approval:   repository.NewApprovalRepository(db.DB, logger),
		History:    repository.NewHistoryRepository(db.DB, logger),
		Resolver:   repository.NewResourceResolver(db.DB, logger),
	}, nil
}

// ProvideNotifier creates the notifier selected by cfg.Driver.
func ProvideNotifier(cfg *NotifyConfig, logger *zap.Logger) (port.Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("notify config is required")
	}

	switch cfg.Driver {
	case "", "log":
		return notify.NewLogNotifier(logger), nil
	case "lark":
		larkCfg := infraLark.Config{
			AppID:         cfg.Lark.AppID,
			AppSecret:     cfg.Lark.AppSecret,
			ReceiveIDType: cfg.Lark.ReceiveIDType,
			ReceiveID:     cfg.Lark.ReceiveID,
			RoleReceivers: cfg.Lark.RoleReceivers,
		}
		client := infraLark.NewSDKClient(larkCfg, logger)
		notifier, err := infraLark.NewNotifier(client.Messages(), larkCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create lark notifier: %w", err)
		}
		return notifier, nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger})), nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Notifier   port.Notifier
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the
// notification service to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	bundle := &ServiceBundle{
		Definition: service.NewDefinitionService(repos.Definition, deps.TxManager, logger),
		Instance: service.NewInstanceService(
			repos.Definition, repos.Instance, repos.Approval, repos.History,
			repos.Resolver, deps.TxManager, deps.Dispatcher, logger,
		),
		Approval: service.NewApprovalService(
			repos.Definition, repos.Instance, repos.Approval, repos.History,
			deps.TxManager, nil, deps.Dispatcher, logger,
		),
		History: service.NewHistoryService(repos.Instance, repos.History, export.NewXLSXExporter(deps.Logger), logger),
	}

	if deps.Notifier != nil {
		bundle.Notification = service.NewNotificationService(deps.Notifier, logger)
		bundle.Notification.Register(deps.Dispatcher)
	}

	return bundle, nil
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Repos     *RepositoryBundle
	Instances service.InstanceService
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates the worker manager and registers the enabled workers.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Repos == nil || deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Instances == nil {
		return nil, fmt.Errorf("instance service is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	if deps.WorkerCfg.SweepEnabled {
		sweeper := worker.NewStaleInstanceSweeper(
			worker.SweeperConfig{
				Interval:  deps.WorkerCfg.SweepInterval,
				BatchSize: deps.WorkerCfg.SweepBatchSize,
			},
			deps.Repos.Instance,
			deps.Repos.Resolver,
			deps.Instances,
			deps.Logger,
		)
		manager.Register(sweeper)
	}

	return manager, nil
}

// ProvideHTTPServer creates the HTTP server over the service bundle.
func ProvideHTTPServer(cfg *Config, services *ServiceBundle, health httpapi.HealthChecker, logger *zap.Logger) *httpapi.Server {
	adapter := &zapLoggerAdapter{logger: logger}
	handlers := httpapi.NewHandlers(
		httpapi.Services{
			Definitions: services.Definition,
			Instances:   services.Instance,
			Approvals:   services.Approval,
			History:     services.History,
		},
		ProvideTokenService(&cfg.Auth),
		health,
		adapter,
	)

	return httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Mode:         cfg.Server.Mode,
	}, handlers, adapter)
}

// ProvideTokenService creates the bearer token service.
func ProvideTokenService(cfg *AuthConfig) *httpapi.TokenService {
	return httpapi.NewTokenService(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTL)
}

// SeedWorkflows creates the default workflows when they are missing.
func SeedWorkflows(ctx context.Context, definitions service.DefinitionService, logger *zap.Logger) error {
	actor := entity.SystemActor("seed")
	for _, input := range defaultWorkflows() {
		def, created, err := definitions.EnsureWorkflow(ctx, actor, input)
		if err != nil {
			return fmt.Errorf("failed to seed workflow %s: %w", input.Name, err)
		}
		logger.Info("Workflow seeded",
			zap.String("name", def.Name),
			zap.Int64("id", def.ID),
			zap.Bool("created", created))
	}
	return nil
}

func defaultWorkflows() []service.CreateWorkflowInput {
	return []service.CreateWorkflowInput{
		{
			ResourceType: string(entity.ResourceTypeInternship),
			Name:         "internship-review",
			Description:  "Director review followed by admin sign-off",
			Status:       entity.DefinitionStatusActive,
			Steps: []service.StepInput{
				{Sequence: 1, RequiredRole: string(entity.RoleDirector), Name: "Director review"},
				{Sequence: 2, RequiredRole: string(entity.RoleAdmin), Name: "Admin approval"},
			},
		},
		{
			ResourceType: string(entity.ResourceTypeResume),
			Name:         "resume-approval",
			Description:  "Director approval of a student resume",
			Status:       entity.DefinitionStatusActive,
			Steps: []service.StepInput{
				{Sequence: 1, RequiredRole: string(entity.RoleDirector), Name: "Director approval"},
			},
		},
	}
}

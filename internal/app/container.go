package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/felixgeelhaar/taskboard/adapter/api"
	"github.com/felixgeelhaar/taskboard/adapter/realtime"
	"github.com/felixgeelhaar/taskboard/internal/board/application/commands"
	"github.com/felixgeelhaar/taskboard/internal/board/application/queries"
	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/activity"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/presence"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/auth"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/persistence"
	presencestore "github.com/felixgeelhaar/taskboard/internal/board/infrastructure/presence"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database/postgres" // Register Postgres driver
	_ "github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskboard/pkg/config"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// devJWTSecret signs tokens when no secret is configured outside production.
const devJWTSecret = "taskboard-development-secret"

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis, nil when presence and broadcasts stay process-local
	RedisClient *redis.Client

	// Observability
	Metrics *observability.PrometheusMetrics
	Health  *observability.HealthRegistry

	// Repositories
	TaskRepo      task.Repository
	UserRepo      user.Repository
	Users         *persistence.CachedUserDirectory
	ActivityRepo  activity.Repository
	OutboxRepo    outbox.Repository
	UnitOfWork    *database.UnitOfWork
	PresenceStore presence.Store

	// Services
	Resolver *services.ConflictResolver
	Balancer *services.AssignmentBalancer
	Tracker  *services.PresenceTracker
	Sweeper  *services.PresenceSweeper

	// Command Handlers
	CreateTaskHandler       *commands.CreateTaskHandler
	UpdateTaskHandler       *commands.UpdateTaskHandler
	ResolveConflictHandler  *commands.ResolveConflictHandler
	UpdateTaskStatusHandler *commands.UpdateTaskStatusHandler
	SmartAssignHandler      *commands.SmartAssignHandler
	DeleteTaskHandler       *commands.DeleteTaskHandler

	// Query Handlers
	GetTaskHandler     *queries.GetTaskHandler
	ListTasksHandler   *queries.ListTasksHandler
	TaskEditorsHandler *queries.TaskEditorsHandler
	ActivityHandler    *queries.ActivityHandler
	ListUsersHandler   *queries.ListUsersHandler

	// Auth
	Verifier auth.Verifier
	Issuer   *auth.Issuer

	// Realtime
	Hub     *realtime.Hub
	Router  *realtime.Router
	Gateway *realtime.Gateway
	Relay   *realtime.RedisRelay

	// Event publishing, set by OpenPublisher. LocalBus is set in local mode.
	EventPublisher  eventbus.Publisher
	LocalBus        *eventbus.InProcessBus
	OutboxProcessor *outbox.Processor
}

// NewContainer wires the board. Redis is optional: without it presence and
// broadcasts stay in this process. In development an unreachable Redis falls
// back the same way; in any other environment it is an error.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewPrometheusMetrics(logger),
		Health:  observability.NewHealthRegistry(),
	}

	if err := c.openDatabase(ctx); err != nil {
		return nil, err
	}
	if err := c.connectRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.wireBoard(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.wireAuth(); err != nil {
		c.Close()
		return nil, err
	}
	c.wireRealtime()
	return c, nil
}

func (c *Container) openDatabase(ctx context.Context) error {
	cfg := c.Config
	driver, err := database.ParseDriver(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	dbCfg := database.Config{Driver: driver, URL: cfg.DatabaseURL, MaxConns: cfg.DatabaseMaxConns}
	if driver == database.DriverSQLite {
		path, err := database.ResolveSQLitePath(cfg.SQLitePath)
		if err != nil {
			return err
		}
		dbCfg.SQLitePath = path
		if err := database.EnsureDirectory(path); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := database.Open(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrations.Run(ctx, conn, c.Logger); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.DBConn = conn
	c.DBDriver = driver
	c.Health.Register("database", observability.PingChecker(conn.Ping, true))
	c.Logger.Info("connected to database", "driver", driver)
	return nil
}

func (c *Container) connectRedis(ctx context.Context) error {
	cfg := c.Config
	if cfg.RedisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, presence will stay in memory", "error", err)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, presence will stay in memory", "error", err)
		return nil
	}

	c.RedisClient = client
	c.Health.Register("redis", observability.PingChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, true))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) wireBoard() error {
	cfg := c.Config
	logger := c.Logger

	breaker := persistence.NewStoreBreaker("record-store", persistence.BreakerConfig{
		FailureThreshold: uint32(min(max(cfg.StoreBreakerFailures, 1), math.MaxUint32)),
		Timeout:          cfg.StoreBreakerTimeout,
	}, logger)
	factory := NewRepositoryFactory(c.DBConn, breaker)

	taskRepo, err := factory.TaskRepository()
	if err != nil {
		return err
	}
	c.TaskRepo = taskRepo
	c.UserRepo = factory.UserRepository()
	c.Users = persistence.NewCachedUserDirectory(c.UserRepo, cfg.UserCacheSize, cfg.UserCacheTTL)
	c.ActivityRepo = factory.ActivityRepository()
	c.OutboxRepo = factory.OutboxRepository()
	c.UnitOfWork = factory.UnitOfWork()

	if c.RedisClient != nil {
		c.PresenceStore = presencestore.NewRedisStore(c.RedisClient)
	} else {
		c.PresenceStore = presencestore.NewMemoryStore()
	}

	c.Resolver = services.NewConflictResolver(
		c.TaskRepo, c.Users, c.ActivityRepo, c.OutboxRepo, c.UnitOfWork,
		services.DefaultResolverConfig(), c.Metrics, logger,
	)
	c.Balancer = services.NewAssignmentBalancer(c.TaskRepo, c.Users, c.Resolver, c.Metrics, logger)
	c.Tracker = services.NewPresenceTracker(c.PresenceStore, logger,
		services.WithStaleAfter(cfg.PresenceStaleAfter),
		services.WithTrackerMetrics(c.Metrics),
	)

	c.CreateTaskHandler = commands.NewCreateTaskHandler(c.TaskRepo, c.ActivityRepo, c.OutboxRepo, c.UnitOfWork, logger)
	c.UpdateTaskHandler = commands.NewUpdateTaskHandler(c.Resolver)
	c.ResolveConflictHandler = commands.NewResolveConflictHandler(c.Resolver)
	c.UpdateTaskStatusHandler = commands.NewUpdateTaskStatusHandler(c.Resolver)
	c.SmartAssignHandler = commands.NewSmartAssignHandler(c.Balancer)
	c.DeleteTaskHandler = commands.NewDeleteTaskHandler(c.TaskRepo, c.ActivityRepo, c.OutboxRepo, c.UnitOfWork, c.Tracker, logger)

	c.GetTaskHandler = queries.NewGetTaskHandler(c.TaskRepo, c.Users, c.Tracker)
	c.ListTasksHandler = queries.NewListTasksHandler(c.TaskRepo, c.Users)
	c.TaskEditorsHandler = queries.NewTaskEditorsHandler(c.TaskRepo, c.Tracker)
	c.ActivityHandler = queries.NewActivityHandler(c.ActivityRepo)
	c.ListUsersHandler = queries.NewListUsersHandler(c.Users, c.TaskRepo)
	return nil
}

func (c *Container) wireAuth() error {
	cfg := c.Config
	secret := cfg.JWTSecret
	if secret == "" {
		if cfg.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production: %w", auth.ErrMissingSecret)
		}
		c.Logger.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}
	jwtCfg := auth.JWTConfig{Secret: secret, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTTL}

	verifier, err := auth.NewJWTVerifier(jwtCfg, c.Users)
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(jwtCfg)
	if err != nil {
		return err
	}
	c.Verifier = verifier
	c.Issuer = issuer
	return nil
}

func (c *Container) wireRealtime() {
	cfg := c.Config
	logger := c.Logger

	c.Hub = realtime.NewHub(c.Metrics, logger)
	c.Router = realtime.NewRouter(realtime.RouterDeps{
		CreateTask:      c.CreateTaskHandler,
		UpdateTask:      c.UpdateTaskHandler,
		ResolveConflict: c.ResolveConflictHandler,
		UpdateStatus:    c.UpdateTaskStatusHandler,
		SmartAssign:     c.SmartAssignHandler,
		DeleteTask:      c.DeleteTaskHandler,
		Tracker:         c.Tracker,
		Tasks:           c.TaskRepo,
		Users:           c.Users,
	}, c.Hub, c.Metrics, logger)

	gwCfg := realtime.DefaultGatewayConfig()
	if cfg.WSReadLimit > 0 {
		gwCfg.ReadLimit = cfg.WSReadLimit
	}
	if cfg.WSSendBuffer > 0 {
		gwCfg.SendBuffer = cfg.WSSendBuffer
	}
	if cfg.WSPingInterval > 0 {
		gwCfg.PingInterval = cfg.WSPingInterval
	}
	if cfg.WSRateLimit > 0 {
		gwCfg.RateLimit = cfg.WSRateLimit
	}
	if cfg.WSRateBurst > 0 {
		gwCfg.RateBurst = cfg.WSRateBurst
	}
	c.Gateway = realtime.NewGateway(c.Verifier, c.Hub, c.Router, gwCfg, c.Metrics, logger)

	if c.RedisClient != nil {
		c.Relay = realtime.NewRedisRelay(c.RedisClient, realtime.DefaultRelayChannel, c.Hub, logger)
		c.Hub.SetRelay(c.Relay)
	}

	c.Sweeper = services.NewPresenceSweeper(c.Tracker, cfg.PresenceSweepInterval, c.Router.PresenceSwept, logger)
}

// APIServer builds the HTTP server for the board.
func (c *Container) APIServer() *api.Server {
	board := api.NewBoardHandler(api.BoardHandlerConfig{
		Verifier:  c.Verifier,
		GetTask:   c.GetTaskHandler,
		ListTasks: c.ListTasksHandler,
		Editors:   c.TaskEditorsHandler,
		Activity:  c.ActivityHandler,
		ListUsers: c.ListUsersHandler,
		Logger:    c.Logger,
	})
	cfg := api.DefaultServerConfig()
	if c.Config.HTTPAddr != "" {
		cfg.Addr = c.Config.HTTPAddr
	}
	return api.NewServer(cfg, api.ServerDeps{
		Health:    c.Health,
		Metrics:   c.Metrics.Handler(),
		WebSocket: c.Gateway,
		Board:     board,
	}, c.Logger)
}

// StartBackground starts the presence sweeper and, with Redis, the relay.
func (c *Container) StartBackground(ctx context.Context) {
	c.Sweeper.Start(ctx)
	if c.Relay != nil {
		c.Relay.Start(ctx)
	}
}

// OpenPublisher connects the integration event publisher and builds the
// outbox processor. Local mode dispatches in process. Without RabbitMQ,
// development uses a noop publisher.
func (c *Container) OpenPublisher() error {
	cfg := c.Config
	if cfg.IsLocalMode() {
		c.LocalBus = eventbus.NewInProcessBus(c.Logger)
		c.LocalBus.Register(boardEventRecorder(c.Metrics, c.Logger))
		c.EventPublisher = c.LocalBus
		c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, c.processorConfig(), c.Metrics, c.Logger)
		return nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, c.Logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
	} else {
		c.EventPublisher = publisher
		c.Health.Register("rabbitmq", observability.PingChecker(func(context.Context) error {
			if publisher.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}, true))
	}
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, c.processorConfig(), c.Metrics, c.Logger)
	return nil
}

func (c *Container) processorConfig() outbox.ProcessorConfig {
	cfg := c.Config
	procCfg := outbox.DefaultProcessorConfig()
	if cfg.OutboxPollInterval > 0 {
		procCfg.PollInterval = cfg.OutboxPollInterval
	}
	if cfg.OutboxBatchSize > 0 {
		procCfg.BatchSize = cfg.OutboxBatchSize
	}
	if cfg.OutboxMaxRetries > 0 {
		procCfg.MaxRetries = cfg.OutboxMaxRetries
	}
	if cfg.OutboxRetentionDays > 0 {
		procCfg.Retention = cfg.OutboxRetention()
	}
	if cfg.OutboxCleanupInterval > 0 {
		procCfg.CleanupInterval = cfg.OutboxCleanupInterval
	}
	return procCfg
}

// boardEventRecorder counts and logs every board event dispatched in process.
func boardEventRecorder(metrics observability.Metrics, logger *slog.Logger) eventbus.Handler {
	return eventbus.HandlerFunc{
		Keys: []string{"board.#"},
		Fn: func(ctx context.Context, event *eventbus.Event) error {
			metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", event.RoutingKey))
			logger.DebugContext(ctx, "board event dispatched",
				"routing_key", event.RoutingKey,
				"aggregate_id", event.AggregateID,
				"event_id", event.EventID,
			)
			return nil
		},
	}
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.Gateway != nil {
		c.Gateway.Close()
	}
	if c.Sweeper != nil {
		c.Sweeper.Stop()
	}
	if c.Relay != nil {
		c.Relay.Stop()
	}
	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}

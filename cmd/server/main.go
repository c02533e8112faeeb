package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chapter-server/internal/ai"
	"chapter-server/internal/api"
	"chapter-server/internal/config"
	"chapter-server/internal/logger"
	"chapter-server/internal/messaging"
	"chapter-server/internal/prompt"
	"chapter-server/internal/repository"
	"chapter-server/internal/service"
	"chapter-server/internal/websocket"
	"chapter-server/internal/workflow"
	"chapter-server/pkg/migration"
	"chapter-server/pkg/taskmanager"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

const (
	maxConnectRetries = 50
	shutdownTimeout   = 30 * time.Second
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		Service:  "chapter-server",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	// pkg/ библиотеки пишут через zerolog из контекста
	zl := zerolog.New(os.Stdout).With().Timestamp().Str("service", "chapter-server").Logger()
	zerolog.DefaultContextLogger = &zl

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = zl.WithContext(ctx)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting chapter-server",
		zap.String("env", cfg.Env),
		zap.String("ai_client", cfg.AIClientType),
		zap.String("ai_model", cfg.AIModel),
		zap.String("store", cfg.StoreBackend),
	)

	catalog, err := prompt.LoadCatalog(cfg.CategoriesFile)
	if err != nil {
		return err
	}
	prompts := prompt.NewBuilder(catalog)

	aiCfg := ai.Config{
		ClientType:  cfg.AIClientType,
		APIKey:      cfg.AIAPIKey,
		BaseURL:     cfg.AIBaseURL,
		Model:       cfg.AIModel,
		Timeout:     cfg.AITimeout,
		Temperature: cfg.AITemperature,
		MaxTokens:   cfg.AIMaxTokens,
	}
	aiClient, err := ai.NewClient(ctx, aiCfg, log)
	if err != nil {
		return fmt.Errorf("create AI client: %w", err)
	}

	store, closeStore, err := setupStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	plans := repository.NewPlanRepository(store, cfg.ErrorLogEntries, log)

	hub := websocket.NewHub(cfg.GetAllowedOrigins(), log)
	go hub.Run(ctx)
	sinks := []workflow.EventSink{hub}

	if cfg.RabbitMQURL != "" {
		conn, err := connectRabbitMQ(ctx, cfg.RabbitMQURL, log)
		if err != nil {
			return err
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("open RabbitMQ channel: %w", err)
		}
		defer ch.Close()
		publisher, err := messaging.NewEventPublisher(ch, cfg.ChapterEventQueue, log)
		if err != nil {
			return err
		}
		sinks = append(sinks, publisher)
	} else {
		log.Info("RABBITMQ_URL is empty, chapter events are not published to the broker")
	}

	params := aiCfg.DefaultParams()
	registry := workflow.NewRegistry(
		service.NewChapterPlanner(aiClient, prompts, params, log),
		service.NewScriptGenerator(aiClient, prompts, params, log),
		plans,
		workflow.RegistryConfig{ChapterTimeout: cfg.ChapterTimeout, OutlineTimeout: cfg.OutlineTimeout},
		log,
		sinks...,
	)

	tasks := taskmanager.New(taskmanager.Config{MaxTasks: cfg.MaxActiveTasks})
	tasks.StartJanitor(ctx, max(cfg.TaskRetention/4, time.Minute), cfg.TaskRetention)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(api.Deps{
		Sessions:   registry,
		Analyzer:   service.NewAnalyzer(aiClient, prompts, params, log),
		Provider:   aiClient,
		Clients:    plans,
		Tasks:      tasks,
		Categories: catalog.Names(),
	}, log)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.GetAllowedOrigins(),
		Metrics:        true,
		WebSocket:      hub.ServePlan,
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		log.Warn("Background tasks did not finish in time", zap.Error(err))
	}
	return nil
}

// setupStore выбирает KV хранилище по STORE_BACKEND.
func setupStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, func(), error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "redis":
		client, err := setupRedis(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisStore(client, cfg.StoreTTL, log), func() { _ = client.Close() }, nil
	case "postgres":
		pool, err := setupPostgres(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.DBMigrate {
			m := migration.NewMigrator(migration.Config{
				FS:   repository.Migrations,
				Path: repository.MigrationsPath,
			}, pool)
			if err := m.Up(ctx); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("apply migrations: %w", err)
			}
			log.Info("Database migrations applied")
		}
		return repository.NewPostgresStore(pool, log), pool.Close, nil
	default:
		log.Warn("Using in-memory store, plans are lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}
}

func setupPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	retryDelay := 3 * time.Second
	log.Info("Attempting to connect to PostgreSQL", zap.Int("max_retries", maxConnectRetries), zap.Duration("retry_delay", retryDelay))

	var lastErr error
	for attempt := 1; attempt <= maxConnectRetries; attempt++ {
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		if err == nil {
			err = pool.Ping(connectCtx)
			if err != nil {
				pool.Close()
			}
		}
		connectCancel()

		if err == nil {
			log.Info("Successfully connected and pinged PostgreSQL", zap.Int("attempt", attempt))
			return pool, nil
		}
		lastErr = err
		log.Warn("PostgreSQL connection failed, retrying...", zap.Int("attempt", attempt), zap.Error(err))
		if err := sleepCtx(ctx, retryDelay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxConnectRetries, lastErr)
}

func setupRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	retryDelay := 3 * time.Second
	var lastErr error
	for attempt := 1; attempt <= maxConnectRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			log.Info("Successfully connected to Redis", zap.String("addr", cfg.RedisAddr), zap.Int("attempt", attempt))
			return client, nil
		}
		lastErr = err
		log.Warn("Redis ping failed, retrying...", zap.Int("attempt", attempt), zap.Error(err))
		if err := sleepCtx(ctx, retryDelay); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxConnectRetries, lastErr)
}

func connectRabbitMQ(ctx context.Context, rawURL string, log *zap.Logger) (*amqp.Connection, error) {
	retryDelay := 5 * time.Second
	log.Info("Attempting to connect to RabbitMQ",
		zap.String("url", maskURL(rawURL)),
		zap.Int("max_retries", maxConnectRetries),
		zap.Duration("retry_delay", retryDelay),
	)

	var lastErr error
	for attempt := 1; attempt <= maxConnectRetries; attempt++ {
		conn, err := amqp.Dial(rawURL)
		if err == nil {
			log.Info("Successfully connected to RabbitMQ", zap.Int("attempt", attempt))
			go func() {
				closed := conn.NotifyClose(make(chan *amqp.Error, 1))
				if err := <-closed; err != nil {
					log.Error("RabbitMQ connection closed unexpectedly", zap.Error(err))
				} else {
					log.Info("RabbitMQ connection closed")
				}
			}()
			return conn, nil
		}
		lastErr = err
		log.Warn("RabbitMQ connection failed, retrying...", zap.Int("attempt", attempt), zap.Error(err))
		if err := sleepCtx(ctx, retryDelay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxConnectRetries, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}

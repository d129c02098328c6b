package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	_ "github.com/redmonkez12/wheels-api/docs" // Swagger docs (generated)
	"github.com/redmonkez12/wheels-api/internal/auth"
	"github.com/redmonkez12/wheels-api/internal/config"
	"github.com/redmonkez12/wheels-api/internal/database"
	"github.com/redmonkez12/wheels-api/internal/email"
	"github.com/redmonkez12/wheels-api/internal/events"
	httpServer "github.com/redmonkez12/wheels-api/internal/http"
	"github.com/redmonkez12/wheels-api/internal/logging"
	"github.com/redmonkez12/wheels-api/internal/password"
	"github.com/redmonkez12/wheels-api/internal/ratelimit"
	"github.com/redmonkez12/wheels-api/internal/recovery"
	"github.com/redmonkez12/wheels-api/internal/user"
)

// @title           Wheels API
// @version         1.0
// @description     Accounts and password recovery for the Wheels car-servicing marketplace.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	rootCmd := &cobra.Command{
		Use:          "wheels-api",
		Short:        "Wheels accounts and password recovery API",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations or indexes for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)

	// Allow running without subcommand (default to serve)
	rootCmd.RunE = serveCmd.RunE

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Printf("Application error: %v", err)
		stop()
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"token_strategy", cfg.Auth.TokenStrategy,
	)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	tokenService, err := newTokenService(cfg.Auth)
	if err != nil {
		return err
	}

	publisher := newPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close event publisher", "error", err.Error())
		}
	}()

	refreshTokens := auth.NewRedisRepository(redisClient)
	rateLimiter := ratelimit.NewLimiter(redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	hasher := password.NewHasher(password.DefaultParams)
	emailService := email.NewService(cfg.Email)
	if cfg.Email.User == "" || cfg.Email.AppPassword == "" {
		logger.Warn("GMAIL_USER / GMAIL_APP_PASSWORD not set, password reset emails will fail")
	}

	authService := auth.NewService(
		store,
		refreshTokens,
		tokenService,
		hasher,
		logger,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)
	recoveryService := recovery.NewService(
		store,
		recovery.NewRandomSecrets(),
		emailService,
		hasher,
		refreshTokens,
		publisher,
		logger,
	)

	router := httpServer.NewRouter(cfg, httpServer.Handlers{
		Auth:     auth.NewHandler(authService),
		Recovery: recovery.NewHandler(recoveryService),
	}, auth.NewMiddleware(tokenService), rateLimiter, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.Open(ctx, cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(ctx, db.DB); err != nil {
			return err
		}
	case config.StoreDriverMongo:
		client, err := database.OpenMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		if err := database.EnsureMongoIndexes(ctx, client.Database(cfg.Mongo.Database)); err != nil {
			return err
		}
	default:
		logger.Info("nothing to migrate", "store", cfg.Store.Driver)
		return nil
	}

	logger.Info("migrations applied", "store", cfg.Store.Driver)
	return nil
}

// openStore connects the credential store selected by STORE_DRIVER
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (user.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.Open(ctx, cfg.Database.ConnectionString())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return user.NewRepository(db), func() { db.Close() }, nil
	case config.StoreDriverMongo:
		client, err := database.OpenMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize mongodb: %w", err)
		}
		db := client.Database(cfg.Mongo.Database)
		if err := database.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return user.NewMongoRepository(db), func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		logger.Warn("using in-memory store, accounts are lost on restart")
		return user.NewMemoryStore(), func() {}, nil
	}
}

func newTokenService(cfg config.AuthConfig) (auth.TokenService, error) {
	if cfg.TokenStrategy == config.TokenStrategyJWT {
		svc, err := auth.NewJWTService(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		return svc, nil
	}

	svc, err := auth.NewPasetoService(cfg.PasetoKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PASETO service: %w", err)
	}
	return svc, nil
}

func newPublisher(cfg config.KafkaConfig, logger *logging.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info("KAFKA_BROKERS not set, security events are not published")
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.SecurityTopic, logger)
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/refinery/internal/application/assembler"
	"github.com/aescanero/refinery/internal/application/orchestrator"
	"github.com/aescanero/refinery/internal/application/store"
	"github.com/aescanero/refinery/internal/config"
	"github.com/aescanero/refinery/internal/domain"
	redisevents "github.com/aescanero/refinery/pkg/adapters/events/redis"
	"github.com/aescanero/refinery/pkg/adapters/llm"
	"github.com/aescanero/refinery/pkg/adapters/llm/gateway"
	"github.com/aescanero/refinery/pkg/adapters/metrics/prometheus"
	redisstorage "github.com/aescanero/refinery/pkg/adapters/storage/redis"
	"github.com/aescanero/refinery/pkg/api/grpc"
	"github.com/aescanero/refinery/pkg/api/http"
	"github.com/aescanero/refinery/pkg/api/websocket"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting Refinery",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// Initialize adapters
	eventBus, err := redisevents.NewStreamsEventBus(
		redisClient,
		"refinery-workers",
		fmt.Sprintf("refinery-%d", os.Getpid()),
		logger,
	)
	if err != nil {
		logger.Fatal("failed to create event bus", zap.Error(err))
	}

	keyedStore := redisstorage.NewKeyedStore(redisClient, cfg.Pipeline.StoreTTL, logger)
	entities := store.New(keyedStore)

	metricsCollector := prometheus.NewCollector()

	// Initialize the text gateway with one provider per pipeline role.
	// Pacers are shared by provider name so two roles on the same remote
	// provider never exceed its pacing together.
	textGateway := gateway.New(
		gateway.RetryConfig{
			MaxRetries:        cfg.Retry.MaxRetries,
			InitialBackoff:    cfg.Retry.InitialBackoff,
			MaxBackoff:        cfg.Retry.MaxBackoff,
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		},
		cfg.Timeouts.ProviderRequestTimeout,
		metricsCollector,
		logger,
	)

	pacers := make(map[string]*gateway.Pacer)
	buildProvider := func(pc config.ProviderConfig) gateway.Provider {
		client, err := llm.NewClient(&llm.Config{
			Provider: pc.Provider,
			Model:    pc.Model,
			APIKey:   pc.APIKey,
			BaseURL:  pc.BaseURL,
			Timeout:  cfg.Timeouts.ProviderRequestTimeout,
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal("failed to create LLM client",
				zap.String("provider", pc.Provider),
				zap.Error(err))
		}
		pacer, ok := pacers[pc.Provider]
		if !ok {
			pacer = gateway.NewPacer(pc.MinInterval)
			pacers[pc.Provider] = pacer
		}
		return gateway.Provider{Client: client, Pacer: pacer}
	}

	textGateway.Register(domain.RoleGenerator, buildProvider(cfg.Generator))
	textGateway.Register(domain.RoleCritic1, buildProvider(cfg.Critic1))
	textGateway.RegisterWithFallback(domain.RoleCritic2,
		buildProvider(cfg.Critic2),
		buildProvider(cfg.Critic2Fallback))

	// Initialize application components
	runner := orchestrator.NewRunner(
		entities,
		textGateway,
		eventBus,
		metricsCollector,
		logger,
		cfg.Pipeline.LowScoreThreshold,
	)

	orchestratorMgr := orchestrator.NewManager(
		entities,
		runner,
		metricsCollector,
		logger,
		cfg.Pipeline.MaxIterations,
	)

	resultAssembler := assembler.New(entities)

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: orchestratorMgr,
		Assembler:    resultAssembler,
		Logger:       logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:         cfg.GRPCPort,
		Orchestrator: orchestratorMgr,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("Refinery started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("max_iterations", cfg.Pipeline.MaxIterations))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("Refinery shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}

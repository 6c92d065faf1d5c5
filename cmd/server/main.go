package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seu-repo/mirror-voice/internal/adapter/ai/openai"
	"github.com/seu-repo/mirror-voice/internal/adapter/cache"
	"github.com/seu-repo/mirror-voice/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/mirror-voice/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/mirror-voice/internal/adapter/queue"
	"github.com/seu-repo/mirror-voice/internal/adapter/speech"
	"github.com/seu-repo/mirror-voice/internal/adapter/speech/google"
	wsAdapter "github.com/seu-repo/mirror-voice/internal/adapter/websocket"
	"github.com/seu-repo/mirror-voice/internal/observability/telemetry"
	"github.com/seu-repo/mirror-voice/internal/ports"
	"github.com/seu-repo/mirror-voice/internal/service/health"
	"github.com/seu-repo/mirror-voice/internal/service/intent"
	"github.com/seu-repo/mirror-voice/internal/service/voice"
	"github.com/seu-repo/mirror-voice/pkg/config"
)

const serviceName = "mirror-voice"

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// 2. Initialize Logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting mirror voice server",
		zap.String("service", serviceName),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	tracerProvider, err := telemetry.InitTracer(cfg.OpenTelemetry, cfg.App.Version)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 4. Initialize Cache (Redis, in-memory fallback)
	var responseCache ports.Cache
	if cfg.Redis.URL != "" {
		responseCache, err = cache.NewRedisCache(cfg.Redis.URL, logger)
		if err != nil {
			logger.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
			responseCache = nil
		}
	}
	if responseCache == nil {
		responseCache = cache.NewLocalCache(cfg.TTSCache.MaxEntries, cfg.TTSCache.TTL, logger)
	}
	defer responseCache.Close()

	// 5. Initialize WebSocket Hub (push channel)
	hub := wsAdapter.NewHub(logger)
	go hub.Run(ctx)

	// 6. Initialize Message Queue (NATS) for cross-instance fan-out
	var broadcaster ports.Broadcaster = hub
	healthCfg := &health.Config{Version: cfg.App.Version, Cache: responseCache, Sessions: hub}
	if cfg.NATS.URL != "" {
		natsQueue, err := queue.NewNATSQueue(cfg.NATS.URL, queue.NATSOptions{
			Name:          serviceName,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsQueue.Close()

		relay := queue.NewEventRelay(natsQueue, cfg.NATS.Subject, logger)
		if err := relay.Forward(hub); err != nil {
			logger.Fatal("Failed to subscribe to event relay", zap.Error(err))
		}
		broadcaster = relay
		healthCfg.Queue = natsQueue
	}

	// 7. Initialize Speech Services
	transcriber, synthesizer := newSpeech(ctx, cfg, logger)
	if cfg.TTSCache.Enabled {
		synthesizer = speech.NewCachedSynthesizer(synthesizer, responseCache, cfg.TTSCache.TTL, cfg.Speech.VoiceName, logger)
	}

	// 8. Initialize Intent Resolution
	registry := intent.NewRegistry(nil, logger)
	resolver, engine := newResolver(cfg, registry, logger)
	if engine != nil {
		healthCfg.Completion = engine
	}

	pipeline := voice.NewPipeline(voice.Config{
		SampleRate:   cfg.Speech.SampleRate,
		SystemPrompt: cfg.Assistant.SystemPrompt,
		HistoryLimit: cfg.Assistant.HistoryLimit,
	}, resolver, registry, transcriber, synthesizer, broadcaster, logger)

	// 9. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.CORS))

	// Health Check Endpoints
	health.NewFiberHandler(health.NewService(healthCfg, logger)).RegisterRoutes(app)

	// Metrics endpoint for Prometheus
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	// Voice routes
	handlers.NewVoiceHandler(pipeline, hub, logger).Register(app)

	// WebSocket push channel
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(hub.Handler()))

	// 10. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 11. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" || level == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func newSpeech(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.Transcriber, ports.Synthesizer) {
	if cfg.Speech.Provider == config.SpeechProviderMock {
		logger.Warn("Using mock speech provider: uploads are read as text and no audio is returned")
		return speech.TextTranscriber{}, speech.SilentSynthesizer{}
	}

	client, err := google.NewClient(ctx, cfg.Speech, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Google speech services", zap.Error(err))
	}
	return client, client
}

// newResolver picks the configured strategy. The function strategy needs an
// OpenAI key; without one the classifier is used and no engine is returned.
func newResolver(cfg *config.Config, registry *intent.Registry, logger *zap.Logger) (intent.Resolver, *openai.Client) {
	if cfg.Assistant.Strategy == config.StrategyFunction {
		if cfg.OpenAI.APIKey != "" {
			engine := openai.NewClient(cfg.OpenAI, cfg.CircuitBreaker, logger)
			logger.Info("Using function-calling resolver", zap.String("model", cfg.OpenAI.Model))
			return intent.NewFunctionResolver(engine, registry, cfg.Assistant.ResolveTimeout, logger), engine
		}
		logger.Warn("OPENAI_API_KEY not set, falling back to classifier resolver")
	}
	logger.Info("Using classifier resolver")
	return intent.NewClassifierResolver(logger), nil
}

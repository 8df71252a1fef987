package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/auth"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/config"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/game"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/health"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/metrics"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/middleware"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/ratelimit"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/registry"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/store"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/tracing"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/transport"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/words"
)

const version = "1.0.0"

func main() {
	// Load .env for local development; in production everything comes from
	// real environment variables.
	for _, path := range []string{".env", "../../../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		os.Stderr.WriteString("environment validation failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx := context.Background()

	if cfg.DevelopmentMode {
		logging.Info(ctx, "Running in DEVELOPMENT MODE")
	}

	// --- Tracing (optional) ---
	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, "skrawl-server", cfg.OTLPEndpoint)
		if err != nil {
			logging.Warn(ctx, "Tracing disabled, exporter init failed", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tp.Shutdown(shutdownCtx)
			}()
		}
	}

	// --- Identity gateway ---
	var validator auth.TokenValidator
	if cfg.SkipAuth {
		logging.Warn(ctx, "Authentication DISABLED - do not use in production")
		validator = &auth.MockValidator{}
	} else {
		v, err := auth.NewValidator(ctx, cfg.IDPDomain, cfg.IDPAudience)
		if err != nil {
			logging.Fatal(ctx, "Failed to create auth validator", zap.Error(err))
		}
		validator = v
		logging.Info(ctx, "Identity provider validator initialized",
			zap.String("domain", cfg.IDPDomain))
	}

	// --- Session store (optional Postgres) ---
	var sessionStore store.SessionStore = store.Noop{}
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logging.Warn(ctx, "Postgres unavailable, sessions will not be persisted", zap.Error(err))
		} else {
			if err := pg.EnsureSchema(ctx); err != nil {
				logging.Warn(ctx, "Schema check failed", zap.Error(err))
			}
			sessionStore = pg
			defer pg.Close()
		}
	}

	// --- Redis-backed rate limit store (optional) ---
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logging.Warn(ctx, "Redis unavailable, falling back to memory rate limiting", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	limiter, err := ratelimit.NewRateLimiter(cfg, redisClient)
	if err != nil {
		logging.Fatal(ctx, "Failed to create rate limiter", zap.Error(err))
	}

	// --- Word source ---
	wordSource, err := words.NewStatic(time.Now().UnixNano())
	if err != nil {
		logging.Fatal(ctx, "Failed to load word lists", zap.Error(err))
	}

	// --- Registry & hub ---
	reg := registry.New(registry.Config{
		Words:   wordSource,
		Store:   sessionStore,
		Filter:  game.NewWordFilter(nil),
		Grace:   cfg.GracePeriod,
		IdleMax: cfg.RoomIdleMax,
	})
	defer reg.Close()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go reg.RunSweeper(sweepCtx)

	hub := transport.NewHub(validator, reg, limiter, cfg)

	// --- HTTP server ---
	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(otelgin.Middleware("skrawl-server"))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = auth.AllowedOrigins(cfg.AllowedOrigins, []string{"http://localhost:3000"})
	router.Use(cors.New(corsConfig))

	router.GET("/ws", hub.ServeWs)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	health.NewHandler(reg, metrics.ConnectionCount, version, wordSource.Languages()).Register(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.ConnectionTimeout,
	}

	go func() {
		logging.Info(ctx, "Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "Server failed", zap.Error(err))
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "Server forced to shutdown", zap.Error(err))
	}

	logging.Info(ctx, "Server exiting")
}

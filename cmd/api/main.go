package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hms-api/internal/config"
	appointmentHandler "github.com/jwalitptl/hms-api/internal/handler/appointment"
	auditHandler "github.com/jwalitptl/hms-api/internal/handler/audit"
	authHandler "github.com/jwalitptl/hms-api/internal/handler/auth"
	billingHandler "github.com/jwalitptl/hms-api/internal/handler/billing"
	"github.com/jwalitptl/hms-api/internal/handler/health"
	permissionHandler "github.com/jwalitptl/hms-api/internal/handler/permission"
	"github.com/jwalitptl/hms-api/internal/handler/prometheus"
	"github.com/jwalitptl/hms-api/internal/middleware"
	"github.com/jwalitptl/hms-api/internal/repository/postgres"
	"github.com/jwalitptl/hms-api/internal/router"
	appointmentService "github.com/jwalitptl/hms-api/internal/service/appointment"
	auditService "github.com/jwalitptl/hms-api/internal/service/audit"
	authService "github.com/jwalitptl/hms-api/internal/service/auth"
	billingService "github.com/jwalitptl/hms-api/internal/service/billing"
	"github.com/jwalitptl/hms-api/internal/service/rbac"
	"github.com/jwalitptl/hms-api/pkg/auth"
	"github.com/jwalitptl/hms-api/pkg/circuitbreaker"
	"github.com/jwalitptl/hms-api/pkg/idempotency"
	"github.com/jwalitptl/hms-api/pkg/logger"
	"github.com/jwalitptl/hms-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	appLogger.SetGlobal()

	ctx := context.Background()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	metricsHandler := prometheus.New("hms")
	m := metricsHandler.Metrics()

	var (
		redisClient *redis.Client
		idemStore   idempotency.Store
	)
	switch cfg.Idempotency.Backend {
	case "redis":
		redisClient, err = idempotency.NewRedisClient(ctx, idempotency.RedisConfig{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisClient.Close()
		idemStore = idempotency.NewGuardedStore(
			idempotency.NewRedisStore(redisClient, cfg.Idempotency.TTL),
			circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
				Name:        "idempotency-redis",
				MaxFailures: 5,
				Timeout:     30 * time.Second,
			}),
		)
	default:
		idemStore = idempotency.NewMemoryStore(cfg.Idempotency.TTL, cfg.Idempotency.TTL/2)
	}

	// Repositories
	base := postgres.NewBaseRepository(db, m)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	invoiceRepo := postgres.NewInvoiceRepository(base)
	auditRepo := postgres.NewAuditRepository(base)
	userRepo := postgres.NewUserRepository(base)

	// Services
	authz := rbac.NewService(rbac.DefaultTable(rbac.WithLogger(appLogger.Zerolog())))
	auditSvc := auditService.NewService(auditRepo)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authSvc := authService.NewService(userRepo, jwtSvc, auth.NewBcryptHasher(bcrypt.DefaultCost), auditSvc)
	appointmentSvc := appointmentService.NewService(appointmentRepo, authz, auditSvc, m)
	billingSvc := billingService.NewService(invoiceRepo, authz, auditSvc, m,
		billingService.WithIdempotencyStore(idemStore))

	// Handlers
	v := validator.New()
	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Security.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Security.AllowedOrigins
	}

	var limit rate.Limit
	if cfg.RateLimit.Enabled {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		metricsHandler,
		health.NewHandler(db, redisClient),
		[]router.Handler{
			authHandler.NewHandler(authSvc, v),
		},
		[]router.Handler{
			appointmentHandler.NewHandler(appointmentSvc, v),
			billingHandler.NewHandler(billingSvc, v),
			permissionHandler.NewHandler(authz),
			auditHandler.NewHandler(auditSvc, authz),
		},
		router.RouterConfig{
			Mode:       cfg.Server.Mode,
			RateLimit:  limit,
			RateBurst:  cfg.RateLimit.Burst,
			CORSConfig: corsConfig,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

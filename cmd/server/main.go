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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yourorg/payment-settlement/internal/adapter/kakaopay"
	"github.com/yourorg/payment-settlement/internal/adapter/nicepay"
	"github.com/yourorg/payment-settlement/internal/adapter/toss"
	"github.com/yourorg/payment-settlement/internal/client"
	"github.com/yourorg/payment-settlement/internal/config"
	"github.com/yourorg/payment-settlement/internal/httpapi"
	"github.com/yourorg/payment-settlement/internal/lock"
	"github.com/yourorg/payment-settlement/internal/logger"
	"github.com/yourorg/payment-settlement/internal/metrics"
	"github.com/yourorg/payment-settlement/internal/orchestrator"
	"github.com/yourorg/payment-settlement/internal/planbuilder"
	"github.com/yourorg/payment-settlement/internal/policy"
	"github.com/yourorg/payment-settlement/internal/processor"
	"github.com/yourorg/payment-settlement/internal/repository"
	"github.com/yourorg/payment-settlement/internal/router"
	"github.com/yourorg/payment-settlement/internal/router/circuitbreaker"
	"github.com/yourorg/payment-settlement/internal/tracing"
)

const serviceName = "payment-settlement"

// server is the wired HTTP handler and the resources it owns.
type server struct {
	engine  *gin.Engine
	closers []func() error
}

func (s *server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildServer wires the store, lock, service clients, gateway and HTTP routes from cfg.
func buildServer(ctx context.Context, cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) (*server, error) {
	s := &server{}
	readiness := map[string]httpapi.ReadinessCheck{}

	repo, closeRepo, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening payment store: %w", err)
	}
	s.closers = append(s.closers, closeRepo)
	readiness["database"] = repo.Ping

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		rdb := lock.NewRedisClient(cfg.RedisAddr)
		s.closers = append(s.closers, rdb.Close)
		redisLocker := lock.NewRedisLocker(rdb, serviceName+":")
		readiness["redis"] = redisLocker.Ping
		locker = redisLocker
	} else {
		log.Warn("REDIS_ADDR not set, approval lock is process-local")
	}

	m := metrics.New(reg)
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}

	nice := nicepay.NewAdapter(cfg.NicePay, httpClient, log)
	proc := processor.NewProcessor(nice, toss.NewAdapter(), kakaopay.NewAdapter())
	breaker := cfg.Breaker
	breaker.OnStateChange = router.CircuitStateObserver(m)
	gateway := router.NewRouter(proc, circuitbreaker.NewCircuitBreaker(breaker), policy.MustDefault(), router.Config{
		Backoff: cfg.GatewayBackoff,
		Metrics: m,
		Logger:  log,
	})

	orch := orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Products: client.NewProductClient(client.Config{BaseURL: cfg.ProductServiceURL, HTTPClient: httpClient, Logger: log}),
		Users:    client.NewUserClient(client.Config{BaseURL: cfg.UserServiceURL, HTTPClient: httpClient, Logger: log}),
		Orders: client.NewOrderClient(client.OrderConfig{
			Config: client.Config{BaseURL: cfg.OrderServiceURL, HTTPClient: httpClient, Logger: log},
		}),
		Gateway:  gateway,
		Payments: repo,
		Locker:   locker,
		Plans:    planbuilder.NewPlanBuilder(nil),
		Metrics:  m,
		Logger:   log,
		LockTTL:  cfg.LockTTL,
	})

	s.engine = httpapi.NewEngine(httpapi.NewHandler(orch, cfg.FrontendURL, log), httpapi.Options{
		ServiceName: serviceName,
		JWTSecret:   cfg.JWTSecret,
		Logger:      log,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Readiness:   readiness,
	})
	return s, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(serviceName, cfg.Environment)
	defer log.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := tracing.Init(serviceName, cfg.TracingEnabled, os.Stdout)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	s, err := buildServer(startCtx, cfg, log, reg)
	cancel()
	if err != nil {
		log.Fatal("failed to build server", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting payment settlement service",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.Bool("postgres", cfg.DatabaseURL != ""),
			zap.Bool("redis", cfg.RedisAddr != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := s.Close(); err != nil {
		log.Error("closing resources", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Error("flushing traces", zap.Error(err))
	}
	log.Info("server exited")
}

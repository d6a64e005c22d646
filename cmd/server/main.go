package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/masters-service/internal/adapters/http/handler"
	"github.com/ogurasousui/masters-service/internal/adapters/http/middleware"
	"github.com/ogurasousui/masters-service/internal/adapters/repository/postgres"
	"github.com/ogurasousui/masters-service/internal/core/handover"
	"github.com/ogurasousui/masters-service/internal/core/master"
	"github.com/ogurasousui/masters-service/internal/core/schedule"
	"github.com/ogurasousui/masters-service/internal/platform/config"
	pg "github.com/ogurasousui/masters-service/internal/platform/db/postgres"
	"github.com/ogurasousui/masters-service/internal/platform/logging"
	"github.com/ogurasousui/masters-service/internal/platform/obs"
	"github.com/ogurasousui/masters-service/internal/platform/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := obs.NewMetrics(reg)

	gateway, err := pg.Open(ctx, cfg.Database, pg.WithLogger(logger), pg.WithObserver(metrics))
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer gateway.Close()

	tx := pg.NewTransactionManager(gateway)

	masterSvc := master.NewService(postgres.NewMasterRepository(gateway), nil, tx, master.WithLogger(logger))
	scheduleSvc := schedule.NewService(postgres.NewScheduleRepository(gateway), tx, logger)
	handoverSvc := handover.NewService(postgres.NewOrderRepository(gateway), nil, tx,
		handover.WithLogger(logger),
		handover.WithObserver(metrics),
	)

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerSecond, cfg.HTTP.RateLimitBurst,
		middleware.WithTrustedProxies(cfg.HTTP.TrustedProxies),
	)

	router := handler.NewRouter(handler.New(masterSvc, scheduleSvc, handoverSvc, logger), handler.RouterConfig{
		Auth:        middleware.NewAuthenticator(cfg.Auth.JWTSecret, logger),
		Limiter:     limiter,
		Metrics:     metrics,
		Gatherer:    reg,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      logger,
		Ready:       gateway.Ping,
	})

	srv := server.New(cfg.Server.HTTPAddr, cfg.Server.GRPCAddr, router,
		server.WithLogger(logger),
		server.WithProbe(gateway.Ping, 0),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// Command ek-server starts the event-keeper gRPC server.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/event-keeper/internal/api/eventsv1"
	"github.com/and161185/event-keeper/internal/config"
	"github.com/and161185/event-keeper/internal/limiter"
	"github.com/and161185/event-keeper/internal/metrics"
	"github.com/and161185/event-keeper/internal/migrate"
	"github.com/and161185/event-keeper/internal/repository/postgres"
	grpcserver "github.com/and161185/event-keeper/internal/server/grpc"
	"github.com/and161185/event-keeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the gRPC server.
func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.Bool("enforceConflicts", cfg.EnforceConflicts),
	)

	var creds credentials.TransportCredentials
	if c, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey); err == nil {
		creds = c
	} else if !cfg.Dev {
		logger.Fatal("failed to load TLS cert/key", zap.Error(err))
	} else {
		logger.Warn("TLS disabled (dev)", zap.Error(err))
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer db.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Services
	eventRepo := postgres.NewEventRepo(db)
	eventSvc := service.NewEventService(eventRepo,
		service.WithLogger(logger.Named("events")),
		service.WithMetrics(m),
		service.WithConflictCheck(cfg.EnforceConflicts),
	)

	lim := limiter.NewPG(db.Pool, cfg.AuthWindow, cfg.AuthMaxFails, cfg.AuthBlockFor)

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.MetricsUnary(m),
			grpcserver.AuthUnary([]byte(cfg.JWTKey),
				grpcserver.WithLimiter(lim),
				grpcserver.WithAuthLogger(logger.Named("auth")),
			),
		),
	}
	if creds != nil {
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)
	eventsv1.RegisterEventsServer(s, grpcserver.New(eventSvc))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(eventsv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", creds != nil))
		errCh <- s.Serve(lis)
	}()

	var ms *http.Server
	if cfg.MetricsAddr != "" {
		ms = metrics.NewServer(cfg.MetricsAddr, reg)
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(cfg.ShutdownTimeout):
			s.Stop()
		}
		if ms != nil {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			_ = ms.Shutdown(sctx)
			cancel()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

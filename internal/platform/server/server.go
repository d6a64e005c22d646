package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	defaultProbeInterval   = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// Prober はストレージの疎通確認です。
type Prober func(ctx context.Context) error

// Server は HTTP API と gRPC ヘルスチェックのライフサイクルを管理します。
type Server struct {
	httpAddr        string
	grpcAddr        string
	httpServer      *http.Server
	grpcServer      *grpc.Server
	health          *health.Server
	probe           Prober
	probeInterval   time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option は Server の任意設定です。
type Option func(*Server)

// WithProbe はヘルスステータスを決めるための疎通確認を設定します。
func WithProbe(p Prober, interval time.Duration) Option {
	return func(s *Server) {
		s.probe = p
		if interval > 0 {
			s.probeInterval = interval
		}
	}
}

// WithShutdownTimeout は HTTP サーバーの停止待ち時間を設定します。
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger はログ出力先を設定します。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGRPCOptions は gRPC サーバーのオプションを追加します。
func WithGRPCOptions(opts ...grpc.ServerOption) Option {
	return func(s *Server) {
		s.grpcServer = grpc.NewServer(opts...)
	}
}

// New は httpAddr で API を、grpcAddr で grpc.health.v1.Health を公開するサーバーを構築します。
func New(httpAddr, grpcAddr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		httpAddr:        httpAddr,
		grpcAddr:        grpcAddr,
		health:          health.NewServer(),
		probeInterval:   defaultProbeInterval,
		shutdownTimeout: defaultShutdownTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.grpcServer == nil {
		s.grpcServer = grpc.NewServer()
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Run は両方のアドレスで待ち受け、コンテキストがキャンセルされると停止します。
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpAddr, err)
	}
	grpcLis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve は与えられたリスナーで待ち受けます。
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	s.logger.Info("server listening",
		slog.String("http_addr", httpLis.Addr().String()),
		slog.String("grpc_addr", grpcLis.Addr().String()),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.watchHealth(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.grpcServer.GracefulStop()
	if err != nil {
		return fmt.Errorf("shutdown HTTP: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) watchHealth(ctx context.Context) {
	s.updateHealth(ctx)
	if s.probe == nil {
		return
	}

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateHealth(ctx)
		}
	}
}

func (s *Server) updateHealth(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.probe != nil {
		if err := s.probe(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("storage probe failed", slog.String("error", err.Error()))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
}

// Package grpc runs the gRPC listener. It serves the standard health
// service (grpc.health.v1.Health) and reflection, behind recovery, logging
// and metrics interceptors.
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/freshbulk/storefront/pkg/logger"
	"github.com/freshbulk/storefront/pkg/metrics"
)

var (
	handled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freshbulk",
		Subsystem: "grpc",
		Name:      "handled_total",
		Help:      "gRPC calls completed by method and code.",
	}, []string{"method", "code"})

	handling = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "freshbulk",
		Subsystem: "grpc",
		Name:      "handling_seconds",
		Help:      "gRPC response latency.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method"})
)

func init() {
	metrics.MustRegister(handled, handling)
}

func recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("grpc: panic recovered",
				"method", info.FullMethod,
				"error", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

func observeInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	elapsed := time.Since(start)
	code := status.Code(err)

	handled.WithLabelValues(info.FullMethod, code.String()).Inc()
	handling.WithLabelValues(info.FullMethod).Observe(elapsed.Seconds())
	logger.WithCtx(ctx).Debug("grpc: request",
		"method", info.FullMethod,
		"duration_ms", elapsed.Milliseconds(),
		"code", code.String(),
	)
	return resp, err
}

type Server struct {
	srv    *grpc.Server
	health *health.Server
}

// New builds a server whose health status starts as SERVING.
func New() *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(recoveryInterceptor, observeInterceptor),
		grpc.MaxRecvMsgSize(4<<20),
		grpc.MaxSendMsgSize(4<<20),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return &Server{srv: srv, health: hs}
}

// SetServing flips the overall health status reported to probes.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
}

// Listen binds ":port".
func Listen(port string) (net.Listener, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("grpc: listen on :%s: %w", port, err)
	}
	return lis, nil
}

// Serve blocks until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	logger.Info("gRPC server starting", "addr", lis.Addr().String())
	if err := s.srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop reports NOT_SERVING, then drains in-flight calls until ctx ends
// and force-closes whatever is left.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
	}
}

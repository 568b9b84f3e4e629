package grpcserver

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/event-keeper/internal/api/eventsv1"
	"github.com/and161185/event-keeper/internal/authn"
	"github.com/and161185/event-keeper/internal/limiter"
	"github.com/and161185/event-keeper/internal/metrics"
)

// LoggingUnary returns a unary server interceptor for structured logging.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		// metadata only, never payloads
		log.Info("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remoteAddr(ctx)),
		)
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// MetricsUnary records request count and latency per method and code.
func MetricsUnary(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		m.ObserveRequest(info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// AuthOption configures AuthUnary.
type AuthOption func(*authConfig)

type authConfig struct {
	lim limiter.Limiter
	log *zap.Logger
}

// WithLimiter locks out peers that keep presenting invalid tokens.
func WithLimiter(l limiter.Limiter) AuthOption { return func(c *authConfig) { c.lim = l } }

// WithAuthLogger sets the logger for limiter errors and lockouts.
func WithAuthLogger(l *zap.Logger) AuthOption { return func(c *authConfig) { c.log = l } }

// AuthUnary verifies "authorization: Bearer <JWT>" on Events methods and
// stores the manager id in the context. Other services (health, reflection)
// pass through.
func AuthUnary(signKey []byte, opts ...AuthOption) grpc.UnaryServerInterceptor {
	cfg := authConfig{log: zap.NewNop()}
	for _, o := range opts {
		o(&cfg)
	}
	prefix := "/" + eventsv1.ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return next(ctx, req)
		}
		var peerHash []byte
		if cfg.lim != nil {
			peerHash = limiter.HashPeer(remoteAddr(ctx))
			ok, retry, err := cfg.lim.Allow(ctx, peerHash)
			if err != nil {
				cfg.log.Error("auth limiter", zap.Error(err))
				return nil, status.Error(codes.Unavailable, "try again later")
			}
			if !ok {
				return nil, status.Errorf(codes.ResourceExhausted, "too many failed auth attempts, retry in %s", retry.Round(time.Second))
			}
		}

		id, err := verifyBearer(ctx, signKey)
		if err != nil {
			if cfg.lim != nil {
				if blocked, d, lerr := cfg.lim.Failure(ctx, peerHash); lerr != nil {
					cfg.log.Error("auth limiter", zap.Error(lerr))
				} else if blocked {
					cfg.log.Warn("peer locked out", zap.String("peer", remoteAddr(ctx)), zap.Duration("for", d))
				}
			}
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}
		return next(WithManagerID(ctx, id), req)
	}
}

func verifyBearer(ctx context.Context, signKey []byte) (uuid.UUID, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return authn.Verify(signKey, tok)
}

func remoteAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/pkg/httputil"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor logging + recovery + timeout guard (если у вызова нет deadline).
func UnaryServerInterceptor(defaultTimeout time.Duration) grpc.UnaryServerInterceptor {
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Second
	}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
			defer cancel()
		}

		reqID := httputil.NormalizeRequestID(firstMD(ctx, httputil.MetadataRequestID))
		ctx = httputil.WithRequestID(ctx, reqID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(httputil.MetadataRequestID, reqID))

		log := logger.L().With(
			slog.String("req_id", reqID),
			slog.String("method", info.FullMethod),
		)
		ctx = logger.WithLogger(ctx, log)

		defer func() {
			if r := recover(); r != nil {
				log.ErrorContext(ctx, "grpc unary panic",
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			level := slog.LevelInfo
			if status.Code(err) == codes.Internal || status.Code(err) == codes.Unknown {
				level = slog.LevelError
			}
			log.LogAttrs(ctx, level, "grpc unary",
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()),
				slog.String("err", errString(err)))
		}()

		return handler(ctx, req)
	}
}

// AuthUnaryInterceptor личность из metadata (authorization, x-user-id) один раз на вызов.
func AuthUnaryInterceptor(auth security.Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		userID, err := auth.Authenticate(ctx, security.CredentialsFromMetadata(ctx))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(security.WithUserID(ctx, userID), req)
	}
}

func firstMD(ctx context.Context, key string) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

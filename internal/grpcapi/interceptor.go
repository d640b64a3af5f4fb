package grpcapi

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

func loggingInterceptor(logger *slog.Logger, obs Observer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		logger.InfoContext(ctx, "grpc call",
			"method", info.FullMethod,
			"code", code.String(),
			"dur", time.Since(start),
		)
		if obs != nil {
			obs.ObserveGRPC(info.FullMethod, code.String())
		}
		return resp, err
	}
}

package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/procura/pkg/errorbank"
)

func unaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = errorbank.Internal("internal error", errorbank.WithCause(fmt.Errorf("panic: %v", r)))
				logger.Error("grpc handler panicked", zap.String("method", info.FullMethod), zap.Any("panic", r))
			}
			err = toStatus(err)
			logCall(logger, "unary", info.FullMethod, time.Since(start), err)
		}()
		return handler(ctx, req)
	}
}

func streamInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = errorbank.Internal("internal error", errorbank.WithCause(fmt.Errorf("panic: %v", r)))
				logger.Error("grpc stream panicked", zap.String("method", info.FullMethod), zap.Any("panic", r))
			}
			err = toStatus(err)
			logCall(logger, "stream", info.FullMethod, time.Since(start), err)
		}()
		return handler(srv, ss)
	}
}

func logCall(logger *zap.Logger, kind, method string, elapsed time.Duration, err error) {
	fields := []zap.Field{zap.String("kind", kind), zap.String("method", method), zap.Duration("duration", elapsed)}
	if err != nil {
		logger.Warn("grpc call finished", append(fields, zap.String("code", status.Code(err).String()), zap.Error(err))...)
		return
	}
	logger.Debug("grpc call finished", fields...)
}

// toStatus maps application errors onto gRPC status codes. Infrastructure causes stay server side.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var appErr *errorbank.AppError
	if !errors.As(err, &appErr) {
		appErr = errorbank.From(err)
	}
	return status.Error(appErr.GRPCCode(), appErr.Message())
}

package unit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/modelkit/device"
	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/logger"
	"github.com/kbukum/modelkit/observability"
	"github.com/kbukum/modelkit/resilience"
)

// WithLogging logs each compute call with its duration and device.
func WithLogging(log *logger.Logger) Middleware {
	return Intercept(func(ctx context.Context, call Call, next func(context.Context) error) error {
		start := time.Now()
		err := next(ctx)
		fields := logger.MergeWithDuration(logger.Fields(
			logger.FieldUnit, call.Unit,
			logger.FieldOperation, call.Op,
			logger.FieldBatch, call.Size,
			logger.FieldDevice, device.Current(ctx).String(),
		), time.Since(start))
		if err != nil {
			fields[logger.FieldError] = err.Error()
			log.WithContext(ctx).Error("unit compute failed", fields)
		} else {
			log.WithContext(ctx).Debug("unit compute ok", fields)
		}
		return err
	})
}

// WithMetrics records invocation counts and durations for task.
func WithMetrics(metrics *observability.Metrics, task string) Middleware {
	return Intercept(func(ctx context.Context, call Call, next func(context.Context) error) error {
		start := time.Now()
		err := next(ctx)
		status := "ok"
		if err != nil {
			status = "error"
			code := string(errors.ErrCodeCompute)
			if appErr, ok := errors.AsAppError(err); ok {
				code = string(appErr.Code)
			}
			metrics.RecordError(ctx, code, call.Unit)
		}
		if call.Op == OpComputeBatch {
			metrics.RecordBatch(ctx, call.Unit, call.Size)
		}
		metrics.RecordInvocation(ctx, task, call.Unit, device.Current(ctx).String(), status, time.Since(start))
		return err
	})
}

// WithTracing wraps each compute call in a span.
func WithTracing() Middleware {
	return Intercept(func(ctx context.Context, call Call, next func(context.Context) error) error {
		ctx, span := observability.StartSpan(ctx, observability.SpanCompute,
			attribute.String(observability.AttrUnit, call.Unit),
			attribute.String(observability.AttrDevice, device.Current(ctx).String()),
			attribute.Int(observability.AttrBatch, call.Size),
		)
		err := next(ctx)
		observability.EndSpan(span, err)
		return err
	})
}

// WithConcurrencyLimit admits at most n concurrent compute calls, for units
// that are not safe for concurrent use.
func WithConcurrencyLimit(n int) Middleware {
	limiter := resilience.NewLimiter(n, 0)
	return Intercept(func(ctx context.Context, _ Call, next func(context.Context) error) error {
		_, err := resilience.Do(ctx, limiter, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, next(ctx)
		})
		return err
	})
}

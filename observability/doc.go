// Package observability wires OpenTelemetry tracing and metrics into
// modelkit invocations.
//
//	shutdown, err := observability.Setup(ctx, cfg.Observability)
//	defer shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("modelkit"))
//	metrics.RecordInvocation(ctx, "echo", "echo", "cpu", "ok", elapsed)
//
// With observability disabled the global no-op providers stay in place and
// every span and instrument is free.
package observability

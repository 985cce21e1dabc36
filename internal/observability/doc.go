// Package observability provides tracing, metrics and structured logging
// for task orchestration.
//
// It follows OpenTelemetry standards: InitTracing configures an OTLP
// tracer provider (or a no-op one when disabled), InitMetrics configures
// a Prometheus or OTLP meter provider, and RunLogger wraps slog with
// run-scoped trace correlation.
//
// # Tracing
//
//	tp, err := observability.InitTracing(ctx, cfg.Tracing)
//	if err != nil {
//		return err
//	}
//	defer observability.ShutdownTracing(ctx, tp)
//
//	tracer := tp.Tracer("conduct")
//
// # Metrics
//
//	provider, err := observability.InitMetrics(ctx, cfg.Metrics)
//	if err != nil {
//		return err
//	}
//	recorder := observability.NewRecorder(provider.Meter("conduct"))
//	recorder.RecordTaskCompleted("build", 1, elapsed)
//
// # Logging
//
//	handler := observability.NewHandler(os.Stderr, cfg.Logging)
//	logger := observability.NewRunLogger(handler, runID.String())
//	logger.Info(ctx, "run started", "tasks", n)
//
// Log entries emitted inside a span automatically carry trace_id and
// span_id, so logs, spans and ledger entries can be joined on the same
// identifiers.
package observability

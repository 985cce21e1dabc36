package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	cmdinternal "github.com/conduct-dev/conduct/cmd/conduct/internal"
	"github.com/conduct-dev/conduct/internal/events"
	"github.com/conduct-dev/conduct/internal/ledger"
	"github.com/conduct-dev/conduct/internal/observability"
	"github.com/conduct-dev/conduct/internal/orchestrator"
	"github.com/conduct-dev/conduct/internal/task"
)

var runCmd = &cobra.Command{
	Use:   "run GRAPH_FILE",
	Short: "Execute a task graph",
	Long: `Parse a graph definition, compute its execution plan, and run it.

Each task's "command" metadata is executed through the shell. A failing
task is retried until its attempt budget is spent; exhaustion aborts the
run and cancels everything that has not started. Every lifecycle
transition is appended to the JSONL ledger.

Exit codes:
  0 - all tasks completed
  2 - run aborted (a task exhausted its retries)
  4 - cancelled by signal
  5 - invalid graph

Examples:
  # Run a pipeline sequentially
  conduct run pipeline.yaml

  # Run up to four tasks per wave concurrently
  conduct run pipeline.yaml --max-parallel 4

  # Write the ledger somewhere specific and print results as JSON
  conduct run pipeline.yaml --ledger ./run.jsonl --print-result`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runMaxParallel int
	runLedgerPath  string
	runNoLedger    bool
	runPrintResult bool
	runTraceID     string
)

func init() {
	runCmd.Flags().IntVar(&runMaxParallel, "max-parallel", 0, "Maximum concurrent tasks per wave (default: from config, 0 = sequential)")
	runCmd.Flags().StringVar(&runLedgerPath, "ledger", "", "Ledger file path (default: from config)")
	runCmd.Flags().BoolVar(&runNoLedger, "no-ledger", false, "Disable the run ledger")
	runCmd.Flags().BoolVar(&runPrintResult, "print-result", false, "Print per-task results as JSON to stdout")
	runCmd.Flags().StringVar(&runTraceID, "trace-id", "", "External correlation id attached to every ledger entry")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}

	graph, err := task.ParseGraphFile(args[0],
		task.WithDefaultMaxAttempts(cfg.Core.DefaultMaxAttempts))
	if err != nil {
		return err
	}

	logger, closeLog, err := buildLogger(flags)
	if err != nil {
		return err
	}
	defer closeLog()

	tracerProvider, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return cmdinternal.WrapError(cmdinternal.ExitConfigError, "tracing initialization failed", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.ShutdownTracing(shutdownCtx, tracerProvider)
	}()

	meterProvider, err := observability.InitMetrics(ctx, cfg.Metrics)
	if err != nil {
		return cmdinternal.WrapError(cmdinternal.ExitConfigError, "metrics initialization failed", err)
	}
	recorder := observability.NewRecorder(meterProvider.Meter("conduct"))
	stopMetrics := serveMetrics(logger)
	defer stopMetrics()

	runLedger, closeLedger, err := buildLedger()
	if err != nil {
		return err
	}
	defer closeLedger()

	bus := events.NewEventBus(events.WithMetrics(recorder))
	defer bus.Close()

	var progressDone func()
	if !flags.Quiet {
		progressDone = printProgress(ctx, bus, cmd.ErrOrStderr())
	}

	maxParallel := cfg.Core.MaxParallel
	if runMaxParallel > 0 {
		maxParallel = runMaxParallel
	}

	executor := NewCommandExecutor(cfg.Core.TaskTimeout)
	orch := orchestrator.New(graph, executor,
		orchestrator.WithLogger(logger),
		orchestrator.WithTracer(tracerProvider.Tracer("conduct")),
		orchestrator.WithLedger(runLedger),
		orchestrator.WithEventBus(bus),
		orchestrator.WithMetrics(recorder),
		orchestrator.WithMaxParallel(maxParallel),
	)

	results, runErr := orch.Run(ctx)
	if progressDone != nil {
		progressDone()
	}

	if runPrintResult {
		formatter := cmdinternal.NewFormatter(cmdinternal.FormatJSON, cmd.OutOrStdout())
		if err := formatter.PrintJSON(results); err != nil {
			return err
		}
	} else if runErr == nil && !flags.Quiet {
		formatter := cmdinternal.NewFormatter(flags.Format(), cmd.OutOrStdout())
		if err := formatter.PrintSuccess(fmt.Sprintf("run %s completed: %d tasks", orch.RunID(), len(results))); err != nil {
			return err
		}
	}

	return runErr
}

// buildLogger constructs the run logger from config and flags. The
// returned closer releases the log file, if any.
func buildLogger(flags *GlobalFlags) (logger *slog.Logger, closer func(), err error) {
	logCfg := cfg.Logging
	if flags.IsVerbose() || cfg.Core.Debug {
		logCfg.Level = "debug"
	}

	var w io.Writer
	closer = func() {}
	switch logCfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, ferr := os.OpenFile(logCfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if ferr != nil {
			return nil, nil, cmdinternal.WrapError(cmdinternal.ExitConfigError, "cannot open log file", ferr)
		}
		w = f
		closer = func() { _ = f.Close() }
	}

	return slog.New(observability.NewHandler(w, logCfg)), closer, nil
}

// buildLedger resolves the ledger from flags and config.
func buildLedger() (ledger.Ledger, func(), error) {
	if runNoLedger {
		return ledger.Nop{}, func() {}, nil
	}

	path := runLedgerPath
	if path == "" && cfg.Ledger.Enabled {
		path = cfg.Ledger.Path
	}
	if path == "" {
		return ledger.Nop{}, func() {}, nil
	}

	fl, err := ledger.NewFileLedger(path)
	if err != nil {
		return nil, nil, err
	}
	closer := func() { _ = fl.Close() }

	if runTraceID != "" {
		return &correlatedLedger{inner: fl, correlationID: runTraceID}, closer, nil
	}
	return fl, closer, nil
}

// correlatedLedger stamps an external correlation id onto every entry so
// a run can be joined against outside systems.
type correlatedLedger struct {
	inner         ledger.Ledger
	correlationID string
}

func (l *correlatedLedger) Record(ctx context.Context, ev ledger.Event) error {
	if ev.Data == nil {
		ev.Data = make(map[string]any, 1)
	}
	ev.Data["correlation_id"] = l.correlationID
	return l.inner.Record(ctx, ev)
}

// serveMetrics exposes the Prometheus scrape endpoint when configured.
// The returned function stops the server.
func serveMetrics(logger *slog.Logger) func() {
	if !cfg.Metrics.Enabled || !strings.EqualFold(cfg.Metrics.Provider, "prometheus") {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics endpoint failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

// printProgress subscribes to the event bus and prints task lifecycle
// lines. The returned function drains and stops the printer.
func printProgress(ctx context.Context, bus events.EventBus, w io.Writer) func() {
	ch, unsubscribe := bus.Subscribe(ctx, events.Filter{Types: []events.EventType{
		events.EventWaveStarted,
		events.EventTaskCompleted,
		events.EventTaskFailed,
		events.EventTaskRetried,
		events.EventTaskCancelled,
	}}, 512)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range ch {
			switch payload := ev.Payload.(type) {
			case events.WaveStartedPayload:
				fmt.Fprintf(w, "wave %d: %s\n", payload.Wave, strings.Join(payload.TaskIDs, ", "))
			case events.TaskCompletedPayload:
				fmt.Fprintf(w, "  ✓ %s (attempt %d, %s)\n", payload.TaskID, payload.Attempt, payload.Duration.Round(time.Millisecond))
			case events.TaskFailedPayload:
				fmt.Fprintf(w, "  ✗ %s attempt %d failed: %s\n", payload.TaskID, payload.Attempt, payload.Error)
			case events.TaskRetriedPayload:
				fmt.Fprintf(w, "  ↻ %s retrying (attempt %d of %d)\n", payload.TaskID, payload.NextAttempt, payload.MaxAttempts)
			case events.TaskCancelledPayload:
				fmt.Fprintf(w, "  - %s cancelled\n", payload.TaskID)
			}
		}
	}()

	return func() {
		// Give buffered events a moment to drain before unsubscribing.
		time.Sleep(50 * time.Millisecond)
		unsubscribe()
		wg.Wait()
	}
}

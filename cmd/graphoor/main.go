// Package main provides the CLI entry point for graphoor, a reproducible
// benchmark harness for graph-store mutation and read operations.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiihann/graphoor/backend"
	_ "github.com/weiihann/graphoor/backend/sqlitegraph"
	"github.com/weiihann/graphoor/bench"
	"github.com/weiihann/graphoor/dataset"
	"github.com/weiihann/graphoor/metrics"
	"github.com/weiihann/graphoor/progress"
	"github.com/weiihann/graphoor/report"
	"github.com/weiihann/graphoor/snapshot"
	"github.com/weiihann/graphoor/task"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "graphoor",
		Short: "Reproducible graph-store benchmark harness",
		Long: `Graphoor drives a pluggable graph-store backend through a declared task
list, measuring per-operation latency or aggregate throughput while restoring an
identical graph state before every batch-size trial.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newGenCmd(logger))

	return root
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		tasksPath        string
		backendName      string
		dataDir          string
		snapshotDir      string
		archiveSnapshots bool
		progressEndpoint string
		progressTimeout  time.Duration
		metricsAddr      string
		outputJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a benchmark task file against a backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Context(), logger, runConfig{
				tasksPath:        tasksPath,
				backendName:      backendName,
				dataDir:          dataDir,
				snapshotDir:      snapshotDir,
				archiveSnapshots: archiveSnapshots,
				progressEndpoint: progressEndpoint,
				progressTimeout:  progressTimeout,
				metricsAddr:      metricsAddr,
				outputJSON:       outputJSON,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&tasksPath, "tasks", "",
		"Path to the YAML/JSON task file (required)")
	flags.StringVar(&backendName, "backend", "sqlite",
		fmt.Sprintf("Backend adapter to drive (registered: %v)",
			backend.Registered()))
	flags.StringVar(&dataDir, "data-dir", "",
		"Backend state directory (default: tmp/<backend>/data)")
	flags.StringVar(&snapshotDir, "snapshot-dir", "",
		"Snapshot directory (default: tmp/<backend>/snapshot)")
	flags.BoolVar(&archiveSnapshots, "snapshot-archive", false,
		"Capture snapshots as a compressed archive instead of a directory copy")
	flags.StringVar(&progressEndpoint, "progress-endpoint", "",
		"Collector URL for best-effort progress events")
	flags.DurationVar(&progressTimeout, "progress-timeout", 2*time.Second,
		"Per-event delivery timeout")
	flags.StringVar(&metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address for the run's duration")
	flags.BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of a table")

	if err := cmd.MarkFlagRequired("tasks"); err != nil {
		panic(err)
	}

	return cmd
}

type runConfig struct {
	tasksPath        string
	backendName      string
	dataDir          string
	snapshotDir      string
	archiveSnapshots bool
	progressEndpoint string
	progressTimeout  time.Duration
	metricsAddr      string
	outputJSON       bool
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	cfg runConfig,
) error {
	tasks, err := task.Load(cfg.tasksPath)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	dataDir := cfg.dataDir
	if dataDir == "" {
		dataDir = filepath.Join("tmp", cfg.backendName, "data")
	}

	snapshotDir := cfg.snapshotDir
	if snapshotDir == "" {
		snapshotDir = filepath.Join("tmp", cfg.backendName, "snapshot")
	}

	be, err := backend.New(cfg.backendName, backend.Config{
		DataDir:     dataDir,
		SnapshotDir: snapshotDir,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	strategy := snapshot.StrategyDirCopy
	if cfg.archiveSnapshots {
		strategy = snapshot.StrategyArchive
	}

	snaps, err := snapshot.NewManager(be, strategy, logger)
	if err != nil {
		return err
	}

	var reporter *progress.Reporter
	if cfg.progressEndpoint != "" {
		reporter = progress.NewReporter(
			cfg.progressEndpoint, cfg.progressTimeout, logger,
		)
	}

	var m *metrics.Metrics
	if cfg.metricsAddr != "" {
		m = metrics.New()

		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		m.Serve(metricsCtx, cfg.metricsAddr, logger)
	}

	logger.InfoContext(ctx, "starting benchmark",
		slog.String("tasks", cfg.tasksPath),
		slog.String("backend", cfg.backendName),
		slog.Int("task_count", len(tasks)),
	)

	dispatcher := bench.NewDispatcher(bench.DispatcherConfig{
		Backend:   be,
		Snapshots: snaps,
		Reporter:  reporter,
		Metrics:   m,
		Logger:    logger,
	})

	result, runErr := dispatcher.Run(ctx, tasks)

	// A fatal abort still carries the partial result list; render what we
	// have before surfacing the error.
	if result != nil {
		if cfg.outputJSON {
			if err := report.GenerateJSON(os.Stdout, result); err != nil {
				return fmt.Errorf("generate JSON report: %w", err)
			}
		} else {
			if err := report.Generate(os.Stdout, result); err != nil {
				return fmt.Errorf("generate report: %w", err)
			}
		}
	}

	if runErr != nil {
		return runErr
	}

	logger.InfoContext(ctx, "benchmark complete")

	return nil
}

func newGenCmd(logger *slog.Logger) *cobra.Command {
	var (
		vertices     int
		edges        int
		labels       []string
		distribution string
		seed         int64
		outPath      string
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a deterministic graph dataset for bulk loading",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			gen := dataset.NewGenerator(dataset.Config{
				NumVertices:  vertices,
				NumEdges:     edges,
				Labels:       labels,
				Distribution: distribution,
				Seed:         seed,
			})

			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}

			summary, err := gen.Generate(out)
			if err != nil {
				out.Close()

				return fmt.Errorf("generate: %w", err)
			}

			if err := out.Close(); err != nil {
				return fmt.Errorf("close %s: %w", outPath, err)
			}

			logger.Info("dataset generated",
				slog.String("path", outPath),
				slog.Int("vertices", summary.Vertices),
				slog.Int("edges", summary.Edges),
				slog.Int64("seed", seed),
			)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&vertices, "vertices", 10000,
		"Number of vertices to generate")
	flags.IntVar(&edges, "edges", 30000,
		"Number of edges to generate")
	flags.StringSliceVar(&labels, "labels", []string{"related"},
		"Edge labels to draw from")
	flags.StringVar(&distribution, "distribution", "power-law",
		"Edge endpoint distribution: power-law, uniform, exponential")
	flags.Int64Var(&seed, "seed", 0,
		"Random seed (0 = use current time)")
	flags.StringVar(&outPath, "out", "graph.jsonl",
		"Output dataset path")

	return cmd
}

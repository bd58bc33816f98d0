package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/weiihann/graphoor/backend"
	"github.com/weiihann/graphoor/metrics"
	"github.com/weiihann/graphoor/progress"
	"github.com/weiihann/graphoor/snapshot"
	"github.com/weiihann/graphoor/task"
)

// State is the dispatcher lifecycle state.
type State string

const (
	StateInit     State = "init"
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// ErrNoTasks is returned when a run is started with an empty task list.
var ErrNoTasks = errors.New("no tasks to execute")

// DispatcherConfig wires the dispatcher's collaborators. Reporter and
// Metrics may be nil.
type DispatcherConfig struct {
	Backend   backend.Backend
	Snapshots *snapshot.Manager
	Reporter  *progress.Reporter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Dispatcher sequences an ordered task list over one backend, producing the
// final result set. A Dispatcher runs exactly once.
type Dispatcher struct {
	be       backend.Backend
	snaps    *snapshot.Manager
	reporter *progress.Reporter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	state    State
}

// NewDispatcher creates a Dispatcher in the INIT state; the backend stays
// closed until Run.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		be:       cfg.Backend,
		snaps:    cfg.Snapshots,
		reporter: cfg.Reporter,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With(slog.String("component", "dispatcher")),
		state:    StateInit,
	}
}

// State reports the current lifecycle state.
func (d *Dispatcher) State() State { return d.state }

// Run executes tasks in order and returns the accumulated results. The
// returned Result is non-nil whenever at least one task was attempted, even
// on a fatal abort: it then carries one entry per attempted task including
// the failing one, and the error describes the abort.
func (d *Dispatcher) Run(ctx context.Context, tasks []task.Task) (*Result, error) {
	if d.state != StateInit {
		return nil, fmt.Errorf("dispatcher already ran (state %s)", d.state)
	}

	if len(tasks) == 0 {
		d.state = StateFailed

		return nil, ErrNoTasks
	}

	if err := d.be.Open(); err != nil {
		d.state = StateFailed

		return nil, fmt.Errorf("open backend: %w", err)
	}

	d.state = StateRunning

	result := &Result{
		Metadata: Metadata{
			RunID:      uuid.NewString(),
			Backend:    d.be.Name(),
			StartedAt:  time.Now().UTC(),
			TotalTasks: len(tasks),
		},
	}

	d.logger.Info("run started",
		slog.String("run_id", result.Metadata.RunID),
		slog.String("backend", result.Metadata.Backend),
		slog.Int("tasks", len(tasks)),
	)

	for i, t := range tasks {
		d.reporter.Emit(progress.Event{
			Event:      progress.EventTaskStart,
			TaskName:   t.Name(),
			TaskIndex:  i,
			TotalTasks: len(tasks),
		})

		begin := time.Now()

		var (
			tr    TaskResult
			fatal error
		)

		if t.IsLoad() {
			tr, fatal = d.runLoad(ctx, i, len(tasks), t, result)
		} else {
			tr = d.runTask(ctx, i, len(tasks), t)
		}

		tr.DurationSeconds = time.Since(begin).Seconds()
		result.Results = append(result.Results, tr)

		d.reporter.Emit(progress.Event{
			Event:           progress.EventTaskComplete,
			TaskName:        t.Name(),
			TaskIndex:       i,
			TotalTasks:      len(tasks),
			Status:          string(tr.Status),
			DurationSeconds: tr.DurationSeconds,
		})

		d.logger.Info("task finished",
			slog.String("task", t.Name()),
			slog.String("status", string(tr.Status)),
			slog.Float64("duration_s", tr.DurationSeconds),
		)

		if fatal != nil {
			d.shutdown(result)
			d.state = StateFailed
			result.Metadata.FinishedAt = time.Now().UTC()

			return result, fmt.Errorf(
				"task %d (%s) aborted the run: %w", i, t.Name(), fatal,
			)
		}
	}

	d.shutdown(result)
	d.state = StateComplete
	result.Metadata.FinishedAt = time.Now().UTC()

	d.logger.Info("run complete",
		slog.String("run_id", result.Metadata.RunID),
	)

	return result, nil
}

// runLoad executes the bulk-load task. Every subsequent task assumes a
// populated graph, so a load failure is the one unconditionally fatal case.
// The baseline snapshot is part of the same bargain: without it no trial
// can be isolated, so a capture failure aborts with the load task too.
func (d *Dispatcher) runLoad(
	ctx context.Context, idx, total int, t task.Task, result *Result,
) (TaskResult, error) {
	tr := TaskResult{
		TaskType: t.Name(),
		OpsCount: t.OpsCount,
		Status:   StatusSuccess,
	}

	stats, err := d.be.BulkLoad(ctx, t.Parameters.Source)
	if err != nil {
		tr.Status = StatusFailed
		tr.Error = err.Error()

		return tr, fmt.Errorf("bulk load: %w", err)
	}

	tr.NodesLoaded = stats.Nodes
	tr.EdgesLoaded = stats.Edges

	d.reporter.Emit(progress.Event{
		Event:      progress.EventSnapshotStart,
		TaskName:   t.Name(),
		TaskIndex:  idx,
		TotalTasks: total,
	})

	snapBegin := time.Now()

	if err := d.snaps.Snapshot(); err != nil {
		tr.Status = StatusFailed
		tr.Error = err.Error()

		return tr, fmt.Errorf("baseline snapshot: %w", err)
	}

	d.reporter.Emit(progress.Event{
		Event:           progress.EventSnapshotComplete,
		TaskName:        t.Name(),
		TaskIndex:       idx,
		TotalTasks:      total,
		Status:          string(StatusSuccess),
		DurationSeconds: time.Since(snapBegin).Seconds(),
	})

	// The baseline counts come from the reopened store, not the load stats,
	// so the metadata reflects what the snapshot actually captured.
	nodes, edges, err := d.be.Counts()
	if err != nil {
		d.logger.Warn("baseline count failed",
			slog.String("error", err.Error()),
		)
	} else {
		result.Metadata.BaselineNodes = nodes
		result.Metadata.BaselineEdges = edges
	}

	return tr, nil
}

// runTask executes one non-load task across all its batch-size trials. A
// dispatch-level error marks the task failed and stops its remaining
// trials; the run itself continues with the next task.
func (d *Dispatcher) runTask(
	ctx context.Context, idx, total int, t task.Task,
) TaskResult {
	tr := TaskResult{
		TaskType: t.Name(),
		OpsCount: t.OpsCount,
		Status:   StatusSuccess,
	}

	warmed := false

	for _, batchSize := range t.BatchSizes {
		if err := ctx.Err(); err != nil {
			tr.Status = StatusFailed
			tr.Error = err.Error()

			break
		}

		br, err := d.runTrial(idx, total, t, batchSize, &warmed)
		if err != nil {
			tr.Status = StatusFailed
			tr.Error = err.Error()
			d.logger.Warn("trial failed",
				slog.String("task", t.Name()),
				slog.Int("batch_size", batchSize),
				slog.String("error", err.Error()),
			)

			break
		}

		tr.BatchResults = append(tr.BatchResults, br)
	}

	return tr
}

// runTrial runs one batch-size trial: restore the baseline state, resolve
// parameters, execute, aggregate.
func (d *Dispatcher) runTrial(
	idx, total int, t task.Task, batchSize int, warmed *bool,
) (BatchResult, error) {
	// Warm-up primes the backend before the first trial of a task. It runs
	// against pre-restore state; the restore below discards whatever it
	// mutated, and its measurements are discarded with it.
	if !*warmed && t.Parameters.Warmup > 0 {
		d.warmUp(t)

		*warmed = true
	}

	d.reporter.Emit(progress.Event{
		Event:      progress.EventRestoreStart,
		TaskName:   t.Name(),
		TaskIndex:  idx,
		TotalTasks: total,
		BatchSize:  batchSize,
	})

	restoreBegin := time.Now()

	if err := d.snaps.Restore(); err != nil {
		return BatchResult{}, fmt.Errorf("restore before trial: %w", err)
	}

	d.metrics.IncRestore()

	d.reporter.Emit(progress.Event{
		Event:           progress.EventRestoreComplete,
		TaskName:        t.Name(),
		TaskIndex:       idx,
		TotalTasks:      total,
		BatchSize:       batchSize,
		Status:          string(StatusSuccess),
		DurationSeconds: time.Since(restoreBegin).Seconds(),
	})

	set, err := buildOperationSet(d.be, t)
	if err != nil {
		return BatchResult{}, err
	}

	d.reporter.Emit(progress.Event{
		Event:            progress.EventSubtaskStart,
		TaskName:         t.Name(),
		TaskIndex:        idx,
		TotalTasks:       total,
		BatchSize:        batchSize,
		OriginalOpsCount: intp(set.original),
		ValidOpsCount:    intp(set.valid),
		FilteredOpsCount: intp(set.filtered()),
	})

	d.be.ResetErrorCount()

	br := BatchResult{
		BatchSize:        batchSize,
		OriginalOpsCount: set.original,
		ValidOpsCount:    set.valid,
		FilteredOpsCount: set.filtered(),
		Status:           StatusSuccess,
	}

	trialBegin := time.Now()

	if t.Throughput() {
		runner := NewThroughputRunner(
			d.be, t.Parameters.Workers, t.Parameters.TxBatch, d.logger,
		)

		tp, errs := runner.Run(set.ops)
		br.Throughput = &tp
		br.ErrorCount = errs
	} else {
		exec := NewBatchExecutor(d.be, d.logger)

		samples, errs := exec.Run(set.ops, batchSize)
		br.ErrorCount = errs
		br.Latency = Summarize(samples)

		if br.Latency != nil {
			br.LatencyUs = br.Latency.MeanUs
		}
	}

	br.ErrorCount += d.be.ErrorCount()

	elapsed := time.Since(trialBegin)
	d.metrics.ObserveTrial(t.Name(), set.valid, br.ErrorCount, elapsed)

	d.reporter.Emit(progress.Event{
		Event:           progress.EventSubtaskComplete,
		TaskName:        t.Name(),
		TaskIndex:       idx,
		TotalTasks:      total,
		BatchSize:       batchSize,
		Status:          string(br.Status),
		DurationSeconds: elapsed.Seconds(),
	})

	return br, nil
}

// warmUp runs up to Warmup singleton operations outside any trial.
func (d *Dispatcher) warmUp(t task.Task) {
	set, err := buildOperationSet(d.be, t)
	if err != nil {
		d.logger.Warn("warm-up skipped",
			slog.String("task", t.Name()),
			slog.String("error", err.Error()),
		)

		return
	}

	n := t.Parameters.Warmup
	if n > len(set.ops) {
		n = len(set.ops)
	}

	exec := NewBatchExecutor(d.be, d.logger)
	_, errs := exec.RunSingleton(set.ops[:n])

	d.logger.Debug("warm-up done",
		slog.String("task", t.Name()),
		slog.Int("ops", n),
		slog.Int("errors", errs),
	)
}

// shutdown closes the backend and records the final on-disk size. Cleanup
// failures are logged, never returned: they must not affect run status.
func (d *Dispatcher) shutdown(result *Result) {
	var errs *multierror.Error

	size, err := dirSize(d.be.DataDir())
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("measure state dir: %w", err))
	} else {
		result.Metadata.DBSizeBytes = size
	}

	if err := d.be.Close(); err != nil &&
		!errors.Is(err, backend.ErrNotOpen) {
		errs = multierror.Append(errs, fmt.Errorf("close backend: %w", err))
	}

	if errs.ErrorOrNil() != nil {
		d.logger.Warn("cleanup incomplete",
			slog.String("error", errs.Error()),
		)
	}
}

func intp(v int) *int { return &v }

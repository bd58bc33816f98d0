package bench

import (
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiihann/graphoor/backend"
)

// ThroughputRunner partitions an operation list across a fixed worker pool
// and measures the aggregate completion rate. The pool lives for exactly one
// trial.
type ThroughputRunner struct {
	be      backend.Backend
	workers int
	txBatch int
	logger  *slog.Logger
}

// NewThroughputRunner creates a runner with the given parallelism. txBatch
// sets the per-worker transaction granularity; zero means each worker runs
// its whole slice in one transaction.
func NewThroughputRunner(
	be backend.Backend, workers, txBatch int, logger *slog.Logger,
) *ThroughputRunner {
	if workers < 1 {
		workers = 1
	}

	return &ThroughputRunner{
		be:      be,
		workers: workers,
		txBatch: txBatch,
		logger:  logger.With(slog.String("component", "throughput")),
	}
}

// Run partitions ops into contiguous slices of ceil(len/workers), launches
// one worker per non-empty slice, and reports total operations over the
// wall-clock span from first dispatch to last join. Failures on individual
// operations are counted inside the workers and never stop a worker's
// remaining groups or its siblings.
func (r *ThroughputRunner) Run(ops []Op) (Throughput, int) {
	if len(ops) == 0 {
		return Throughput{Workers: r.workers}, 0
	}

	sliceSize := (len(ops) + r.workers - 1) / r.workers

	var (
		g        errgroup.Group
		errCount atomic.Int64
		launched int
	)

	start := time.Now()

	for begin := 0; begin < len(ops); begin += sliceSize {
		end := begin + sliceSize
		if end > len(ops) {
			end = len(ops)
		}

		slice := ops[begin:end]
		launched++

		g.Go(func() error {
			txBatch := r.txBatch
			if txBatch <= 0 {
				txBatch = len(slice)
			}

			exec := NewBatchExecutor(r.be, r.logger)
			_, errs := exec.Run(slice, txBatch)

			errCount.Add(int64(errs))

			// Worker errors are absorbed into the counter; returning
			// them would tear down the rest of the pool.
			return nil
		})
	}

	// Barrier: every worker must join before the clock stops.
	_ = g.Wait()

	elapsed := time.Since(start)

	r.logger.Debug("throughput trial complete",
		slog.Int("ops", len(ops)),
		slog.Int("workers", launched),
		slog.Duration("elapsed", elapsed),
	)

	tp := Throughput{
		Workers:        launched,
		Ops:            len(ops),
		ElapsedSeconds: elapsed.Seconds(),
	}

	if elapsed > 0 {
		tp.OpsPerSecond = float64(len(ops)) / elapsed.Seconds()
	}

	return tp, int(errCount.Load())
}

package bench

import (
	"log/slog"
	"time"

	"github.com/weiihann/graphoor/backend"
)

// Op is one benchmark operation executed against an open transactional
// scope.
type Op func(s backend.Scope) error

// BatchExecutor runs operations in contiguous fixed-size groups, each group
// inside one transactional scope, and reports one amortized latency sample
// per group.
type BatchExecutor struct {
	be     backend.Backend
	logger *slog.Logger
}

// NewBatchExecutor creates an executor bound to one backend.
func NewBatchExecutor(be backend.Backend, logger *slog.Logger) *BatchExecutor {
	return &BatchExecutor{
		be:     be,
		logger: logger.With(slog.String("component", "batch")),
	}
}

// Run executes ops in groups of batchSize. For each group the wall-clock
// time of open-scope, operations, and commit is divided by the group size:
// every operation of the group is reported at the same fractional latency.
// Timing each operation individually would fold per-operation transactional
// overhead into the measurement, so the amortization is intentional.
//
// A failing group is rolled back, adds its full size to the error count,
// contributes no sample, and does not stop the remaining groups.
//
// Samples are returned in microseconds, in group order.
func (e *BatchExecutor) Run(ops []Op, batchSize int) ([]float64, int) {
	if batchSize <= 0 {
		batchSize = 1
	}

	samples := make([]float64, 0, (len(ops)+batchSize-1)/batchSize)
	errCount := 0

	for start := 0; start < len(ops); start += batchSize {
		end := start + batchSize
		if end > len(ops) {
			end = len(ops)
		}

		group := ops[start:end]

		begin := time.Now()

		scope, err := e.be.Begin()
		if err != nil {
			errCount += len(group)
			e.logger.Warn("group scope open failed",
				slog.Int("group_start", start),
				slog.String("error", err.Error()),
			)

			continue
		}

		var opErr error

		for _, op := range group {
			if opErr = op(scope); opErr != nil {
				break
			}
		}

		if opErr != nil {
			if rbErr := scope.Rollback(); rbErr != nil {
				e.logger.Warn("rollback failed",
					slog.String("error", rbErr.Error()),
				)
			}

			errCount += len(group)
			e.logger.Warn("group failed",
				slog.Int("group_start", start),
				slog.Int("group_size", len(group)),
				slog.String("error", opErr.Error()),
			)

			continue
		}

		if err := scope.Commit(); err != nil {
			errCount += len(group)
			e.logger.Warn("group commit failed",
				slog.Int("group_start", start),
				slog.String("error", err.Error()),
			)

			continue
		}

		elapsed := time.Since(begin)
		perOpUs := float64(elapsed.Nanoseconds()) / float64(len(group)) / 1e3

		samples = append(samples, perOpUs)
	}

	return samples, errCount
}

// RunSingleton executes every op in its own scope and measures its true,
// unamortized latency. This mode exists for warming the backend before a
// real trial; its measurements are never reported as benchmark results.
func (e *BatchExecutor) RunSingleton(ops []Op) ([]float64, int) {
	samples := make([]float64, 0, len(ops))
	errCount := 0

	for i, op := range ops {
		begin := time.Now()

		scope, err := e.be.Begin()
		if err != nil {
			errCount++

			continue
		}

		if err := op(scope); err != nil {
			if rbErr := scope.Rollback(); rbErr != nil {
				e.logger.Warn("rollback failed",
					slog.String("error", rbErr.Error()),
				)
			}

			errCount++
			e.logger.Warn("singleton op failed",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)

			continue
		}

		if err := scope.Commit(); err != nil {
			errCount++

			continue
		}

		samples = append(samples, float64(time.Since(begin).Nanoseconds())/1e3)
	}

	return samples, errCount
}

package bench

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/graphoor/backend"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func countOps(n int) []Op {
	ops := make([]Op, n)
	for i := range ops {
		ops[i] = func(s backend.Scope) error {
			_, err := s.CreateVertex()

			return err
		}
	}

	return ops
}

func TestBatchRunGroupPartitioning(t *testing.T) {
	be := newMemBackend(t)
	require.NoError(t, be.Open())

	exec := NewBatchExecutor(be, testLogger())

	// 10 ops in groups of 3: 3+3+3+1, one sample per group.
	samples, errCount := exec.Run(countOps(10), 3)

	assert.Len(t, samples, 4)
	assert.Zero(t, errCount)
	assert.Equal(t, []int{3, 3, 3, 1}, be.commitSizes)

	nodes, _, err := be.Counts()
	require.NoError(t, err)
	assert.Equal(t, 10, nodes)
}

func TestBatchRunFailingGroupContinues(t *testing.T) {
	be := newMemBackend(t)
	require.NoError(t, be.Open())

	boom := errors.New("boom")

	ops := countOps(9)
	// Poison the first op of the second group: the whole group is charged
	// to the error count and the third group still runs.
	ops[3] = func(backend.Scope) error { return boom }

	exec := NewBatchExecutor(be, testLogger())
	samples, errCount := exec.Run(ops, 3)

	assert.Len(t, samples, 2)
	assert.Equal(t, 3, errCount)
	assert.Equal(t, []int{3, 3}, be.commitSizes)

	nodes, _, err := be.Counts()
	require.NoError(t, err)
	assert.Equal(t, 6, nodes)
}

func TestBatchRunBeginFailure(t *testing.T) {
	be := newMemBackend(t)
	require.NoError(t, be.Open())

	be.beginErr = errors.New("no scope for you")

	exec := NewBatchExecutor(be, testLogger())
	samples, errCount := exec.Run(countOps(5), 2)

	assert.Empty(t, samples)
	assert.Equal(t, 5, errCount)
}

func TestBatchRunEmptyOps(t *testing.T) {
	be := newMemBackend(t)
	require.NoError(t, be.Open())

	exec := NewBatchExecutor(be, testLogger())
	samples, errCount := exec.Run(nil, 10)

	assert.Empty(t, samples)
	assert.Zero(t, errCount)
}

func TestBatchRunAmortizedSamples(t *testing.T) {
	be := newMemBackend(t)
	require.NoError(t, be.Open())

	exec := NewBatchExecutor(be, testLogger())
	samples, _ := exec.Run(countOps(100), 50)

	require.Len(t, samples, 2)

	for _, s := range samples {
		assert.Greater(t, s, 0.0)
	}
}

func TestRunSingletonOwnScopes(t *testing.T) {
	be := newMemBackend(t)
	require.NoError(t, be.Open())

	exec := NewBatchExecutor(be, testLogger())
	samples, errCount := exec.RunSingleton(countOps(4))

	assert.Len(t, samples, 4)
	assert.Zero(t, errCount)
	assert.Equal(t, []int{1, 1, 1, 1}, be.commitSizes)
}

func TestRunSingletonCountsFailures(t *testing.T) {
	be := newMemBackend(t)
	require.NoError(t, be.Open())

	ops := countOps(3)
	ops[1] = func(backend.Scope) error { return errors.New("bad op") }

	exec := NewBatchExecutor(be, testLogger())
	samples, errCount := exec.RunSingleton(ops)

	assert.Len(t, samples, 2)
	assert.Equal(t, 1, errCount)
}

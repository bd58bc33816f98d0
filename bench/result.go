// Package bench implements the benchmark execution engine: task dispatch,
// parameter resolution, transactional batch execution with latency sampling,
// concurrent throughput measurement, and result aggregation.
package bench

import (
	"os"
	"path/filepath"
	"time"
)

// Status classifies the outcome of a task or trial.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Throughput holds the aggregate result of one concurrent trial.
type Throughput struct {
	Workers        int     `json:"workers"`
	Ops            int     `json:"ops"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	OpsPerSecond   float64 `json:"ops_per_second"`
}

// BatchResult is the outcome of one batch-size trial.
type BatchResult struct {
	BatchSize        int         `json:"batch_size"`
	LatencyUs        float64     `json:"latency_us"`
	Latency          *Stats      `json:"latency,omitempty"`
	Throughput       *Throughput `json:"throughput,omitempty"`
	OriginalOpsCount int         `json:"original_ops_count"`
	ValidOpsCount    int         `json:"valid_ops_count"`
	FilteredOpsCount int         `json:"filtered_ops_count"`
	ErrorCount       int         `json:"error_count"`
	Status           Status      `json:"status"`
}

// TaskResult is the outcome of one task across all its trials.
type TaskResult struct {
	TaskType        string        `json:"task_type"`
	OpsCount        int           `json:"ops_count"`
	Status          Status        `json:"status"`
	DurationSeconds float64       `json:"duration_seconds"`
	Error           string        `json:"error,omitempty"`
	NodesLoaded     int           `json:"nodes_loaded,omitempty"`
	EdgesLoaded     int           `json:"edges_loaded,omitempty"`
	BatchResults    []BatchResult `json:"batch_results,omitempty"`
}

// Metadata describes the run context of a benchmark result. BaselineNodes
// and BaselineEdges are the graph counts captured with the baseline
// snapshot; every trial starts from that state.
type Metadata struct {
	RunID         string    `json:"run_id"`
	Backend       string    `json:"backend"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	TotalTasks    int       `json:"total_tasks"`
	BaselineNodes int       `json:"baseline_nodes,omitempty"`
	BaselineEdges int       `json:"baseline_edges,omitempty"`
	DBSizeBytes   uint64    `json:"db_size_bytes,omitempty"`
}

// Result is the final output of one benchmark run. A fatally truncated run
// still carries one entry per attempted task, including the failing one.
type Result struct {
	Metadata Metadata     `json:"metadata"`
	Results  []TaskResult `json:"results"`
}

// dirSize measures the on-disk footprint of the backend state directory.
func dirSize(path string) (uint64, error) {
	var size uint64

	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += uint64(info.Size())
		}

		return nil
	})

	return size, err
}

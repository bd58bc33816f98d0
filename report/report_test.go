package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/graphoor/bench"
)

func sampleResult() *bench.Result {
	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	return &bench.Result{
		Metadata: bench.Metadata{
			RunID:         "run-1234",
			Backend:       "sqlite",
			StartedAt:     started,
			FinishedAt:    started.Add(42 * time.Second),
			TotalTasks:    3,
			BaselineNodes: 10000,
			BaselineEdges: 30000,
			DBSizeBytes:   5 * 1024 * 1024,
		},
		Results: []bench.TaskResult{
			{
				TaskType:        "load_graph",
				Status:          bench.StatusSuccess,
				DurationSeconds: 3.2,
				NodesLoaded:     10000,
				EdgesLoaded:     30000,
			},
			{
				TaskType:        "add_vertices",
				OpsCount:        500,
				Status:          bench.StatusSuccess,
				DurationSeconds: 12.8,
				BatchResults: []bench.BatchResult{
					{
						BatchSize:        1,
						LatencyUs:        120.5,
						Latency:          &bench.Stats{Count: 500, MedianUs: 110, P95Us: 300, MaxUs: 900},
						OriginalOpsCount: 500,
						ValidOpsCount:    500,
						Status:           bench.StatusSuccess,
					},
					{
						BatchSize:        100,
						LatencyUs:        8.3,
						Latency:          &bench.Stats{Count: 5, MedianUs: 8, P95Us: 9, MaxUs: 10},
						OriginalOpsCount: 500,
						ValidOpsCount:    500,
						Status:           bench.StatusSuccess,
					},
				},
			},
			{
				TaskType:        "add_edges",
				OpsCount:        400,
				Status:          bench.StatusSuccess,
				DurationSeconds: 2.1,
				BatchResults: []bench.BatchResult{
					{
						BatchSize: 1,
						Throughput: &bench.Throughput{
							Workers:        4,
							Ops:            400,
							ElapsedSeconds: 1.6,
							OpsPerSecond:   250,
						},
						OriginalOpsCount: 400,
						ValidOpsCount:    398,
						FilteredOpsCount: 2,
						Status:           bench.StatusSuccess,
					},
				},
			},
		},
	}
}

func TestGenerateMarkdown(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, Generate(&buf, sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "## Benchmark Results")
	assert.Contains(t, out, "run-1234")
	assert.Contains(t, out, "sqlite")
	assert.Contains(t, out, "5 MB")
	assert.Contains(t, out, "Baseline graph: 10000 vertices, 30000 edges")

	// One summary row per task.
	assert.Contains(t, out, "| load_graph | success |")
	assert.Contains(t, out, "| add_vertices | success |")

	// Latency detail table.
	assert.Contains(t, out, "### add_vertices")
	assert.Contains(t, out, "120.5µs")

	// Throughput detail table.
	assert.Contains(t, out, "### add_edges")
	assert.Contains(t, out, "250.0")
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer

	assert.Error(t, Generate(&buf, nil))
	assert.Error(t, Generate(&buf, &bench.Result{}))
}

func TestGenerateJSONRoundtrip(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, GenerateJSON(&buf, sampleResult()))

	var decoded bench.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "run-1234", decoded.Metadata.RunID)
	require.Len(t, decoded.Results, 3)
	require.Len(t, decoded.Results[1].BatchResults, 2)
	assert.Equal(t, 100, decoded.Results[1].BatchResults[1].BatchSize)
	require.NotNil(t, decoded.Results[2].BatchResults[0].Throughput)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", formatUs(0))
	assert.Equal(t, "500.0µs", formatUs(500))
	assert.Equal(t, "1.50ms", formatUs(1500))

	assert.Equal(t, "250ms", formatSeconds(0.25))
	assert.Equal(t, "2.50s", formatSeconds(2.5))

	assert.Equal(t, "-", formatBytes(0))
	assert.Equal(t, "1 KB", formatBytes(1024))
	assert.True(t, strings.HasSuffix(formatBytes(1536), "KB"))
}

// Package report formats benchmark results into tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/weiihann/graphoor/bench"
)

// Generate writes a markdown rendering of a benchmark result.
func Generate(w io.Writer, result *bench.Result) error {
	if result == nil || len(result.Results) == 0 {
		return fmt.Errorf("no results to report")
	}

	meta := result.Metadata

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run `%s` on backend **%s**", meta.RunID, meta.Backend)

	if !meta.FinishedAt.IsZero() {
		fmt.Fprintf(w, " (%s)", meta.FinishedAt.Sub(meta.StartedAt).Round(time.Millisecond))
	}

	fmt.Fprintln(w)

	if meta.BaselineNodes > 0 || meta.BaselineEdges > 0 {
		fmt.Fprintf(w, "Baseline graph: %d vertices, %d edges\n",
			meta.BaselineNodes, meta.BaselineEdges)
	}

	if meta.DBSizeBytes > 0 {
		fmt.Fprintf(w, "Final DB size: %s\n", formatBytes(meta.DBSizeBytes))
	}

	fmt.Fprintln(w)

	// Task summary table.
	fmt.Fprintln(w, "| Task | Status | Duration | Ops |")
	fmt.Fprintln(w, "|------|--------|----------|-----|")

	for _, tr := range result.Results {
		fmt.Fprintf(w, "| %s | %s | %s | %d |\n",
			tr.TaskType,
			tr.Status,
			formatSeconds(tr.DurationSeconds),
			tr.OpsCount,
		)
	}

	fmt.Fprintln(w)

	for _, tr := range result.Results {
		if len(tr.BatchResults) == 0 {
			continue
		}

		fmt.Fprintf(w, "### %s\n\n", tr.TaskType)

		if tr.BatchResults[0].Throughput != nil {
			writeThroughputTable(w, tr.BatchResults)
		} else {
			writeLatencyTable(w, tr.BatchResults)
		}

		fmt.Fprintln(w)
	}

	return nil
}

func writeLatencyTable(w io.Writer, batches []bench.BatchResult) {
	fmt.Fprintln(w, "| Batch | Latency/op | Median | P95 | Max "+
		"| Valid | Filtered | Errors | Status |")
	fmt.Fprintln(w, "|-------|------------|--------|-----|-----"+
		"|-------|----------|--------|--------|")

	for _, br := range batches {
		median, p95, max := "-", "-", "-"

		if br.Latency != nil {
			median = formatUs(br.Latency.MedianUs)
			p95 = formatUs(br.Latency.P95Us)
			max = formatUs(br.Latency.MaxUs)
		}

		fmt.Fprintf(w, "| %d | %s | %s | %s | %s | %d | %d | %d | %s |\n",
			br.BatchSize,
			formatUs(br.LatencyUs),
			median,
			p95,
			max,
			br.ValidOpsCount,
			br.FilteredOpsCount,
			br.ErrorCount,
			br.Status,
		)
	}
}

func writeThroughputTable(w io.Writer, batches []bench.BatchResult) {
	fmt.Fprintln(w, "| Workers | Ops | Elapsed | Ops/s "+
		"| Valid | Filtered | Errors | Status |")
	fmt.Fprintln(w, "|---------|-----|---------|-------"+
		"|-------|----------|--------|--------|")

	for _, br := range batches {
		tp := br.Throughput
		if tp == nil {
			continue
		}

		fmt.Fprintf(w, "| %d | %d | %s | %.1f | %d | %d | %d | %s |\n",
			tp.Workers,
			tp.Ops,
			formatSeconds(tp.ElapsedSeconds),
			tp.OpsPerSecond,
			br.ValidOpsCount,
			br.FilteredOpsCount,
			br.ErrorCount,
			br.Status,
		)
	}
}

// GenerateJSON writes the result as JSON to w.
func GenerateJSON(w io.Writer, result *bench.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func formatUs(us float64) string {
	if us <= 0 {
		return "-"
	}

	if us < 1000 {
		return fmt.Sprintf("%.1fµs", us)
	}

	return fmt.Sprintf("%.2fms", us/1000)
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%dms", int64(s*1000))
	}

	return fmt.Sprintf("%.2fs", s)
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}

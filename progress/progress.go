// Package progress delivers best-effort lifecycle events to an external
// collector over HTTP. Delivery is fire-and-forget: failures are logged,
// never retried, and never surface to the run.
package progress

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Kind names matching the collector protocol.
const (
	EventTaskStart        = "task_start"
	EventTaskComplete     = "task_complete"
	EventRestoreStart     = "restore_start"
	EventRestoreComplete  = "restore_complete"
	EventSubtaskStart     = "subtask_start"
	EventSubtaskComplete  = "subtask_complete"
	EventSnapshotStart    = "snapshot_start"
	EventSnapshotComplete = "snapshot_complete"
)

// Event is one lifecycle message.
type Event struct {
	Event            string  `json:"event"`
	TaskName         string  `json:"task_name"`
	TaskIndex        int     `json:"task_index"`
	TotalTasks       int     `json:"total_tasks"`
	Status           string  `json:"status,omitempty"`
	DurationSeconds  float64 `json:"duration_seconds,omitempty"`
	BatchSize        int     `json:"batch_size,omitempty"`
	OriginalOpsCount *int    `json:"original_ops_count,omitempty"`
	ValidOpsCount    *int    `json:"valid_ops_count,omitempty"`
	FilteredOpsCount *int    `json:"filtered_ops_count,omitempty"`
}

// Reporter posts events to one endpoint. A nil Reporter is valid and emits
// nothing, which is how a run without a collector is configured.
type Reporter struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewReporter creates a Reporter for endpoint. timeout bounds the whole
// connect/send/read cycle of each delivery; zero means one second.
func NewReporter(endpoint string, timeout time.Duration, logger *slog.Logger) *Reporter {
	if timeout <= 0 {
		timeout = time.Second
	}

	return &Reporter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With(slog.String("component", "progress")),
	}
}

// Emit attempts one delivery of ev. It blocks at most the configured
// timeout and never returns an error; an undeliverable event is logged and
// dropped.
func (r *Reporter) Emit(ev Event) {
	if r == nil {
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("encode event failed",
			slog.String("event", ev.Event),
			slog.String("error", err.Error()),
		)

		return
	}

	resp, err := r.client.Post(
		r.endpoint, "application/json", bytes.NewReader(body),
	)
	if err != nil {
		r.logger.Warn("event delivery failed",
			slog.String("event", ev.Event),
			slog.String("error", err.Error()),
		)

		return
	}

	resp.Body.Close()

	if resp.StatusCode >= 300 {
		r.logger.Warn("collector rejected event",
			slog.String("event", ev.Event),
			slog.String("status", fmt.Sprintf("%d", resp.StatusCode)),
		)
	}
}

package progress

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestEmitDelivers(t *testing.T) {
	received := make(chan Event, 1)

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var ev Event
			require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
			received <- ev
			w.WriteHeader(http.StatusNoContent)
		},
	))
	defer srv.Close()

	r := NewReporter(srv.URL, time.Second, testLogger())

	three := 3
	r.Emit(Event{
		Event:         EventSubtaskStart,
		TaskName:      "add_vertices",
		TaskIndex:     1,
		TotalTasks:    4,
		BatchSize:     10,
		ValidOpsCount: &three,
	})

	select {
	case ev := <-received:
		assert.Equal(t, EventSubtaskStart, ev.Event)
		assert.Equal(t, "add_vertices", ev.TaskName)
		assert.Equal(t, 1, ev.TaskIndex)
		assert.Equal(t, 10, ev.BatchSize)
		require.NotNil(t, ev.ValidOpsCount)
		assert.Equal(t, 3, *ev.ValidOpsCount)
	case <-time.After(time.Second):
		t.Fatal("event never arrived")
	}
}

func TestEmitUnreachableSinkNeverErrors(t *testing.T) {
	// Nothing listens here; delivery must fail quietly and quickly.
	r := NewReporter(
		"http://127.0.0.1:1/events", 200*time.Millisecond, testLogger(),
	)

	start := time.Now()
	r.Emit(Event{Event: EventTaskStart, TaskName: "load_graph"})

	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEmitBoundedBySlowSink(t *testing.T) {
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			<-release
		},
	))
	defer srv.Close()
	defer close(release)

	r := NewReporter(srv.URL, 100*time.Millisecond, testLogger())

	start := time.Now()
	r.Emit(Event{Event: EventTaskStart})

	assert.Less(t, time.Since(start), time.Second,
		"emit must give up at the configured timeout")
}

func TestNilReporterIsSafe(t *testing.T) {
	var r *Reporter

	assert.NotPanics(t, func() {
		r.Emit(Event{Event: EventTaskComplete})
	})
}

func TestEventOmitsUnsetCounters(t *testing.T) {
	raw, err := json.Marshal(Event{Event: EventTaskStart, TaskName: "x"})
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "original_ops_count")
	assert.NotContains(t, string(raw), "duration_seconds")
}

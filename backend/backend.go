// Package backend defines the capability interface a graph store must expose
// to be driven by the benchmark engine, along with the registry used to
// construct concrete adapters by name.
package backend

import (
	"context"
	"errors"
)

// Handle is the backend-specific identifier a stored entity is addressed by.
// The engine only stores handles and passes them back to the backend that
// issued them; it never inspects their representation.
type Handle any

// HandlePair addresses one edge by its two resolved endpoints.
type HandlePair struct {
	From Handle
	To   Handle
}

// Direction selects which edges a neighbor read traverses.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// LoadStats summarizes a completed bulk load.
type LoadStats struct {
	Nodes int
	Edges int
}

var (
	// ErrNotOpen is returned by operations that require an open backend.
	ErrNotOpen = errors.New("backend is not open")

	// ErrAlreadyOpen is returned by Open on an already-open backend.
	ErrAlreadyOpen = errors.New("backend is already open")
)

// Scope is one transactional unit of work. All mutations performed through a
// Scope become visible only on Commit; Rollback discards them where the
// underlying store supports it.
type Scope interface {
	// CreateVertex inserts one new anonymous vertex and returns its handle.
	CreateVertex() (Handle, error)

	// DeleteVertex removes the vertex addressed by h and its incident edges.
	DeleteVertex(h Handle) error

	// CreateEdge inserts one labeled edge between two resolved vertices.
	CreateEdge(label string, from, to Handle) error

	// DeleteEdge removes one labeled edge between two resolved vertices.
	DeleteEdge(label string, from, to Handle) error

	// ReadNeighbors returns the number of vertices adjacent to h in the
	// given direction.
	ReadNeighbors(dir Direction, h Handle) (int, error)

	// SetVertexProperty writes one key/value property on a vertex.
	SetVertexProperty(h Handle, key, value string) error

	// CountVertices returns the number of vertices whose property key
	// equals value.
	CountVertices(key, value string) (int, error)

	Commit() error
	Rollback() error
}

// Backend is the full capability surface the engine consumes. Exactly one
// implementation exists per underlying store. A Backend owns its persisted
// state location and must tolerate being closed, copied on disk, and
// reopened between trials.
type Backend interface {
	// Name identifies the adapter (the registry key it was built from).
	Name() string

	Open() error
	Close() error

	// BulkLoad populates an empty store from the dataset at sourcePath.
	BulkLoad(ctx context.Context, sourcePath string) (LoadStats, error)

	// Resolve maps an externally-meaningful origin identifier to the
	// backend's handle for that vertex. The second return is false when the
	// origin is unknown; the engine drops such references silently.
	Resolve(origin string) (Handle, bool)

	// Begin opens a new transactional scope.
	Begin() (Scope, error)

	// Counts reports the current number of vertices and edges. Recorded as
	// run metadata after the baseline snapshot, never for measurement.
	Counts() (nodes, edges int, err error)

	// DataDir is the persisted-state location the snapshot manager copies.
	DataDir() string

	// SnapshotDir is where the single live snapshot for this backend lives.
	SnapshotDir() string

	// ErrorCount reports backend-internal errors accumulated since the last
	// ResetErrorCount. These are folded into trial error counters.
	ErrorCount() int
	ResetErrorCount()
}

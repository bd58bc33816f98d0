package bench

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/weiihann/graphoor/backend"
)

// memBackend is an in-memory graph store whose state round-trips through a
// JSON file on Close/Open, so the snapshot manager's copy semantics work
// against it unchanged.
type memBackend struct {
	dataDir string
	snapDir string

	mu    sync.Mutex
	open  bool
	state *memState

	beginErr error

	// commitSizes records the op count of every committed scope.
	commitSizes []int
	opsApplied  int64

	errCount atomic.Int64
}

type memEdge struct {
	Label string `json:"label"`
	From  int64  `json:"from"`
	To    int64  `json:"to"`
}

type memState struct {
	NextID   int64             `json:"next_id"`
	Vertices map[string]int64  `json:"vertices"`
	Edges    []memEdge         `json:"edges"`
	Props    map[string]string `json:"props"`
}

func newMemState() *memState {
	return &memState{
		NextID:   1,
		Vertices: make(map[string]int64),
		Props:    make(map[string]string),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		NextID:   s.NextID,
		Vertices: make(map[string]int64, len(s.Vertices)),
		Edges:    append([]memEdge(nil), s.Edges...),
		Props:    make(map[string]string, len(s.Props)),
	}

	for k, v := range s.Vertices {
		c.Vertices[k] = v
	}

	for k, v := range s.Props {
		c.Props[k] = v
	}

	return c
}

func newMemBackend(t *testing.T) *memBackend {
	t.Helper()

	base := t.TempDir()

	return &memBackend{
		dataDir: filepath.Join(base, "data"),
		snapDir: filepath.Join(base, "snapshot"),
	}
}

func (b *memBackend) stateFile() string {
	return filepath.Join(b.dataDir, "state.json")
}

func (b *memBackend) Name() string { return "mem" }

func (b *memBackend) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return backend.ErrAlreadyOpen
	}

	if err := os.MkdirAll(b.dataDir, 0o755); err != nil {
		return err
	}

	raw, err := os.ReadFile(b.stateFile())

	switch {
	case os.IsNotExist(err):
		b.state = newMemState()
	case err != nil:
		return err
	default:
		st := newMemState()
		if err := json.Unmarshal(raw, st); err != nil {
			return err
		}

		b.state = st
	}

	b.open = true

	return nil
}

func (b *memBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return backend.ErrNotOpen
	}

	raw, err := json.Marshal(b.state)
	if err != nil {
		return err
	}

	if err := os.WriteFile(b.stateFile(), raw, 0o644); err != nil {
		return err
	}

	b.open = false

	return nil
}

func (b *memBackend) BulkLoad(
	_ context.Context, sourcePath string,
) (backend.LoadStats, error) {
	var stats backend.LoadStats

	f, err := os.Open(sourcePath)
	if err != nil {
		return stats, err
	}
	defer f.Close()

	b.mu.Lock()
	defer b.mu.Unlock()

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		var rec struct {
			Kind   string `json:"kind"`
			Origin string `json:"origin"`
			Label  string `json:"label"`
			From   string `json:"from"`
			To     string `json:"to"`
		}

		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return stats, err
		}

		switch rec.Kind {
		case "vertex":
			b.state.Vertices[rec.Origin] = b.state.NextID
			b.state.NextID++
			stats.Nodes++
		case "edge":
			from, okF := b.state.Vertices[rec.From]
			to, okT := b.state.Vertices[rec.To]

			if !okF || !okT {
				return stats, fmt.Errorf("edge references unknown vertex")
			}

			b.state.Edges = append(b.state.Edges, memEdge{
				Label: rec.Label, From: from, To: to,
			})
			stats.Edges++
		default:
			return stats, fmt.Errorf("unknown kind %q", rec.Kind)
		}
	}

	return stats, scanner.Err()
}

func (b *memBackend) Resolve(origin string) (backend.Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.state.Vertices[origin]
	if !ok {
		return nil, false
	}

	return id, true
}

func (b *memBackend) Begin() (backend.Scope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.beginErr != nil {
		return nil, b.beginErr
	}

	if !b.open {
		return nil, backend.ErrNotOpen
	}

	return &memScope{be: b, next: b.state.clone()}, nil
}

func (b *memBackend) Counts() (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return 0, 0, backend.ErrNotOpen
	}

	return len(b.state.Vertices), len(b.state.Edges), nil
}

func (b *memBackend) DataDir() string { return b.dataDir }

func (b *memBackend) SnapshotDir() string { return b.snapDir }

func (b *memBackend) ErrorCount() int { return int(b.errCount.Load()) }

func (b *memBackend) ResetErrorCount() { b.errCount.Store(0) }

type memScope struct {
	be   *memBackend
	next *memState
	n    int
}

func (s *memScope) CreateVertex() (backend.Handle, error) {
	id := s.next.NextID
	s.next.NextID++
	s.next.Vertices[fmt.Sprintf("_anon%d", id)] = id
	s.n++

	return id, nil
}

func (s *memScope) DeleteVertex(h backend.Handle) error {
	id := h.(int64)

	for origin, v := range s.next.Vertices {
		if v == id {
			delete(s.next.Vertices, origin)

			kept := s.next.Edges[:0]
			for _, e := range s.next.Edges {
				if e.From != id && e.To != id {
					kept = append(kept, e)
				}
			}

			s.next.Edges = kept
			s.n++

			return nil
		}
	}

	return fmt.Errorf("no vertex with id %d", id)
}

func (s *memScope) CreateEdge(label string, from, to backend.Handle) error {
	s.next.Edges = append(s.next.Edges, memEdge{
		Label: label, From: from.(int64), To: to.(int64),
	})
	s.n++

	return nil
}

func (s *memScope) DeleteEdge(label string, from, to backend.Handle) error {
	f, t := from.(int64), to.(int64)

	for i, e := range s.next.Edges {
		if e.Label == label && e.From == f && e.To == t {
			s.next.Edges = append(s.next.Edges[:i], s.next.Edges[i+1:]...)
			s.n++

			return nil
		}
	}

	return fmt.Errorf("no such edge")
}

func (s *memScope) ReadNeighbors(
	dir backend.Direction, h backend.Handle,
) (int, error) {
	id := h.(int64)
	n := 0

	for _, e := range s.next.Edges {
		switch dir {
		case backend.DirectionOut:
			if e.From == id {
				n++
			}
		case backend.DirectionIn:
			if e.To == id {
				n++
			}
		case backend.DirectionBoth:
			if e.From == id || e.To == id {
				n++
			}
		}
	}

	s.n++

	return n, nil
}

func (s *memScope) SetVertexProperty(h backend.Handle, key, value string) error {
	s.next.Props[fmt.Sprintf("%d/%s", h.(int64), key)] = value
	s.n++

	return nil
}

func (s *memScope) CountVertices(key, value string) (int, error) {
	n := 0

	for k, v := range s.next.Props {
		if v == value && len(k) > len(key) && k[len(k)-len(key):] == key {
			n++
		}
	}

	s.n++

	return n, nil
}

func (s *memScope) Commit() error {
	s.be.mu.Lock()
	defer s.be.mu.Unlock()

	s.be.state = s.next
	s.be.commitSizes = append(s.be.commitSizes, s.n)
	s.be.opsApplied += int64(s.n)

	return nil
}

func (s *memScope) Rollback() error {
	s.next = nil

	return nil
}

// Package sqlitegraph implements the backend capability interface on top of
// an embedded SQLite database. It is the reference adapter: fully persistent,
// transactional, and with an on-disk state directory that the snapshot
// manager can copy wholesale.
package sqlitegraph

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/weiihann/graphoor/backend"
)

const dbFileName = "graph.db"

const schema = `
CREATE TABLE IF NOT EXISTS vertices (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	origin TEXT UNIQUE
);
CREATE TABLE IF NOT EXISTS edges (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT NOT NULL,
	src   INTEGER NOT NULL,
	dst   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst);
CREATE TABLE IF NOT EXISTS properties (
	vertex INTEGER NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (vertex, key)
);
`

func init() {
	backend.Register("sqlite", func(cfg backend.Config) (backend.Backend, error) {
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite backend requires a data dir")
		}

		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}

		return &Store{
			dataDir:     cfg.DataDir,
			snapshotDir: cfg.SnapshotDir,
			logger:      logger.With(slog.String("backend", "sqlite")),
		}, nil
	})
}

// Store is a SQLite-backed graph store. Handles issued by a Store are the
// int64 rowids of the vertices table.
type Store struct {
	dataDir     string
	snapshotDir string
	logger      *slog.Logger

	db      *sql.DB
	errorCt atomic.Int64
}

var _ backend.Backend = (*Store)(nil)

func (s *Store) Name() string { return "sqlite" }

// Open creates the data directory if needed, opens the database file, and
// applies the schema. A single underlying connection is used so that
// concurrent worker transactions queue instead of failing with SQLITE_BUSY.
func (s *Store) Open() error {
	if s.db != nil {
		return backend.ErrAlreadyOpen
	}

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", s.dataDir, err)
	}

	dbPath := filepath.Join(s.dataDir, dbFileName)

	db, err := sql.Open(
		"sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=10000",
	)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return fmt.Errorf("apply schema: %w", err)
	}

	s.db = db

	return nil
}

// Close checkpoints and closes the database. WAL sidecar files are folded
// back into the main file on close, so the data directory is safe to copy
// afterwards.
func (s *Store) Close() error {
	if s.db == nil {
		return backend.ErrNotOpen
	}

	db := s.db
	s.db = nil

	if err := db.Close(); err != nil {
		return fmt.Errorf("close sqlite db: %w", err)
	}

	return nil
}

func (s *Store) Resolve(origin string) (backend.Handle, bool) {
	if s.db == nil {
		s.errorCt.Add(1)

		return nil, false
	}

	var id int64

	err := s.db.QueryRow(
		"SELECT id FROM vertices WHERE origin = ?", origin,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, false
	}

	if err != nil {
		s.errorCt.Add(1)
		s.logger.Warn("resolve failed",
			slog.String("origin", origin),
			slog.String("error", err.Error()),
		)

		return nil, false
	}

	return id, true
}

func (s *Store) Begin() (backend.Scope, error) {
	if s.db == nil {
		return nil, backend.ErrNotOpen
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	return &scope{tx: tx}, nil
}

func (s *Store) Counts() (int, int, error) {
	if s.db == nil {
		return 0, 0, backend.ErrNotOpen
	}

	var nodes, edges int

	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM vertices",
	).Scan(&nodes); err != nil {
		return 0, 0, fmt.Errorf("count vertices: %w", err)
	}

	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM edges",
	).Scan(&edges); err != nil {
		return 0, 0, fmt.Errorf("count edges: %w", err)
	}

	return nodes, edges, nil
}

func (s *Store) DataDir() string { return s.dataDir }

func (s *Store) SnapshotDir() string { return s.snapshotDir }

func (s *Store) ErrorCount() int { return int(s.errorCt.Load()) }

func (s *Store) ResetErrorCount() { s.errorCt.Store(0) }

// scope wraps one SQLite transaction.
type scope struct {
	tx *sql.Tx
}

func (sc *scope) CreateVertex() (backend.Handle, error) {
	res, err := sc.tx.Exec("INSERT INTO vertices (origin) VALUES (NULL)")
	if err != nil {
		return nil, fmt.Errorf("create vertex: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("vertex rowid: %w", err)
	}

	return id, nil
}

func (sc *scope) DeleteVertex(h backend.Handle) error {
	id, err := vertexID(h)
	if err != nil {
		return err
	}

	if _, err := sc.tx.Exec(
		"DELETE FROM edges WHERE src = ? OR dst = ?", id, id,
	); err != nil {
		return fmt.Errorf("delete incident edges: %w", err)
	}

	if _, err := sc.tx.Exec(
		"DELETE FROM properties WHERE vertex = ?", id,
	); err != nil {
		return fmt.Errorf("delete vertex properties: %w", err)
	}

	if _, err := sc.tx.Exec(
		"DELETE FROM vertices WHERE id = ?", id,
	); err != nil {
		return fmt.Errorf("delete vertex: %w", err)
	}

	return nil
}

func (sc *scope) CreateEdge(label string, from, to backend.Handle) error {
	src, err := vertexID(from)
	if err != nil {
		return err
	}

	dst, err := vertexID(to)
	if err != nil {
		return err
	}

	if _, err := sc.tx.Exec(
		"INSERT INTO edges (label, src, dst) VALUES (?, ?, ?)",
		label, src, dst,
	); err != nil {
		return fmt.Errorf("create edge: %w", err)
	}

	return nil
}

func (sc *scope) DeleteEdge(label string, from, to backend.Handle) error {
	src, err := vertexID(from)
	if err != nil {
		return err
	}

	dst, err := vertexID(to)
	if err != nil {
		return err
	}

	if _, err := sc.tx.Exec(
		"DELETE FROM edges WHERE label = ? AND src = ? AND dst = ?",
		label, src, dst,
	); err != nil {
		return fmt.Errorf("delete edge: %w", err)
	}

	return nil
}

func (sc *scope) ReadNeighbors(
	dir backend.Direction, h backend.Handle,
) (int, error) {
	id, err := vertexID(h)
	if err != nil {
		return 0, err
	}

	var query string

	switch dir {
	case backend.DirectionOut:
		query = "SELECT COUNT(*) FROM edges WHERE src = ?"
	case backend.DirectionIn:
		query = "SELECT COUNT(*) FROM edges WHERE dst = ?"
	case backend.DirectionBoth:
		var n int
		err := sc.tx.QueryRow(
			"SELECT COUNT(*) FROM edges WHERE src = ?1 OR dst = ?1", id,
		).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("read neighbors: %w", err)
		}

		return n, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", dir)
	}

	var n int
	if err := sc.tx.QueryRow(query, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("read neighbors: %w", err)
	}

	return n, nil
}

func (sc *scope) SetVertexProperty(h backend.Handle, key, value string) error {
	id, err := vertexID(h)
	if err != nil {
		return err
	}

	if _, err := sc.tx.Exec(
		`INSERT INTO properties (vertex, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (vertex, key) DO UPDATE SET value = excluded.value`,
		id, key, value,
	); err != nil {
		return fmt.Errorf("set property: %w", err)
	}

	return nil
}

func (sc *scope) CountVertices(key, value string) (int, error) {
	var n int

	err := sc.tx.QueryRow(
		"SELECT COUNT(*) FROM properties WHERE key = ? AND value = ?",
		key, value,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count vertices: %w", err)
	}

	return n, nil
}

func (sc *scope) Commit() error {
	if err := sc.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (sc *scope) Rollback() error {
	if err := sc.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	return nil
}

func vertexID(h backend.Handle) (int64, error) {
	id, ok := h.(int64)
	if !ok {
		return 0, fmt.Errorf("foreign handle %T", h)
	}

	return id, nil
}

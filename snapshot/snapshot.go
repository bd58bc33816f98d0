// Package snapshot captures and restores a backend's full persisted state.
// Restoring before every batch-size trial is what makes destructive trials
// of the same task comparable: each one starts from the exact state captured
// immediately after the bulk load.
package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/avast/retry-go"
	"github.com/hashicorp/go-multierror"

	"github.com/weiihann/graphoor/backend"
)

// Strategy selects the capture mechanism. The external contract (quiesce,
// capture or restore, reopen) is identical for both.
type Strategy string

const (
	// StrategyDirCopy mirrors the state directory file by file.
	StrategyDirCopy Strategy = "dircopy"

	// StrategyArchive packs the state directory into a single
	// snappy-compressed tar archive.
	StrategyArchive Strategy = "archive"
)

const reopenAttempts = 3

// Manager owns the single live snapshot of one backend. At most one
// snapshot exists at a time; Snapshot replaces any prior capture entirely.
type Manager struct {
	be       backend.Backend
	strategy Strategy
	logger   *slog.Logger
}

// NewManager creates a Manager for the given backend.
func NewManager(be backend.Backend, strategy Strategy, logger *slog.Logger) (*Manager, error) {
	switch strategy {
	case StrategyDirCopy, StrategyArchive:
	default:
		return nil, fmt.Errorf("unknown snapshot strategy %q", strategy)
	}

	return &Manager{
		be:       be,
		strategy: strategy,
		logger:   logger.With(slog.String("component", "snapshot")),
	}, nil
}

// Snapshot quiesces the backend, captures its state directory into the
// snapshot location, and reopens it. The backend is open on successful
// return; on failure it may be left closed.
func (m *Manager) Snapshot() error {
	dataDir := m.be.DataDir()
	snapDir := m.be.SnapshotDir()

	if _, err := os.Stat(dataDir); err != nil {
		return fmt.Errorf("state dir %s not capturable: %w", dataDir, err)
	}

	if err := m.be.Close(); err != nil {
		return fmt.Errorf("quiesce backend: %w", err)
	}

	begin := time.Now()

	if err := os.RemoveAll(snapDir); err != nil {
		return m.withReopen(fmt.Errorf("clear snapshot dir %s: %w", snapDir, err))
	}

	var err error

	switch m.strategy {
	case StrategyArchive:
		err = archiveDir(dataDir, snapDir)
	default:
		err = copyDir(dataDir, snapDir)
	}

	if err != nil {
		return m.withReopen(fmt.Errorf("capture state: %w", err))
	}

	if err := m.reopen(); err != nil {
		return err
	}

	m.logger.Info("snapshot captured",
		slog.String("strategy", string(m.strategy)),
		slog.Duration("elapsed", time.Since(begin)),
	)

	return nil
}

// Restore quiesces the backend, replaces its state directory with the
// snapshot contents, and reopens it. Fails loudly if no snapshot exists.
func (m *Manager) Restore() error {
	dataDir := m.be.DataDir()
	snapDir := m.be.SnapshotDir()

	if _, err := os.Stat(snapDir); err != nil {
		return fmt.Errorf("no snapshot at %s: %w", snapDir, err)
	}

	if err := m.be.Close(); err != nil {
		return fmt.Errorf("quiesce backend: %w", err)
	}

	begin := time.Now()

	if err := os.RemoveAll(dataDir); err != nil {
		return m.withReopen(fmt.Errorf("clear state dir %s: %w", dataDir, err))
	}

	var err error

	switch m.strategy {
	case StrategyArchive:
		err = unarchiveDir(snapDir, dataDir)
	default:
		err = copyDir(snapDir, dataDir)
	}

	if err != nil {
		return m.withReopen(fmt.Errorf("restore state: %w", err))
	}

	if err := m.reopen(); err != nil {
		return err
	}

	m.logger.Debug("state restored",
		slog.Duration("elapsed", time.Since(begin)),
	)

	return nil
}

// reopen brings the backend back up after a capture or restore, retrying
// transient failures a few times before giving up.
func (m *Manager) reopen() error {
	err := retry.Do(
		m.be.Open,
		retry.Attempts(reopenAttempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("reopen backend: %w", err)
	}

	return nil
}

// withReopen attempts to bring the backend back up after a failed capture
// or restore step, folding a reopen failure into the primary error.
func (m *Manager) withReopen(primary error) error {
	if err := m.reopen(); err != nil {
		return multierror.Append(primary, err)
	}

	return primary
}

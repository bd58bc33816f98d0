package sqlitegraph

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/weiihann/graphoor/backend"
)

// record is one line of the JSONL dataset format.
type record struct {
	Kind   string `json:"kind"`
	Origin string `json:"origin,omitempty"`
	Label  string `json:"label,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
}

// BulkLoad streams the dataset at sourcePath into the store inside a single
// transaction. Vertex records must precede any edge that references them;
// an edge naming an unknown origin fails the load.
func (s *Store) BulkLoad(
	ctx context.Context, sourcePath string,
) (backend.LoadStats, error) {
	var stats backend.LoadStats

	if s.db == nil {
		return stats, backend.ErrNotOpen
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return stats, fmt.Errorf("open dataset %s: %w", sourcePath, err)
	}
	defer f.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin load tx: %w", err)
	}

	insVertex, err := tx.Prepare(
		"INSERT INTO vertices (origin) VALUES (?)",
	)
	if err != nil {
		tx.Rollback()

		return stats, fmt.Errorf("prepare vertex insert: %w", err)
	}

	insEdge, err := tx.Prepare(
		"INSERT INTO edges (label, src, dst) VALUES (?, ?, ?)",
	)
	if err != nil {
		tx.Rollback()

		return stats, fmt.Errorf("prepare edge insert: %w", err)
	}

	ids := make(map[string]int64)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

	line := 0

	for scanner.Scan() {
		line++

		if err := ctx.Err(); err != nil {
			tx.Rollback()

			return stats, fmt.Errorf("bulk load canceled: %w", err)
		}

		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			tx.Rollback()

			return stats, fmt.Errorf("line %d: decode: %w", line, err)
		}

		switch rec.Kind {
		case "vertex":
			res, err := insVertex.Exec(rec.Origin)
			if err != nil {
				tx.Rollback()

				return stats, fmt.Errorf(
					"line %d: insert vertex %s: %w", line, rec.Origin, err,
				)
			}

			id, err := res.LastInsertId()
			if err != nil {
				tx.Rollback()

				return stats, fmt.Errorf("line %d: vertex rowid: %w", line, err)
			}

			ids[rec.Origin] = id
			stats.Nodes++

		case "edge":
			src, okSrc := ids[rec.From]
			dst, okDst := ids[rec.To]

			if !okSrc || !okDst {
				tx.Rollback()

				return stats, fmt.Errorf(
					"line %d: edge %s -> %s references unknown vertex",
					line, rec.From, rec.To,
				)
			}

			if _, err := insEdge.Exec(rec.Label, src, dst); err != nil {
				tx.Rollback()

				return stats, fmt.Errorf("line %d: insert edge: %w", line, err)
			}

			stats.Edges++

		default:
			tx.Rollback()

			return stats, fmt.Errorf("line %d: unknown kind %q", line, rec.Kind)
		}
	}

	if err := scanner.Err(); err != nil {
		tx.Rollback()

		return stats, fmt.Errorf("read dataset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit load: %w", err)
	}

	s.logger.Info("bulk load complete",
		slog.Int("nodes", stats.Nodes),
		slog.Int("edges", stats.Edges),
	)

	return stats, nil
}

package bench

import (
	"fmt"

	"github.com/weiihann/graphoor/backend"
	"github.com/weiihann/graphoor/task"
)

// operationSet is the trial-scoped, post-resolution form of a task: the
// operations to execute plus the resolution counters. filtered + valid
// always equals original.
type operationSet struct {
	ops      []Op
	original int
	valid    int
}

func (s operationSet) filtered() int { return s.original - s.valid }

// buildOperationSet resolves a task's parameters against the backend and
// materializes its operation list. Count-based tasks need no resolution;
// list-based tasks go through the resolver, which drops stale references.
func buildOperationSet(be backend.Backend, t task.Task) (operationSet, error) {
	switch t.Type {
	case task.TypeAddVertices:
		ops := make([]Op, t.OpsCount)
		for i := range ops {
			ops[i] = func(s backend.Scope) error {
				_, err := s.CreateVertex()

				return err
			}
		}

		return operationSet{ops: ops, original: t.OpsCount, valid: t.OpsCount}, nil

	case task.TypeQueryVertices:
		key, value := t.Parameters.Key, t.Parameters.Value

		ops := make([]Op, t.OpsCount)
		for i := range ops {
			ops[i] = func(s backend.Scope) error {
				_, err := s.CountVertices(key, value)

				return err
			}
		}

		return operationSet{ops: ops, original: t.OpsCount, valid: t.OpsCount}, nil

	case task.TypeRemoveVertices:
		rv := ResolveVertices(be, limitStrings(t.Parameters.Vertices, t.OpsCount))

		ops := make([]Op, len(rv.Handles))
		for i, h := range rv.Handles {
			ops[i] = func(s backend.Scope) error {
				return s.DeleteVertex(h)
			}
		}

		return operationSet{
			ops: ops, original: rv.OriginalCount, valid: rv.ValidCount,
		}, nil

	case task.TypeReadNeighbors:
		dir := backend.Direction(t.Parameters.Direction)
		rv := ResolveVertices(be, limitStrings(t.Parameters.Vertices, t.OpsCount))

		ops := make([]Op, len(rv.Handles))
		for i, h := range rv.Handles {
			ops[i] = func(s backend.Scope) error {
				_, err := s.ReadNeighbors(dir, h)

				return err
			}
		}

		return operationSet{
			ops: ops, original: rv.OriginalCount, valid: rv.ValidCount,
		}, nil

	case task.TypeUpdateProperties:
		key, value := t.Parameters.Key, t.Parameters.Value
		rv := ResolveVertices(be, limitStrings(t.Parameters.Vertices, t.OpsCount))

		ops := make([]Op, len(rv.Handles))
		for i, h := range rv.Handles {
			ops[i] = func(s backend.Scope) error {
				return s.SetVertexProperty(h, key, value)
			}
		}

		return operationSet{
			ops: ops, original: rv.OriginalCount, valid: rv.ValidCount,
		}, nil

	case task.TypeAddEdges, task.TypeRemoveEdges:
		label := t.Parameters.Label
		remove := t.Type == task.TypeRemoveEdges
		re := ResolveEdges(be, limitPairs(t.Parameters.Edges, t.OpsCount))

		ops := make([]Op, len(re.Pairs))
		for i, pair := range re.Pairs {
			ops[i] = func(s backend.Scope) error {
				if remove {
					return s.DeleteEdge(label, pair.From, pair.To)
				}

				return s.CreateEdge(label, pair.From, pair.To)
			}
		}

		return operationSet{
			ops: ops, original: re.OriginalCount, valid: re.ValidCount,
		}, nil

	default:
		return operationSet{}, fmt.Errorf("task type %q has no operation builder", t.Type)
	}
}

// limitStrings truncates a reference list to ops_count when ops_count is
// positive and smaller than the list.
func limitStrings(refs []string, n int) []string {
	if n > 0 && n < len(refs) {
		return refs[:n]
	}

	return refs
}

func limitPairs(pairs [][2]string, n int) [][2]string {
	if n > 0 && n < len(pairs) {
		return pairs[:n]
	}

	return pairs
}

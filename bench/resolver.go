package bench

import (
	"github.com/weiihann/graphoor/backend"
)

// ResolvedVertices is the post-resolution form of a vertex-addressed task's
// parameters. Unresolvable origins are dropped silently, never retried and
// never counted as errors.
type ResolvedVertices struct {
	Handles       []backend.Handle
	OriginalCount int
	ValidCount    int
}

// FilteredCount is the number of origins that did not resolve.
func (r ResolvedVertices) FilteredCount() int {
	return r.OriginalCount - r.ValidCount
}

// ResolvedEdges is the post-resolution form of an edge-addressed task's
// parameters. An edge is kept only when both endpoints resolve.
type ResolvedEdges struct {
	Pairs         []backend.HandlePair
	OriginalCount int
	ValidCount    int
}

// FilteredCount is the number of edges with at least one absent endpoint.
func (r ResolvedEdges) FilteredCount() int {
	return r.OriginalCount - r.ValidCount
}

// ResolveVertices maps origin identifiers to backend handles.
func ResolveVertices(be backend.Backend, origins []string) ResolvedVertices {
	res := ResolvedVertices{
		Handles:       make([]backend.Handle, 0, len(origins)),
		OriginalCount: len(origins),
	}

	for _, origin := range origins {
		h, ok := be.Resolve(origin)
		if !ok {
			continue
		}

		res.Handles = append(res.Handles, h)
		res.ValidCount++
	}

	return res
}

// ResolveEdges maps origin identifier pairs to backend handle pairs.
func ResolveEdges(be backend.Backend, pairs [][2]string) ResolvedEdges {
	res := ResolvedEdges{
		Pairs:         make([]backend.HandlePair, 0, len(pairs)),
		OriginalCount: len(pairs),
	}

	for _, pair := range pairs {
		from, okFrom := be.Resolve(pair[0])
		if !okFrom {
			continue
		}

		to, okTo := be.Resolve(pair[1])
		if !okTo {
			continue
		}

		res.Pairs = append(res.Pairs, backend.HandlePair{From: from, To: to})
		res.ValidCount++
	}

	return res
}

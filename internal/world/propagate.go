package world

import (
	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/homestead/internal/ledger"
)

// dirtyKind says why a parcel is on the worklist.
type dirtyKind uint8

const (
	dirtyLocal     dirtyKind = iota // its own grid changed and it is already swept
	dirtyNeighbors                  // a neighbour's counts changed; it needs a sweep
)

type dirtyParcel struct {
	pos  Pos
	kind dirtyKind
}

// propagate pushes a local-count change at origin out to the neighbour
// counts of the surrounding parcels. When tile adjacency looks at the whole
// neighbourhood, a parcel whose NeighborCounts changed is swept, and its own
// demolitions dirty its neighbours in turn. Each parcel is swept at most
// once per call; one that is dirtied again afterwards is marked stale for
// the next Settle.
func (w *World) propagate(origin Pos, l ledger.Ledger) []Demolition {
	var out []Demolition
	queue := []dirtyParcel{{pos: origin, kind: dirtyLocal}}
	swept := mapset.New[Pos]()
	swept.Put(origin)

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		if d.kind == dirtyNeighbors {
			p := w.Parcels[d.pos]
			if p == nil {
				continue
			}
			demolished := p.Sweep(l, w.Capacity)
			if len(demolished) == 0 {
				continue
			}
			out = append(out, demolished...)
		}

		for _, n := range d.pos.Neighbors() {
			if _, ok := w.Parcels[n]; !ok {
				continue
			}
			if !w.refreshNeighbors(n) || w.Rules.Scope != ScopeNeighborhood {
				continue
			}
			if swept.Has(n) {
				w.stale.Put(n)
				continue
			}
			swept.Put(n)
			queue = append(queue, dirtyParcel{pos: n, kind: dirtyNeighbors})
		}
	}
	return out
}

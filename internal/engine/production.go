package engine

import (
	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/ledger"
	"github.com/talgya/homestead/internal/world"
)

// Production is the result of one production tick.
type Production struct {
	Capacity ledger.Capacity          `json:"capacity"`
	Produced map[catalog.Resource]int `json:"produced"` // gross output, before capacity clamping
}

// ProductionTick runs the two-phase tick over every owned parcel.
//
// Phase 1 totals Storage and CashStorage output (plus the baseline) into a
// Capacity. Phase 2 writes every building's output weighted by its count as
// ledger[r] = min(ledger[r]+amount*count, cap(r)), using the phase 1
// capacity throughout so parcel order cannot matter.
func ProductionTick(w *world.World, l ledger.Ledger) Production {
	caps := w.Capacity()
	produced := make(map[catalog.Resource]int)

	for _, pos := range w.Owned() {
		p := w.Parcel(pos)
		for _, t := range catalog.AllBuildingTypes() {
			n := p.LocalCounts[t]
			if n == 0 {
				continue
			}
			for _, a := range w.Catalog.Output(t) {
				q := a.Qty * n
				produced[a.Resource] += q
				l.Produce(a.Resource, q, caps)
			}
		}
	}

	return Production{Capacity: caps, Produced: produced}
}

// PerSecond converts a tick's gross output to a rate over interval seconds.
func PerSecond(produced map[catalog.Resource]int, seconds float64) map[catalog.Resource]float64 {
	out := make(map[catalog.Resource]float64, len(produced))
	if seconds <= 0 {
		return out
	}
	for r, q := range produced {
		out[r] = float64(q) / seconds
	}
	return out
}

package world

import (
	"fmt"
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/ledger"
)

// World owns every parcel of one settlement.
type World struct {
	Parcels map[Pos]*Parcel
	Catalog *catalog.Catalog
	Rules   Rules

	frontier mapset.Set[Pos]
	stale    mapset.Set[Pos] // re-dirtied after their sweep in the same edit
}

// New creates a world owning a single all-Ground parcel at the origin.
func New(cat *catalog.Catalog, rules Rules) *World {
	w := NewEmpty(cat, rules)
	w.AddParcel(NewParcel(Pos{}, rules))
	return w
}

// NewEmpty creates a world with no parcels, for restoring saved state.
func NewEmpty(cat *catalog.Catalog, rules Rules) *World {
	if cat == nil {
		cat = catalog.Default()
	}
	return &World{
		Parcels:  make(map[Pos]*Parcel),
		Catalog:  cat,
		Rules:    rules,
		frontier: mapset.New[Pos](),
		stale:    mapset.New[Pos](),
	}
}

// Parcel returns the owned parcel at pos, or nil.
func (w *World) Parcel(pos Pos) *Parcel {
	return w.Parcels[pos]
}

// AddParcel inserts p (replacing any parcel at the same position) and
// refreshes the cached counts and frontier around it.
func (w *World) AddParcel(p *Parcel) {
	p.rules = w.Rules
	if p.Planned == nil {
		p.Planned = make(map[Pos]catalog.BuildingType)
	}
	p.recount()
	w.Parcels[p.Position] = p
	for _, n := range p.Position.Adjacent() {
		if _, ok := w.Parcels[n]; ok {
			w.refreshNeighbors(n)
		}
	}
	w.updateFrontier()
}

// Owned returns the owned parcel positions in row-major order.
func (w *World) Owned() []Pos {
	out := make([]Pos, 0, len(w.Parcels))
	for pos := range w.Parcels {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Frontier returns the unowned positions adjacent to an owned parcel, in
// row-major order.
func (w *World) Frontier() []Pos {
	out := make([]Pos, 0, w.frontier.Size())
	w.frontier.Each(func(p Pos) {
		out = append(out, p)
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// InFrontier reports whether pos can be purchased.
func (w *World) InFrontier(pos Pos) bool { return w.frontier.Has(pos) }

// updateFrontier recomputes the union of Adjacent over owned parcels minus
// the owned set.
func (w *World) updateFrontier() {
	next := mapset.New[Pos]()
	for pos := range w.Parcels {
		for _, n := range pos.Adjacent() {
			if _, owned := w.Parcels[n]; !owned {
				next.Put(n)
			}
		}
	}
	w.frontier = next
}

// Purchase buys the frontier parcel at pos, charging PurchaseCost in Tax.
// Unaffordable or non-frontier positions are left alone.
func (w *World) Purchase(pos Pos, l ledger.Ledger) bool {
	if !w.frontier.Has(pos) {
		return false
	}
	if !l.Debit([]catalog.Amount{{Resource: catalog.ResourceTax, Qty: PurchaseCost(pos)}}) {
		return false
	}
	w.AddParcel(NewParcel(pos, w.Rules))
	return true
}

// Capacity totals the Storage and CashStorage output of every building in
// every parcel on top of the baseline storage.
func (w *World) Capacity() ledger.Capacity {
	caps := ledger.Capacity{Storage: w.Rules.BaselineStorage}
	for _, p := range w.Parcels {
		for t, n := range p.LocalCounts {
			for _, a := range w.Catalog.Output(t) {
				caps.Add(a, n)
			}
		}
	}
	return caps
}

// Derive builds the Building for t from the world's catalog.
func (w *World) Derive(t catalog.BuildingType) catalog.Building {
	return w.Catalog.Derive(t)
}

// IsValid previews placing t at cell in the parcel at pos.
func (w *World) IsValid(pos, cell Pos, t catalog.BuildingType) bool {
	p := w.Parcels[pos]
	if p == nil {
		return false
	}
	return p.IsValid(cell, w.Derive(t))
}

// Apply is Edit reduced to whether any grid changed.
func (w *World) Apply(pos, cell Pos, b catalog.Building, l ledger.Ledger) bool {
	return w.Edit(pos, cell, b, l).Changed()
}

// Edit applies b at cell in the parcel at pos, then propagates count changes
// to neighbouring parcels. Demolitions anywhere in the cascade are reported.
func (w *World) Edit(pos, cell Pos, b catalog.Building, l ledger.Ledger) Outcome {
	p := w.Parcels[pos]
	if p == nil {
		return Outcome{Result: ResultNotOwned}
	}
	out := p.Edit(cell, b, l, w.Capacity)
	if !out.Changed() {
		return out
	}
	out.Demolished = append(out.Demolished, w.propagate(pos, l)...)
	return out
}

// Plan records a planned building at cell in the parcel at pos.
func (w *World) Plan(pos, cell Pos, t catalog.BuildingType) bool {
	p := w.Parcels[pos]
	if p == nil {
		return false
	}
	return p.Plan(cell, t)
}

// Built is a planned building that was constructed on retry.
type Built struct {
	Parcel Pos                  `json:"parcel"`
	Cell   Pos                  `json:"cell"`
	Type   catalog.BuildingType `json:"type"`
}

// RetryPlanned attempts every planned marker once. A marker is cleared when
// its cell already holds the planned type; it is built when the cell is
// Ground, the placement is valid and the ledger can pay. Markers over other
// buildings wait, as do markers whose type allow refuses. A nil allow
// accepts every type.
func (w *World) RetryPlanned(l ledger.Ledger, allow func(catalog.BuildingType) bool) ([]Built, []Demolition) {
	var built []Built
	var demolished []Demolition
	for _, pos := range w.Owned() {
		p := w.Parcels[pos]
		for _, c := range p.PlannedCells() {
			t, ok := p.Planned[c]
			if !ok {
				continue
			}
			cur := p.Cell(c)
			if cur.Type == t {
				delete(p.Planned, c)
				continue
			}
			if !cur.IsGround() || (allow != nil && !allow(t)) {
				continue
			}
			out := w.Edit(pos, c, w.Derive(t), l)
			if out.Changed() {
				built = append(built, Built{Parcel: pos, Cell: c, Type: t})
				demolished = append(demolished, out.Demolished...)
			}
		}
	}
	return built, demolished
}

// Settle sweeps parcels left stale by an earlier cascade.
func (w *World) Settle(l ledger.Ledger) []Demolition {
	if w.stale.Size() == 0 {
		return nil
	}
	var pending []Pos
	w.stale.Each(func(p Pos) { pending = append(pending, p) })
	sort.Slice(pending, func(i, j int) bool { return less(pending[i], pending[j]) })
	w.stale = mapset.New[Pos]()

	var out []Demolition
	for _, pos := range pending {
		p := w.Parcels[pos]
		if p == nil {
			continue
		}
		d := p.Sweep(l, w.Capacity)
		if len(d) == 0 {
			continue
		}
		out = append(out, d...)
		out = append(out, w.propagate(pos, l)...)
	}
	return out
}

// Repair sweeps every owned parcel, demolishing buildings whose placement
// rules no longer hold. Used on restored grids, which were never validated
// cell by cell.
func (w *World) Repair(l ledger.Ledger) []Demolition {
	for pos := range w.Parcels {
		w.stale.Put(pos)
	}
	return w.Settle(l)
}

// Rebuild recomputes every cached count and the frontier from the grids.
// Called after restoring saved state.
func (w *World) Rebuild() {
	for _, p := range w.Parcels {
		p.rules = w.Rules
		p.recount()
	}
	for pos := range w.Parcels {
		w.refreshNeighbors(pos)
	}
	w.updateFrontier()
}

// Validate checks the cached-count invariants and returns the first violation.
func (w *World) Validate() error {
	for _, pos := range w.Owned() {
		p := w.Parcels[pos]
		want := make(map[catalog.BuildingType]int)
		for x := range p.Cells {
			for y := range p.Cells[x] {
				want[p.Cells[x][y].Type]++
			}
		}
		for t, n := range want {
			if p.LocalCounts[t] != n {
				return fmt.Errorf("parcel %s: local count of %s is %d, grid has %d", pos, t, p.LocalCounts[t], n)
			}
		}
		outside := w.outsideCounts(pos)
		expected := sumCounts(want, outside)
		for t, n := range expected {
			if p.NeighborCounts[t] != n {
				return fmt.Errorf("parcel %s: neighbor count of %s is %d, want %d", pos, t, p.NeighborCounts[t], n)
			}
		}
	}
	return nil
}

// outsideCounts sums the local counts of the owned orthogonal neighbours of pos.
func (w *World) outsideCounts(pos Pos) map[catalog.BuildingType]int {
	var parts []map[catalog.BuildingType]int
	for _, n := range pos.Neighbors() {
		if q, ok := w.Parcels[n]; ok {
			parts = append(parts, q.LocalCounts)
		}
	}
	return sumCounts(parts...)
}

// refreshNeighbors re-sums the neighbours of pos into its NeighborCounts and
// reports whether the value changed.
func (w *World) refreshNeighbors(pos Pos) bool {
	p := w.Parcels[pos]
	if p == nil {
		return false
	}
	return p.setOutside(w.outsideCounts(pos))
}

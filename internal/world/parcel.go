package world

import (
	"maps"
	"sort"
	"strings"

	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/ledger"
)

// GridSize is the side length of a parcel.
const GridSize = 8

// TileScope selects which counts satisfy a building's tile adjacency.
type TileScope uint8

const (
	ScopeParcel       TileScope = iota // the parcel's own buildings
	ScopeNeighborhood                  // the parcel plus its four neighbours
)

// ParseTileScope maps a config value to a TileScope.
func ParseTileScope(s string) (TileScope, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "parcel":
		return ScopeParcel, true
	case "neighborhood", "neighbourhood":
		return ScopeNeighborhood, true
	}
	return ScopeParcel, false
}

func (s TileScope) String() string {
	if s == ScopeNeighborhood {
		return "neighborhood"
	}
	return "parcel"
}

// Rules are the world-wide knobs every parcel edit follows.
type Rules struct {
	Scope           TileScope
	RefundPercent   int // share of cost returned on demolition
	BaselineStorage int // storage capacity with no buildings at all
}

// DefaultRules returns full refunds, parcel-scoped tile adjacency and a
// baseline storage of 100.
func DefaultRules() Rules {
	return Rules{Scope: ScopeParcel, RefundPercent: 100, BaselineStorage: 100}
}

// Result classifies the outcome of an edit.
type Result uint8

const (
	ResultChanged     Result = iota
	ResultUnchanged          // same type already there
	ResultOutOfBounds        // cell outside the grid
	ResultNotOwned           // parcel not owned
	ResultInvalid            // placement rules failed
	ResultInsufficient       // ledger cannot pay
	ResultLocked             // type belongs to a locked stage; set by callers that gate on stages
)

var resultNames = [...]string{
	ResultChanged:      "changed",
	ResultUnchanged:    "unchanged",
	ResultOutOfBounds:  "out_of_bounds",
	ResultNotOwned:     "not_owned",
	ResultInvalid:      "invalid_placement",
	ResultInsufficient: "insufficient_resources",
	ResultLocked:       "stage_locked",
}

func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "unknown"
}

func (r Result) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Demolition records a building removed by the consistency sweep.
type Demolition struct {
	Parcel Pos                  `json:"parcel"`
	Cell   Pos                  `json:"cell"`
	Type   catalog.BuildingType `json:"type"`
}

// Outcome is the full report of one edit.
type Outcome struct {
	Result     Result       `json:"result"`
	Demolished []Demolition `json:"demolished,omitempty"`
}

// Changed reports whether the grid was modified.
func (o Outcome) Changed() bool { return o.Result == ResultChanged }

// Parcel is one owned 8×8 grid. LocalCounts always equals the number of
// cells holding each type; NeighborCounts is LocalCounts plus the local
// counts of the owned orthogonal neighbour parcels.
type Parcel struct {
	Position       Pos
	Cells          [GridSize][GridSize]catalog.Building
	LocalCounts    map[catalog.BuildingType]int
	NeighborCounts map[catalog.BuildingType]int
	Planned        map[Pos]catalog.BuildingType

	outside map[catalog.BuildingType]int // neighbours only, maintained by World
	rules   Rules
}

// NewParcel returns an all-Ground parcel at pos.
func NewParcel(pos Pos, rules Rules) *Parcel {
	p := &Parcel{
		Position: pos,
		Planned:  make(map[Pos]catalog.BuildingType),
		outside:  make(map[catalog.BuildingType]int),
		rules:    rules,
	}
	ground := catalog.Ground()
	for x := range p.Cells {
		for y := range p.Cells[x] {
			p.Cells[x][y] = ground
		}
	}
	p.recount()
	return p
}

// Cell returns the building at c. Out-of-grid cells read as Ground.
func (p *Parcel) Cell(c Pos) catalog.Building {
	if !c.InGrid() {
		return catalog.Ground()
	}
	return p.Cells[c.X][c.Y]
}

// Set stores b at c without validation or charging, then recounts.
// Used when restoring saved state.
func (p *Parcel) Set(c Pos, b catalog.Building) {
	if !c.InGrid() {
		return
	}
	p.Cells[c.X][c.Y] = b
	p.recount()
}

// Count returns how many cells hold t.
func (p *Parcel) Count(t catalog.BuildingType) int { return p.LocalCounts[t] }

// IsValid reports whether b may stand at c given the current grid. It does
// not mutate anything.
func (p *Parcel) IsValid(c Pos, b catalog.Building) bool {
	if b.IsGround() {
		return true
	}
	if !c.InGrid() {
		return false
	}

	counts := p.LocalCounts
	if p.rules.Scope == ScopeNeighborhood {
		counts = p.NeighborCounts
	}
	for _, t := range b.TileAdj {
		if counts[t] == 0 {
			return false
		}
	}

	var adj [4]catalog.BuildingType
	n := 0
	for _, np := range c.Neighbors() {
		if np.InGrid() {
			adj[n] = p.Cells[np.X][np.Y].Type
			n++
		}
	}
	neighbours := adj[:n]

	for _, req := range b.RequiredAdj {
		found := false
		for _, t := range neighbours {
			if t == req {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, t := range neighbours {
		if !b.Allows(t) {
			return false
		}
	}
	return true
}

// CapacityFunc reports the capacity of the current grid. Refunds call it
// after the demolished cell has been recounted.
type CapacityFunc func() ledger.Capacity

// FixedCapacity returns a CapacityFunc that always reports c.
func FixedCapacity(c ledger.Capacity) CapacityFunc {
	return func() ledger.Capacity { return c }
}

// Apply is Edit reduced to whether the grid changed.
func (p *Parcel) Apply(c Pos, b catalog.Building, l ledger.Ledger, caps CapacityFunc) bool {
	return p.Edit(c, b, l, caps).Changed()
}

// Edit replaces the building at c with b. Ground demolishes and refunds,
// capped by the capacity left once the building is gone; anything else must
// be valid and affordable and is charged all-or-nothing. Every change is
// followed by the consistency sweep.
func (p *Parcel) Edit(c Pos, b catalog.Building, l ledger.Ledger, caps CapacityFunc) Outcome {
	if !c.InGrid() {
		return Outcome{Result: ResultOutOfBounds}
	}
	cur := p.Cells[c.X][c.Y]
	if cur.Type == b.Type {
		delete(p.Planned, c)
		return Outcome{Result: ResultUnchanged}
	}

	if b.IsGround() {
		p.Cells[c.X][c.Y] = b
		p.recount()
		l.Refund(cur.Cost, p.rules.RefundPercent, caps())
		return Outcome{Result: ResultChanged, Demolished: p.Sweep(l, caps)}
	}

	if !p.IsValid(c, b) {
		return Outcome{Result: ResultInvalid}
	}
	if !l.Debit(b.Cost) {
		return Outcome{Result: ResultInsufficient}
	}
	delete(p.Planned, c)
	p.Cells[c.X][c.Y] = b
	p.recount()
	return Outcome{Result: ResultChanged, Demolished: p.Sweep(l, caps)}
}

// Sweep demolishes every building that is no longer valid, refunding its
// cost and recording its type as planned at that cell. Demolitions only ever
// remove buildings, so passes repeat until one removes nothing; that takes
// at most one pass per occupied cell plus one. A second Sweep straight after
// returns nothing.
func (p *Parcel) Sweep(l ledger.Ledger, caps CapacityFunc) []Demolition {
	var out []Demolition
	for {
		removed := 0
		for x := 0; x < GridSize; x++ {
			for y := 0; y < GridSize; y++ {
				c := Pos{X: x, Y: y}
				b := p.Cells[x][y]
				if b.IsGround() || p.IsValid(c, b) {
					continue
				}
				p.Cells[x][y] = catalog.Ground()
				p.Planned[c] = b.Type
				p.recount()
				l.Refund(b.Cost, p.rules.RefundPercent, caps())
				out = append(out, Demolition{Parcel: p.Position, Cell: c, Type: b.Type})
				removed++
			}
		}
		if removed == 0 {
			return out
		}
	}
}

// Plan marks c to be built as t once it becomes possible. Planning Ground
// clears the marker.
func (p *Parcel) Plan(c Pos, t catalog.BuildingType) bool {
	if !c.InGrid() {
		return false
	}
	if t == catalog.BuildingGround {
		delete(p.Planned, c)
		return true
	}
	p.Planned[c] = t
	return true
}

// PlannedCells returns the planned cells in row-major order.
func (p *Parcel) PlannedCells() []Pos {
	out := make([]Pos, 0, len(p.Planned))
	for c := range p.Planned {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// recount rebuilds LocalCounts from the grid and NeighborCounts from it
// plus the cached neighbour totals. Only non-zero entries are stored.
func (p *Parcel) recount() {
	local := make(map[catalog.BuildingType]int)
	for x := range p.Cells {
		for y := range p.Cells[x] {
			local[p.Cells[x][y].Type]++
		}
	}
	p.LocalCounts = local
	p.NeighborCounts = sumCounts(local, p.outside)
}

// setOutside installs the neighbours' combined counts and reports whether
// NeighborCounts changed as a result.
func (p *Parcel) setOutside(outside map[catalog.BuildingType]int) bool {
	p.outside = outside
	next := sumCounts(p.LocalCounts, outside)
	if maps.Equal(next, p.NeighborCounts) {
		return false
	}
	p.NeighborCounts = next
	return true
}

func sumCounts(parts ...map[catalog.BuildingType]int) map[catalog.BuildingType]int {
	out := make(map[catalog.BuildingType]int)
	for _, m := range parts {
		for t, n := range m {
			if n != 0 {
				out[t] += n
			}
		}
	}
	return out
}

// String renders the grid, one row per line.
func (p *Parcel) String() string {
	var sb strings.Builder
	for x := range p.Cells {
		if x > 0 {
			sb.WriteByte('\n')
		}
		for y := range p.Cells[x] {
			sb.WriteString(p.Cells[x][y].Symbol)
		}
	}
	return sb.String()
}

package world

import (
	"maps"
	"testing"

	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/ledger"
)

func startLedger() ledger.Ledger {
	l := ledger.New()
	l.Set(catalog.ResourceFood, 10)
	l.Set(catalog.ResourceWood, 10)
	l.Set(catalog.ResourceSeed, 10)
	l.Set(catalog.ResourceStorage, 100)
	return l
}

func richLedger() ledger.Ledger {
	l := ledger.New()
	for _, r := range catalog.AllResources() {
		l.Set(r, 100)
	}
	return l
}

func build(t *testing.T, w *World, parcel, cell Pos, bt catalog.BuildingType, l ledger.Ledger) Outcome {
	t.Helper()
	out := w.Edit(parcel, cell, w.Derive(bt), l)
	if !out.Changed() {
		t.Fatalf("build %s at %s/%s: %s", bt, parcel, cell, out.Result)
	}
	return out
}

func TestHouseThenGrain(t *testing.T) {
	w := New(nil, DefaultRules())
	l := startLedger()

	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingHouse, l)
	build(t, w, Pos{}, Pos{1, 0}, catalog.BuildingGrain, l)

	want := map[catalog.Resource]int{
		catalog.ResourceFood:    0,
		catalog.ResourceWood:    0,
		catalog.ResourceSeed:    10,
		catalog.ResourceStorage: 100,
	}
	for r, q := range want {
		if got := l.Get(r); got != q {
			t.Fatalf("%s=%d want %d", r, got, q)
		}
	}
	p := w.Parcel(Pos{})
	if p.Count(catalog.BuildingHouse) != 1 || p.Count(catalog.BuildingGrain) != 1 {
		t.Fatalf("counts: house=%d grain=%d", p.Count(catalog.BuildingHouse), p.Count(catalog.BuildingGrain))
	}
	if p.Count(catalog.BuildingGround) != GridSize*GridSize-2 {
		t.Fatalf("ground=%d", p.Count(catalog.BuildingGround))
	}
	if err := w.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestMissingRequiredNeighbourRejected(t *testing.T) {
	w := New(nil, DefaultRules())
	l := richLedger()
	before := l.Clone()

	out := w.Edit(Pos{}, Pos{3, 3}, w.Derive(catalog.BuildingBattery), l)
	if out.Result != ResultInvalid {
		t.Fatalf("result=%s want %s", out.Result, ResultInvalid)
	}
	if !maps.Equal(l, before) {
		t.Fatalf("ledger changed on rejected build: %v", l.Amounts())
	}
	if w.Parcel(Pos{}).Cell(Pos{3, 3}).Type != catalog.BuildingGround {
		t.Fatalf("cell changed on rejected build")
	}
}

func TestInsufficientLeavesGridAlone(t *testing.T) {
	w := New(nil, DefaultRules())
	l := ledger.New()

	out := w.Edit(Pos{}, Pos{0, 0}, w.Derive(catalog.BuildingHouse), l)
	if out.Result != ResultInsufficient {
		t.Fatalf("result=%s want %s", out.Result, ResultInsufficient)
	}
	if w.Parcel(Pos{}).Count(catalog.BuildingHouse) != 0 {
		t.Fatalf("house placed without payment")
	}
}

func TestEditOutsideWorld(t *testing.T) {
	w := New(nil, DefaultRules())
	l := richLedger()
	if out := w.Edit(Pos{}, Pos{GridSize, 0}, w.Derive(catalog.BuildingHouse), l); out.Result != ResultOutOfBounds {
		t.Fatalf("result=%s want %s", out.Result, ResultOutOfBounds)
	}
	if out := w.Edit(Pos{5, 5}, Pos{0, 0}, w.Derive(catalog.BuildingHouse), l); out.Result != ResultNotOwned {
		t.Fatalf("result=%s want %s", out.Result, ResultNotOwned)
	}
}

func TestGroundAlwaysValid(t *testing.T) {
	p := NewParcel(Pos{}, DefaultRules())
	p.Set(Pos{1, 1}, catalog.Derive(catalog.BuildingFactory))
	for _, c := range []Pos{{0, 0}, {1, 0}, {7, 7}, {-1, 3}, {GridSize, GridSize}} {
		if !p.IsValid(c, catalog.Ground()) {
			t.Fatalf("ground invalid at %s", c)
		}
	}
}

func TestRequiredAdjacencyIsConjunctive(t *testing.T) {
	p := NewParcel(Pos{}, DefaultRules())
	mixer := catalog.Derive(catalog.BuildingConcreteMixer)

	p.Set(Pos{2, 3}, catalog.Derive(catalog.BuildingFactory))
	if p.IsValid(Pos{3, 3}, mixer) {
		t.Fatalf("mixer valid with factory only")
	}
	p.Set(Pos{4, 3}, catalog.Derive(catalog.BuildingGauge))
	if !p.IsValid(Pos{3, 3}, mixer) {
		t.Fatalf("mixer invalid next to factory and gauge")
	}
}

func TestForeignNeighbourRejected(t *testing.T) {
	p := NewParcel(Pos{}, DefaultRules())
	p.Set(Pos{0, 0}, catalog.Derive(catalog.BuildingHouse))

	tree := catalog.Derive(catalog.BuildingTree)
	if p.IsValid(Pos{0, 1}, tree) {
		t.Fatalf("tree accepted next to a house")
	}
	if !p.IsValid(Pos{5, 5}, tree) {
		t.Fatalf("tree rejected away from the house")
	}
}

func TestTileAdjacencyNeedsPresence(t *testing.T) {
	p := NewParcel(Pos{}, DefaultRules())
	grain := catalog.Derive(catalog.BuildingGrain)
	if p.IsValid(Pos{4, 4}, grain) {
		t.Fatalf("grain valid without a house in the parcel")
	}
	p.Set(Pos{0, 7}, catalog.Derive(catalog.BuildingHouse))
	if !p.IsValid(Pos{4, 4}, grain) {
		t.Fatalf("grain invalid with a house in the parcel")
	}
}

func TestSameTypeIsNoOp(t *testing.T) {
	w := New(nil, DefaultRules())
	l := richLedger()
	build(t, w, Pos{}, Pos{2, 2}, catalog.BuildingHouse, l)
	w.Plan(Pos{}, Pos{2, 2}, catalog.BuildingHouse)
	before := l.Clone()

	out := w.Edit(Pos{}, Pos{2, 2}, w.Derive(catalog.BuildingHouse), l)
	if out.Result != ResultUnchanged {
		t.Fatalf("result=%s want %s", out.Result, ResultUnchanged)
	}
	if !maps.Equal(l, before) {
		t.Fatalf("ledger changed on no-op")
	}
	if _, ok := w.Parcel(Pos{}).Planned[Pos{2, 2}]; ok {
		t.Fatalf("planned marker survived a same-type edit")
	}
}

func TestDemolitionRefund(t *testing.T) {
	rules := DefaultRules()
	rules.RefundPercent = 75
	w := New(nil, rules)
	l := startLedger()
	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingHouse, l)

	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingGround, l)
	if l.Get(catalog.ResourceWood) != 8 || l.Get(catalog.ResourceFood) != 8 {
		t.Fatalf("refund wood=%d food=%d want 8", l.Get(catalog.ResourceWood), l.Get(catalog.ResourceFood))
	}
}

func TestRefundBoundedByCapacity(t *testing.T) {
	w := New(nil, DefaultRules())
	l := startLedger()
	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingHouse, l)

	l.Set(catalog.ResourceWood, 95)
	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingGround, l)
	if got := l.Get(catalog.ResourceWood); got != 100 {
		t.Fatalf("wood=%d want 100", got)
	}
	if got := l.Get(catalog.ResourceFood); got != 10 {
		t.Fatalf("food=%d want 10", got)
	}
}

func TestSweepDemolishesDependants(t *testing.T) {
	w := New(nil, DefaultRules())
	l := richLedger()
	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingHouse, l)
	build(t, w, Pos{}, Pos{1, 0}, catalog.BuildingGrain, l)
	build(t, w, Pos{}, Pos{5, 5}, catalog.BuildingGrain, l)

	out := build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingGround, l)
	if len(out.Demolished) != 2 {
		t.Fatalf("demolished=%v want both grain fields", out.Demolished)
	}
	p := w.Parcel(Pos{})
	if p.Count(catalog.BuildingGrain) != 0 {
		t.Fatalf("grain left standing without a house")
	}
	for _, c := range []Pos{{1, 0}, {5, 5}} {
		if p.Planned[c] != catalog.BuildingGrain {
			t.Fatalf("cell %s not planned as grain", c)
		}
	}
	if again := p.Sweep(l, w.Capacity); len(again) != 0 {
		t.Fatalf("second sweep demolished %v", again)
	}
	if err := w.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestRetryPlannedRebuilds(t *testing.T) {
	w := New(nil, DefaultRules())
	l := richLedger()
	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingHouse, l)
	build(t, w, Pos{}, Pos{1, 0}, catalog.BuildingGrain, l)
	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingGround, l)

	built, _ := w.RetryPlanned(l, nil)
	if len(built) != 0 {
		t.Fatalf("built %v without a house", built)
	}

	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingHouse, l)
	built, demolished := w.RetryPlanned(l, nil)
	if len(built) != 1 || built[0].Cell != (Pos{1, 0}) || built[0].Type != catalog.BuildingGrain {
		t.Fatalf("built=%v", built)
	}
	if len(demolished) != 0 {
		t.Fatalf("demolished=%v", demolished)
	}
	if len(w.Parcel(Pos{}).Planned) != 0 {
		t.Fatalf("planned=%v want empty", w.Parcel(Pos{}).Planned)
	}
}

func TestRetryPlannedHonoursAllow(t *testing.T) {
	w := New(nil, DefaultRules())
	l := richLedger()
	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingHouse, l)
	if !w.Plan(Pos{}, Pos{1, 0}, catalog.BuildingGrain) {
		t.Fatalf("plan rejected")
	}

	refuseGrain := func(bt catalog.BuildingType) bool { return bt != catalog.BuildingGrain }
	if built, _ := w.RetryPlanned(l, refuseGrain); len(built) != 0 {
		t.Fatalf("built %v against allow", built)
	}
	if w.Parcel(Pos{}).Planned[Pos{1, 0}] != catalog.BuildingGrain {
		t.Fatalf("refused marker was dropped")
	}
	if built, _ := w.RetryPlanned(l, nil); len(built) != 1 {
		t.Fatalf("built=%v want the grain", built)
	}
}

func TestDemolishWarehouseRefundsAgainstRemainingCapacity(t *testing.T) {
	w := New(nil, DefaultRules())
	l := richLedger()
	build(t, w, Pos{}, Pos{3, 3}, catalog.BuildingWarehouse, l)
	if caps := w.Capacity(); caps.Storage != 200 {
		t.Fatalf("storage cap=%d want 200", caps.Storage)
	}
	l.Set(catalog.ResourceWood, 150)

	build(t, w, Pos{}, Pos{3, 3}, catalog.BuildingGround, l)
	if caps := w.Capacity(); caps.Storage != 100 {
		t.Fatalf("storage cap=%d want 100", caps.Storage)
	}
	// Already above the remaining cap, so the refund adds nothing.
	if got := l.Get(catalog.ResourceWood); got != 150 {
		t.Fatalf("wood=%d want 150", got)
	}

	l.Set(catalog.ResourceWood, 100)
	build(t, w, Pos{}, Pos{3, 3}, catalog.BuildingWarehouse, l)
	l.Set(catalog.ResourceWood, 90)
	build(t, w, Pos{}, Pos{3, 3}, catalog.BuildingGround, l)
	if got := l.Get(catalog.ResourceWood); got != 100 {
		t.Fatalf("wood=%d want refund clamped to 100", got)
	}
}

func TestApplyReportsChange(t *testing.T) {
	w := New(nil, DefaultRules())
	l := richLedger()
	house := w.Derive(catalog.BuildingHouse)

	p := w.Parcel(Pos{})
	if !p.Apply(Pos{0, 0}, house, l, FixedCapacity(w.Capacity())) {
		t.Fatalf("parcel apply of a house reported no change")
	}
	if p.Apply(Pos{0, 0}, house, l, FixedCapacity(w.Capacity())) {
		t.Fatalf("parcel apply of the same type reported a change")
	}

	grain := w.Derive(catalog.BuildingGrain)
	if !w.Apply(Pos{}, Pos{1, 0}, grain, l) {
		t.Fatalf("world apply of grain reported no change")
	}
	if w.Apply(Pos{}, Pos{1, 0}, grain, l) {
		t.Fatalf("world apply of the same type reported a change")
	}
	if w.Apply(Pos{5, 5}, Pos{1, 0}, grain, l) {
		t.Fatalf("world apply on an unowned parcel reported a change")
	}
	if p.Count(catalog.BuildingHouse) != 1 || p.Count(catalog.BuildingGrain) != 1 {
		t.Fatalf("counts: house=%d grain=%d", p.Count(catalog.BuildingHouse), p.Count(catalog.BuildingGrain))
	}
}

func TestPlanGroundClearsMarker(t *testing.T) {
	p := NewParcel(Pos{}, DefaultRules())
	p.Plan(Pos{3, 3}, catalog.BuildingShop)
	p.Plan(Pos{1, 1}, catalog.BuildingTree)
	if got := p.PlannedCells(); len(got) != 2 || got[0] != (Pos{1, 1}) {
		t.Fatalf("planned cells=%v", got)
	}
	p.Plan(Pos{3, 3}, catalog.BuildingGround)
	if _, ok := p.Planned[Pos{3, 3}]; ok {
		t.Fatalf("ground plan left a marker")
	}
	if p.Plan(Pos{-1, 0}, catalog.BuildingShop) {
		t.Fatalf("planned outside the grid")
	}
}

func TestFrontierAndPurchase(t *testing.T) {
	w := New(nil, DefaultRules())
	want := []Pos{{-1, 0}, {0, -1}, {0, 1}, {1, 0}}
	if got := w.Frontier(); !equalPos(got, want) {
		t.Fatalf("frontier=%v want %v", got, want)
	}

	l := ledger.New()
	l.Set(catalog.ResourceTax, 900)
	if w.Purchase(Pos{2, 0}, l) {
		t.Fatalf("bought a parcel outside the frontier")
	}
	if w.Purchase(Pos{1, 1}, l) {
		t.Fatalf("bought a diagonal parcel")
	}
	if !w.Purchase(Pos{1, 0}, l) {
		t.Fatalf("purchase at ring 1 failed")
	}
	if got := l.Get(catalog.ResourceTax); got != 100 {
		t.Fatalf("tax=%d want 100 after paying 800", got)
	}
	if w.InFrontier(Pos{1, 0}) {
		t.Fatalf("owned parcel still in frontier")
	}

	want = []Pos{{-1, 0}, {0, -1}, {0, 1}, {1, -1}, {1, 1}, {2, 0}}
	if got := w.Frontier(); !equalPos(got, want) {
		t.Fatalf("frontier=%v want %v", got, want)
	}
	if w.Purchase(Pos{2, 0}, l) {
		t.Fatalf("bought ring 2 with %d tax", l.Get(catalog.ResourceTax))
	}
}

func TestPurchaseCost(t *testing.T) {
	tests := []struct {
		pos  Pos
		want int
	}{
		{Pos{0, 0}, 100},
		{Pos{1, 0}, 800},
		{Pos{-1, 1}, 800},
		{Pos{0, -2}, 2700},
		{Pos{3, 1}, 6400},
	}
	for _, tc := range tests {
		if got := PurchaseCost(tc.pos); got != tc.want {
			t.Errorf("PurchaseCost(%s)=%d want %d", tc.pos, got, tc.want)
		}
	}
}

func TestCapacityCountsStorageBuildings(t *testing.T) {
	w := New(nil, DefaultRules())
	p := w.Parcel(Pos{})
	p.Set(Pos{0, 0}, catalog.Derive(catalog.BuildingWarehouse))
	p.Set(Pos{0, 1}, catalog.Derive(catalog.BuildingWarehouse))
	p.Set(Pos{4, 4}, catalog.Derive(catalog.BuildingBank))

	caps := w.Capacity()
	if caps.Storage != 300 || caps.Cash != 1000 {
		t.Fatalf("capacity=%+v want storage 300 cash 1000", caps)
	}
}

func TestNeighborhoodScopeCascades(t *testing.T) {
	rules := DefaultRules()
	rules.Scope = ScopeNeighborhood
	w := New(nil, rules)
	w.AddParcel(NewParcel(Pos{1, 0}, rules))
	l := richLedger()

	if w.IsValid(Pos{1, 0}, Pos{3, 3}, catalog.BuildingGrain) {
		t.Fatalf("grain valid with no house nearby")
	}
	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingHouse, l)
	build(t, w, Pos{1, 0}, Pos{3, 3}, catalog.BuildingGrain, l)
	if err := w.Validate(); err != nil {
		t.Fatal(err)
	}

	out := build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingGround, l)
	want := Demolition{Parcel: Pos{1, 0}, Cell: Pos{3, 3}, Type: catalog.BuildingGrain}
	if len(out.Demolished) != 1 || out.Demolished[0] != want {
		t.Fatalf("demolished=%v want %v", out.Demolished, want)
	}
	if w.Parcel(Pos{1, 0}).Planned[Pos{3, 3}] != catalog.BuildingGrain {
		t.Fatalf("neighbour cell not planned")
	}
	if d := w.Settle(l); len(d) != 0 {
		t.Fatalf("settle demolished %v", d)
	}
	if err := w.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestParcelScopeIgnoresNeighbours(t *testing.T) {
	w := New(nil, DefaultRules())
	w.AddParcel(NewParcel(Pos{1, 0}, DefaultRules()))
	l := richLedger()
	build(t, w, Pos{}, Pos{0, 0}, catalog.BuildingHouse, l)

	if w.IsValid(Pos{1, 0}, Pos{3, 3}, catalog.BuildingGrain) {
		t.Fatalf("grain saw a house in another parcel")
	}
	if n := w.Parcel(Pos{1, 0}).NeighborCounts[catalog.BuildingHouse]; n != 1 {
		t.Fatalf("neighbour house count=%d want 1", n)
	}
}

func TestValidateCatchesStaleCounts(t *testing.T) {
	w := New(nil, DefaultRules())
	p := w.Parcel(Pos{})
	p.Cells[2][2] = catalog.Derive(catalog.BuildingHouse)
	if err := w.Validate(); err == nil {
		t.Fatalf("validate missed a stale local count")
	}
	w.Rebuild()
	if err := w.Validate(); err != nil {
		t.Fatalf("after rebuild: %v", err)
	}
}

func TestParcelString(t *testing.T) {
	p := NewParcel(Pos{}, DefaultRules())
	p.Set(Pos{0, 1}, catalog.Derive(catalog.BuildingHouse))
	want := "..Ho............"
	if got := p.String()[:2*GridSize]; got != want {
		t.Fatalf("first row=%q want %q", got, want)
	}
}

func equalPos(a, b []Pos) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

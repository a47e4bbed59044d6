package engine

import (
	"context"
	"testing"
	"time"

	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/ledger"
	"github.com/talgya/homestead/internal/world"
)

func TestFrameFiresOncePerInterval(t *testing.T) {
	e := NewEngine(10*time.Millisecond, 3*time.Second)
	var fired []uint64
	e.OnProduction = func(tick uint64) { fired = append(fired, tick) }

	t0 := time.Unix(1000, 0)
	steps := []struct {
		at   time.Duration
		want bool
	}{
		{0, false},
		{time.Second, false},
		{3 * time.Second, true},
		{4 * time.Second, false},
		{20 * time.Second, true}, // no catch-up burst
		{21 * time.Second, false},
		{23 * time.Second, true},
	}
	for _, s := range steps {
		if got := e.Frame(t0.Add(s.at)); got != s.want {
			t.Fatalf("frame at %v fired=%v want %v", s.at, got, s.want)
		}
	}
	if e.Tick != 3 || len(fired) != 3 || fired[2] != 3 {
		t.Fatalf("tick=%d fired=%v", e.Tick, fired)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := NewEngine(time.Millisecond, time.Millisecond)
	ticks := make(chan uint64, 8)
	e.OnProduction = func(tick uint64) {
		select {
		case ticks <- tick:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatalf("no production tick")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	e := NewEngine(time.Millisecond, time.Hour)
	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()
	e.Stop()
	e.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after stop")
	}
}

func place(w *world.World, parcel world.Pos, t catalog.BuildingType, cells ...world.Pos) {
	p := w.Parcel(parcel)
	for _, c := range cells {
		p.Set(c, w.Derive(t))
	}
}

func TestProductionTickTwoPhase(t *testing.T) {
	w := world.New(nil, world.DefaultRules())
	place(w, world.Pos{}, catalog.BuildingGrain, world.Pos{X: 0, Y: 0}, world.Pos{X: 0, Y: 1}, world.Pos{X: 0, Y: 2})
	place(w, world.Pos{}, catalog.BuildingWarehouse, world.Pos{X: 5, Y: 5})

	l := ledger.New()
	l.Set(catalog.ResourceFood, 199)
	prod := ProductionTick(w, l)

	if prod.Capacity.Storage != 200 || prod.Capacity.Cash != 0 {
		t.Fatalf("capacity=%+v want storage 200", prod.Capacity)
	}
	tests := []struct {
		r    catalog.Resource
		want int
	}{
		{catalog.ResourceFood, 200},
		{catalog.ResourceSeed, 3},
		{catalog.ResourceStorage, 100},
	}
	for _, tc := range tests {
		if got := l.Get(tc.r); got != tc.want {
			t.Errorf("%s=%d want %d", tc.r, got, tc.want)
		}
	}
	if prod.Produced[catalog.ResourceFood] != 3 || prod.Produced[catalog.ResourceStorage] != 100 {
		t.Fatalf("produced=%v", prod.Produced)
	}

	ProductionTick(w, l)
	if got := l.Get(catalog.ResourceStorage); got != 200 {
		t.Fatalf("storage=%d want capped at 200", got)
	}
}

func TestProductionCapacitySpansParcels(t *testing.T) {
	w := world.New(nil, world.DefaultRules())
	w.AddParcel(world.NewParcel(world.Pos{X: 1, Y: 0}, world.DefaultRules()))
	place(w, world.Pos{}, catalog.BuildingShop, world.Pos{X: 0, Y: 0})
	place(w, world.Pos{X: 1, Y: 0}, catalog.BuildingBank, world.Pos{X: 0, Y: 0})

	l := ledger.New()
	l.Set(catalog.ResourceTax, 1099)
	l.Set(catalog.ResourceWood, 500)
	place(w, world.Pos{X: 1, Y: 0}, catalog.BuildingTree, world.Pos{X: 7, Y: 7})

	prod := ProductionTick(w, l)
	if prod.Capacity.Cash != 1000 {
		t.Fatalf("cash=%d want 1000", prod.Capacity.Cash)
	}
	if got := l.Get(catalog.ResourceTax); got != 1100 {
		t.Fatalf("tax=%d want 1100", got)
	}
	if got := l.Get(catalog.ResourceWood); got != 100 {
		t.Fatalf("wood=%d want clamped to 100", got)
	}
}

func TestPerSecond(t *testing.T) {
	got := PerSecond(map[catalog.Resource]int{catalog.ResourceFood: 6}, 3)
	if got[catalog.ResourceFood] != 2 {
		t.Fatalf("per second=%v want 2", got[catalog.ResourceFood])
	}
	if len(PerSecond(map[catalog.Resource]int{catalog.ResourceFood: 6}, 0)) != 0 {
		t.Fatalf("rate over zero seconds")
	}
}

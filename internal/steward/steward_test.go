package steward

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/homestead/internal/api"
	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/ledger"
	"github.com/talgya/homestead/internal/world"
)

func TestTriage(t *testing.T) {
	snap := &Snapshot{
		Resources: []ResourceInfo{
			{Key: "food", Amount: 100, Cap: 100, PerSecond: 0.3},
			{Key: "tax", Amount: 300, Cap: 100},
			{Key: "wood", Amount: 5, Cap: 100},
		},
		Frontier: []Plot{{X: 1, Cost: 800}, {X: 2, Y: 2, Cost: 2700}},
		Stages: []StageInfo{
			{Num: 1, State: "unlocked", Ready: true},
			{Num: 2, State: "locked", Ready: true},
			{Num: 3, State: "locked"},
		},
	}
	h := Triage(snap)
	if h.Level != "SATURATED" || len(h.Saturated) != 1 || h.Saturated[0] != "food" {
		t.Fatalf("health=%+v", h)
	}
	if h.CheapestLot != 800 || h.TaxShort != 500 {
		t.Fatalf("cheapest=%d short=%d", h.CheapestLot, h.TaxShort)
	}
	if len(h.ReadyStages) != 1 || h.ReadyStages[0] != 2 {
		t.Fatalf("ready=%v", h.ReadyStages)
	}

	if got := Triage(&Snapshot{}).Level; got != "STALLED" {
		t.Fatalf("empty level=%s", got)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want []string
	}{
		{
			name: "nothing to do",
			snap: Snapshot{Frontier: []Plot{{X: 1, Cost: 800}}},
			want: []string{ActionNone},
		},
		{
			name: "unlock and buy",
			snap: Snapshot{
				Frontier: []Plot{{X: 1, Cost: 800, Affordable: true}},
				Stages:   []StageInfo{{Num: 2, State: "locked", Ready: true}},
			},
			want: []string{ActionUnlock, ActionPurchase},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(&tt.snap, Triage(&tt.snap))
			if len(got) != len(tt.want) {
				t.Fatalf("decisions=%+v want %v", got, tt.want)
			}
			for i := range got {
				if got[i].Action != tt.want[i] {
					t.Fatalf("decision %d=%s want %s", i, got[i].Action, tt.want[i])
				}
			}
		})
	}
}

func TestCheapestAffordableIsDeterministic(t *testing.T) {
	p := cheapestAffordable([]Plot{
		{X: 1, Y: 1, Cost: 800, Affordable: true},
		{X: 0, Y: 1, Cost: 800, Affordable: true},
		{X: -1, Y: -1, Cost: 800},
		{X: 2, Y: 0, Cost: 2700, Affordable: true},
	})
	if p == nil || p.X != 0 || p.Y != 1 {
		t.Fatalf("plot=%+v", p)
	}
}

func TestMemoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steward.json")
	mem := LoadMemory(path)
	for i := 0; i < maxRecords+3; i++ {
		mem.Record(CycleRecord{Tick: uint64(i), Actions: []string{ActionNone}})
	}
	if err := mem.Save(); err != nil {
		t.Fatal(err)
	}

	loaded := LoadMemory(path)
	if len(loaded.Records) != maxRecords || loaded.Records[0].Tick != 3 {
		t.Fatalf("records=%+v", loaded.Records)
	}
	if loaded.StalledCycles() != maxRecords {
		t.Fatalf("stalled=%d", loaded.StalledCycles())
	}
	loaded.Record(CycleRecord{Actions: []string{ActionPurchase}})
	if loaded.StalledCycles() != 0 {
		t.Fatalf("stalled after action=%d", loaded.StalledCycles())
	}
}

func TestRunCycleAgainstServer(t *testing.T) {
	sim := engine.NewGame(engine.Settings{
		Name:  "steward",
		Rules: world.DefaultRules(),
		Start: ledger.Ledger{
			catalog.ResourceSeed:    60,
			catalog.ResourceStorage: 100,
			catalog.ResourceTax:     900,
		},
	})
	srv := &api.Server{Sim: sim, AdminKey: "k"}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := WaitForAPI(ctx, ts.URL, time.Second); err != nil {
		t.Fatal(err)
	}

	st := New(ts.URL, "k", "")
	rec, err := st.RunCycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Actions) != 2 || rec.Actions[0] != ActionUnlock || rec.Actions[1] != ActionPurchase {
		t.Fatalf("actions=%v", rec.Actions)
	}

	sim.View(func(s *engine.Simulation) {
		if len(s.World.Parcels) != 2 {
			t.Fatalf("parcels=%v", s.World.Owned())
		}
		if s.Ledger.Get(catalog.ResourceTax) != 100 {
			t.Fatalf("tax=%d want 100", s.Ledger.Get(catalog.ResourceTax))
		}
	})

	// Second cycle: 100 tax buys nothing.
	rec, err = st.RunCycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Actions) != 1 || rec.Actions[0] != ActionNone {
		t.Fatalf("second cycle actions=%v", rec.Actions)
	}
}

func TestActorRejectsBadToken(t *testing.T) {
	sim := engine.NewGame(engine.Settings{Name: "x", Rules: world.DefaultRules()})
	ts := httptest.NewServer((&api.Server{Sim: sim, AdminKey: "k"}).Handler())
	defer ts.Close()

	a := NewActor(ts.URL, "wrong")
	if _, err := a.Act(context.Background(), Decision{Action: ActionUnlock, Stage: 2}); err == nil {
		t.Fatalf("expected error for bad token")
	}
	if _, err := a.Act(context.Background(), Decision{Action: "teleport"}); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

package progress

import (
	"testing"

	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/ledger"
)

func TestNewStagesOnlyFirstOpen(t *testing.T) {
	stages := NewStages()
	if len(stages) != catalog.StageCount {
		t.Fatalf("stages=%d want %d", len(stages), catalog.StageCount)
	}
	for _, s := range stages {
		if got, want := s.Unlocked(), s.Num == 1; got != want {
			t.Fatalf("stage %d unlocked=%v want %v", s.Num, got, want)
		}
	}
}

func TestTryUnlockThreshold(t *testing.T) {
	s := Find(NewStages(), 2)
	l := ledger.New()
	l.Set(catalog.ResourceSeed, 49)
	if s.TryUnlock(l) {
		t.Fatalf("unlocked with 49 seeds")
	}
	l.Set(catalog.ResourceSeed, 50)
	if !s.TryUnlock(l) {
		t.Fatalf("did not unlock with 50 seeds")
	}
	if s.TryUnlock(l) {
		t.Fatalf("second unlock reported a change")
	}
	l.Set(catalog.ResourceSeed, 0)
	if !s.Unlocked() {
		t.Fatalf("stage relocked after spending")
	}
}

func TestForceUnlock(t *testing.T) {
	s := Find(NewStages(), 6)
	if s.Ready(ledger.New()) {
		t.Fatalf("final stage ready on an empty ledger")
	}
	if !s.ForceUnlock() {
		t.Fatalf("force unlock reported no change")
	}
	if s.ForceUnlock() {
		t.Fatalf("second force unlock reported a change")
	}
}

func TestTryUnlockAllIsIndependent(t *testing.T) {
	stages := NewStages()
	l := ledger.New()
	l.Set(catalog.ResourceWood, 100)

	opened := TryUnlockAll(stages, l)
	if len(opened) != 1 || opened[0] != 3 {
		t.Fatalf("opened=%v want [3]", opened)
	}
	if Find(stages, 2).Unlocked() {
		t.Fatalf("stage 2 opened without seeds")
	}
}

func TestAllows(t *testing.T) {
	stages := NewStages()
	tests := []struct {
		t    catalog.BuildingType
		want bool
	}{
		{catalog.BuildingGround, true},
		{catalog.BuildingHouse, true},
		{catalog.BuildingGrain, true},
		{catalog.BuildingTree, false},
		{catalog.BuildingFactory, false},
	}
	for _, tc := range tests {
		if got := Allows(stages, tc.t); got != tc.want {
			t.Errorf("Allows(%s)=%v want %v", tc.t, got, tc.want)
		}
	}
	Find(stages, 2).ForceUnlock()
	if !Allows(stages, catalog.BuildingTree) {
		t.Fatalf("tree still gated after stage 2 opened")
	}
}

func TestRestoreKeepsFlagsOnly(t *testing.T) {
	stages := Restore(map[int]bool{3: true, 42: true})
	got := Enabled(stages)
	want := map[int]bool{1: true, 2: false, 3: true, 4: false, 5: false, 6: false}
	for n, v := range want {
		if got[n] != v {
			t.Fatalf("stage %d enabled=%v want %v", n, got[n], v)
		}
	}
	if len(got) != catalog.StageCount {
		t.Fatalf("restored %d stages", len(got))
	}
}

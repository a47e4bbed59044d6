// Package progress tracks which stages of the settlement are unlocked and
// therefore which building types may be constructed.
package progress

import (
	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/ledger"
)

// State is the lock state of a stage. A stage never relocks.
type State uint8

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Stage pairs a catalog stage definition with its lock state.
type Stage struct {
	catalog.StageDef
	State State `json:"state"`
}

// NewStages returns every defined stage with only stage 1 unlocked.
func NewStages() []*Stage {
	defs := catalog.Stages()
	out := make([]*Stage, 0, len(defs))
	for _, d := range defs {
		s := &Stage{StageDef: d}
		if d.Num == 1 {
			s.State = Unlocked
		}
		out = append(out, s)
	}
	return out
}

// Unlocked reports whether the stage is open.
func (s *Stage) Unlocked() bool { return s.State == Unlocked }

// Ready reports whether l meets every unlock threshold.
func (s *Stage) Ready(l ledger.Ledger) bool {
	for _, a := range s.UnlockAt {
		if !l.AtLeast(a) {
			return false
		}
	}
	return true
}

// TryUnlock opens a locked stage whose thresholds are met and reports
// whether the state changed.
func (s *Stage) TryUnlock(l ledger.Ledger) bool {
	if s.Unlocked() || !s.Ready(l) {
		return false
	}
	s.State = Unlocked
	return true
}

// ForceUnlock opens the stage regardless of thresholds. It reports whether
// the stage was locked before.
func (s *Stage) ForceUnlock() bool {
	if s.Unlocked() {
		return false
	}
	s.State = Unlocked
	return true
}

// Find returns stage num, or nil.
func Find(stages []*Stage, num int) *Stage {
	for _, s := range stages {
		if s.Num == num {
			return s
		}
	}
	return nil
}

// TryUnlockAll checks every locked stage against l and returns the numbers
// of those that opened. Stages are independent of each other.
func TryUnlockAll(stages []*Stage, l ledger.Ledger) []int {
	var opened []int
	for _, s := range stages {
		if s.TryUnlock(l) {
			opened = append(opened, s.Num)
		}
	}
	return opened
}

// Allows reports whether t may be built given the stage states. Ground is
// always allowed; a type no stage lists never is.
func Allows(stages []*Stage, t catalog.BuildingType) bool {
	if t == catalog.BuildingGround {
		return true
	}
	n := catalog.StageOf(t)
	if n == 0 {
		return false
	}
	s := Find(stages, n)
	return s != nil && s.Unlocked()
}

// Restore applies saved unlock flags by stage number. Definitions always come
// from the catalog; unknown numbers are ignored and stage 1 stays open.
func Restore(enabled map[int]bool) []*Stage {
	stages := NewStages()
	for _, s := range stages {
		if enabled[s.Num] {
			s.State = Unlocked
		}
	}
	return stages
}

// Enabled returns the unlock flag of every stage by number, for saving.
func Enabled(stages []*Stage) map[int]bool {
	out := make(map[int]bool, len(stages))
	for _, s := range stages {
		out[s.Num] = s.Unlocked()
	}
	return out
}

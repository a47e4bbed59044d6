package steward

import (
	"context"
	"log/slog"
	"strings"
)

// Steward ties one observer, actor and memory together.
type Steward struct {
	Observer *Observer
	Actor    *Actor
	Memory   *CycleMemory
}

// New creates a steward for the API at baseURL.
func New(baseURL, adminKey, memoryPath string) *Steward {
	return &Steward{
		Observer: NewObserver(baseURL),
		Actor:    NewActor(baseURL, adminKey),
		Memory:   LoadMemory(memoryPath),
	}
}

// RunCycle executes one observe → decide → act cycle and returns the
// record it remembered.
func (s *Steward) RunCycle(ctx context.Context) (CycleRecord, error) {
	slog.Info("steward cycle starting")

	snap, err := s.Observer.Observe(ctx)
	if err != nil {
		return CycleRecord{}, err
	}
	h := Triage(snap)
	slog.Info("observation complete",
		"tick", snap.Status.Tick,
		"parcels", snap.Status.Parcels,
		"level", h.Level,
		"saturated", strings.Join(h.Saturated, ","),
		"tax_short", h.TaxShort,
	)

	rec := CycleRecord{
		Tick:      snap.Status.Tick,
		Level:     h.Level,
		Parcels:   snap.Status.Parcels,
		Saturated: h.Saturated,
	}
	for _, d := range Decide(snap, h) {
		slog.Info("decision made", "action", d.Action, "rationale", d.Rationale)
		if d.Action == ActionNone {
			rec.Actions = append(rec.Actions, d.Action)
			continue
		}
		res, err := s.Actor.Act(ctx, d)
		if err != nil {
			slog.Error("action failed", "action", d.Action, "error", err)
			continue
		}
		if res.Changed {
			rec.Actions = append(rec.Actions, d.Action)
		}
		slog.Info("action executed", "action", d.Action, "changed", res.Changed)
	}
	if len(rec.Actions) == 0 {
		rec.Actions = []string{ActionNone}
	}

	s.Memory.Record(rec)
	if n := s.Memory.StalledCycles(); n >= 3 {
		slog.Warn("steward idle for several cycles", "cycles", n, "level", h.Level)
	}
	if err := s.Memory.Save(); err != nil {
		slog.Error("failed to save steward memory", "error", err)
	}
	return rec, nil
}

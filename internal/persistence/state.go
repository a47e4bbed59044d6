package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/ledger"
	"github.com/talgya/homestead/internal/progress"
	"github.com/talgya/homestead/internal/world"
)

// SaveVersion is bumped whenever the stored layout changes. State saved under
// another version is treated as absent.
const SaveVersion = 1

// snapshotEvents is how many recent events travel with a snapshot.
const snapshotEvents = 100

// Header identifies a saved state.
type Header struct {
	Version    int       `json:"version"`
	WorldID    string    `json:"world_id"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	Name       string    `json:"name"`
	Tick       uint64    `json:"tick"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshot is the complete saved state of a simulation. Cached counts and
// the frontier are not stored; they are rebuilt on restore.
type Snapshot struct {
	Header    Header         `json:"header"`
	Parcels   []ParcelV1     `json:"parcels"`
	Resources map[string]int `json:"resources"`
	Stages    map[int]bool   `json:"stages"`
	Events    []engine.Event `json:"events,omitempty"`
}

// ParcelV1 stores one parcel. Cells holds GridSize² building keys, row-major.
type ParcelV1 struct {
	X       int         `json:"x"`
	Y       int         `json:"y"`
	Cells   []string    `json:"cells"`
	Planned []PlannedV1 `json:"planned,omitempty"`
}

type PlannedV1 struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"`
}

// Capture copies the state of sim under its lock.
func Capture(sim *engine.Simulation) Snapshot {
	var snap Snapshot
	sim.View(func(s *engine.Simulation) {
		snap.Header = Header{
			Version:   SaveVersion,
			WorldID:   s.ID,
			Name:      s.Name,
			Tick:      s.LastTick,
			CreatedAt: time.Now().UTC(),
		}
		for _, pos := range s.World.Owned() {
			snap.Parcels = append(snap.Parcels, captureParcel(s.World.Parcel(pos)))
		}
		snap.Resources = make(map[string]int, len(s.Ledger))
		for r, q := range s.Ledger {
			snap.Resources[r.Key()] = q
		}
		snap.Stages = progress.Enabled(s.Stages)

		start := len(s.Events) - snapshotEvents
		if start < 0 {
			start = 0
		}
		snap.Events = append([]engine.Event(nil), s.Events[start:]...)
	})
	return snap
}

func captureParcel(p *world.Parcel) ParcelV1 {
	pv := ParcelV1{X: p.Position.X, Y: p.Position.Y}
	pv.Cells = make([]string, 0, world.GridSize*world.GridSize)
	for x := range p.Cells {
		for y := range p.Cells[x] {
			pv.Cells = append(pv.Cells, p.Cells[x][y].Type.Key())
		}
	}
	for _, c := range p.PlannedCells() {
		pv.Planned = append(pv.Planned, PlannedV1{X: c.X, Y: c.Y, Type: p.Planned[c].Key()})
	}
	return pv
}

// Simulation rebuilds a simulation from snap. Building definitions come from
// settings, so catalog changes apply to loaded worlds.
func (snap Snapshot) Simulation(settings engine.Settings) (*engine.Simulation, error) {
	if snap.Header.Version != SaveVersion {
		return nil, fmt.Errorf("save version %d, want %d", snap.Header.Version, SaveVersion)
	}
	if len(snap.Parcels) == 0 {
		return nil, fmt.Errorf("no parcels")
	}

	w := world.NewEmpty(settings.Catalog, settings.Rules)
	for _, pv := range snap.Parcels {
		p, err := pv.parcel(w)
		if err != nil {
			return nil, err
		}
		w.AddParcel(p)
	}
	w.Rebuild()
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("restored world: %w", err)
	}

	l := ledger.New()
	for name, q := range snap.Resources {
		r, ok := catalog.ParseResource(name)
		if !ok {
			slog.Warn("dropping unknown resource from save", "resource", name, "amount", q)
			continue
		}
		l.Set(r, q)
	}

	// Stored grids may predate catalog changes or be hand-edited.
	if repaired := w.Repair(l); len(repaired) > 0 {
		slog.Warn("demolished buildings that break placement rules on load",
			"count", len(repaired),
			"first", fmt.Sprintf("%s at %s%s", repaired[0].Type, repaired[0].Parcel, repaired[0].Cell),
		)
	}

	if snap.Header.Name != "" {
		settings.Name = snap.Header.Name
	}
	sim := engine.Restore(settings, snap.Header.WorldID, w, l, progress.Restore(snap.Stages), snap.Header.Tick)
	sim.View(func(s *engine.Simulation) {
		s.Events = append(s.Events, snap.Events...)
	})
	return sim, nil
}

func (pv ParcelV1) parcel(w *world.World) (*world.Parcel, error) {
	pos := world.Pos{X: pv.X, Y: pv.Y}
	if len(pv.Cells) != world.GridSize*world.GridSize {
		return nil, fmt.Errorf("parcel %s: %d cells", pos, len(pv.Cells))
	}
	p := world.NewParcel(pos, w.Rules)
	for i, key := range pv.Cells {
		t, ok := catalog.ParseBuildingType(key)
		if !ok {
			return nil, fmt.Errorf("parcel %s: unknown building %q", pos, key)
		}
		p.Cells[i/world.GridSize][i%world.GridSize] = w.Derive(t)
	}
	for _, pl := range pv.Planned {
		t, ok := catalog.ParseBuildingType(pl.Type)
		if !ok {
			return nil, fmt.Errorf("parcel %s: unknown planned building %q", pos, pl.Type)
		}
		p.Plan(world.Pos{X: pl.X, Y: pl.Y}, t)
	}
	return p, nil
}

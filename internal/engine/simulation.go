// Simulation ties the world, ledger and stages together behind one mutex.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/ledger"
	"github.com/talgya/homestead/internal/progress"
	"github.com/talgya/homestead/internal/world"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Settings are what a simulation is built from.
type Settings struct {
	Name               string
	Catalog            *catalog.Catalog
	Rules              world.Rules
	Start              ledger.Ledger
	ProductionInterval time.Duration
}

// Simulation holds the complete game state. Every exported method takes the
// lock; use View for reads that span several fields.
type Simulation struct {
	mu sync.Mutex

	ID       string // stable across saves
	Name     string
	World    *world.World
	Ledger   ledger.Ledger
	Stages   []*progress.Stage
	Events   []Event // Recent events, oldest first
	LastTick uint64  // Most recent production tick processed

	LastProduction Production
	PerSecond      map[catalog.Resource]float64
	Interval       time.Duration

	pending   []Event // not yet written to the database
	saturated map[catalog.Resource]bool

	subMu   sync.Mutex
	subs    map[int]chan TickSummary
	nextSub int
}

// Event is a notable occurrence in the settlement.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "build", "demolish", "replan", "plan", "purchase", "unlock", "capacity"
}

// TickSummary is published to subscribers after every production tick.
type TickSummary struct {
	Tick       uint64                       `json:"tick"`
	Capacity   ledger.Capacity              `json:"capacity"`
	Produced   map[catalog.Resource]int     `json:"produced"`
	PerSecond  map[catalog.Resource]float64 `json:"per_second"`
	Resources  []catalog.Amount             `json:"resources"`
	Unlocked   []int                        `json:"unlocked,omitempty"`
	Built      []world.Built                `json:"built,omitempty"`
	Demolished []world.Demolition           `json:"demolished,omitempty"`
}

// Preview answers a hover query without changing anything.
type Preview struct {
	Valid      bool `json:"valid"`
	Affordable bool `json:"affordable"`
	Unlocked   bool `json:"unlocked"`
}

// NewGame creates a fresh settlement: one Ground parcel at the origin, the
// start ledger and only stage 1 open.
func NewGame(s Settings) *Simulation {
	l := ledger.New()
	for r, q := range s.Start {
		l.Set(r, q)
	}
	w := world.New(s.Catalog, s.Rules)
	return Restore(s, uuid.NewString(), w, l, progress.NewStages(), 0)
}

// Restore wraps previously saved state.
func Restore(s Settings, id string, w *world.World, l ledger.Ledger, stages []*progress.Stage, lastTick uint64) *Simulation {
	if id == "" {
		id = uuid.NewString()
	}
	interval := s.ProductionInterval
	if interval <= 0 {
		interval = DefaultProductionInterval
	}
	return &Simulation{
		ID:        id,
		Name:      s.Name,
		World:     w,
		Ledger:    l,
		Stages:    stages,
		LastTick:  lastTick,
		PerSecond: make(map[catalog.Resource]float64),
		Interval:  interval,
		saturated: make(map[catalog.Resource]bool),
		subs:      make(map[int]chan TickSummary),
	}
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastTick
}

// View runs fn with the lock held. fn must not call other Simulation methods.
func (s *Simulation) View(fn func(*Simulation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Build places t at cell in the parcel at pos. Ground demolishes. Types whose
// stage is locked are rejected with ResultLocked.
func (s *Simulation) Build(pos, cell world.Pos, t catalog.BuildingType) world.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.Valid() {
		return world.Outcome{Result: world.ResultInvalid}
	}
	if !progress.Allows(s.Stages, t) {
		return world.Outcome{Result: world.ResultLocked}
	}
	return s.edit(pos, cell, t)
}

// Demolish clears cell in the parcel at pos, refunding its cost.
func (s *Simulation) Demolish(pos, cell world.Pos) world.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edit(pos, cell, catalog.BuildingGround)
}

func (s *Simulation) edit(pos, cell world.Pos, t catalog.BuildingType) world.Outcome {
	var prev catalog.BuildingType
	if p := s.World.Parcel(pos); p != nil {
		prev = p.Cell(cell).Type
	}
	out := s.World.Edit(pos, cell, s.World.Derive(t), s.Ledger)
	if !out.Changed() {
		return out
	}
	if t == catalog.BuildingGround {
		s.record("demolish", fmt.Sprintf("Demolished %s at %s%s", prev, pos, cell))
	} else {
		s.record("build", fmt.Sprintf("Built %s at %s%s", t, pos, cell))
	}
	s.recordDemolitions(out.Demolished)

	built, demolished := s.World.RetryPlanned(s.Ledger, s.unlocked)
	s.recordBuilt(built)
	s.recordDemolitions(demolished)
	out.Demolished = append(out.Demolished, demolished...)
	settled := s.World.Settle(s.Ledger)
	s.recordDemolitions(settled)
	out.Demolished = append(out.Demolished, settled...)
	return out
}

// unlocked reports whether t's stage is open. The caller holds the lock.
func (s *Simulation) unlocked(t catalog.BuildingType) bool {
	return progress.Allows(s.Stages, t)
}

// Plan records t as the desired building at cell without charging. Types
// whose stage is locked are refused.
func (s *Simulation) Plan(pos, cell world.Pos, t catalog.BuildingType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.Valid() || !progress.Allows(s.Stages, t) || !s.World.Plan(pos, cell, t) {
		return false
	}
	if t == catalog.BuildingGround {
		s.record("plan", fmt.Sprintf("Cleared plan at %s%s", pos, cell))
	} else {
		s.record("plan", fmt.Sprintf("Planned %s at %s%s", t, pos, cell))
	}
	return true
}

// Purchase buys the frontier parcel at pos.
func (s *Simulation) Purchase(pos world.Pos) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cost := world.PurchaseCost(pos)
	if !s.World.Purchase(pos, s.Ledger) {
		return false
	}
	s.record("purchase", fmt.Sprintf("Bought parcel %s for %s tax", pos, humanize.Comma(int64(cost))))
	slog.Info("parcel purchased", "pos", pos.String(), "cost", cost, "owned", len(s.World.Parcels))
	return true
}

// UnlockEarly opens stage num regardless of its thresholds.
func (s *Simulation) UnlockEarly(num int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := progress.Find(s.Stages, num)
	if st == nil || !st.ForceUnlock() {
		return false
	}
	s.record("unlock", fmt.Sprintf("Unlocked stage %d early: %s", num, st.Title))
	slog.Info("stage unlocked early", "stage", num, "title", st.Title)
	return true
}

// Preview reports whether t could be built at cell right now.
func (s *Simulation) Preview(pos, cell world.Pos, t catalog.BuildingType) Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.Valid() {
		return Preview{}
	}
	return Preview{
		Valid:      s.World.IsValid(pos, cell, t),
		Affordable: s.Ledger.CanAfford(s.World.Catalog.Cost(t)),
		Unlocked:   progress.Allows(s.Stages, t),
	}
}

// TickProduction runs one production tick, retries planned buildings,
// checks stage thresholds and publishes the summary to subscribers.
func (s *Simulation) TickProduction(tick uint64) TickSummary {
	s.mu.Lock()
	s.LastTick = tick

	prod := ProductionTick(s.World, s.Ledger)
	s.LastProduction = prod
	s.PerSecond = PerSecond(prod.Produced, s.Interval.Seconds())
	s.checkSaturation(prod.Capacity)

	built, demolished := s.World.RetryPlanned(s.Ledger, s.unlocked)
	s.recordBuilt(built)
	s.recordDemolitions(demolished)
	settled := s.World.Settle(s.Ledger)
	s.recordDemolitions(settled)
	demolished = append(demolished, settled...)

	unlocked := progress.TryUnlockAll(s.Stages, s.Ledger)
	for _, n := range unlocked {
		st := progress.Find(s.Stages, n)
		s.record("unlock", fmt.Sprintf("Unlocked stage %d: %s", n, st.Title))
		slog.Info("stage unlocked", "tick", tick, "stage", n, "title", st.Title)
	}

	summary := TickSummary{
		Tick:       tick,
		Capacity:   prod.Capacity,
		Produced:   prod.Produced,
		PerSecond:  s.PerSecond,
		Resources:  s.Ledger.Amounts(),
		Unlocked:   unlocked,
		Built:      built,
		Demolished: demolished,
	}
	s.mu.Unlock()

	slog.Debug("production tick",
		"tick", tick,
		"storage", humanize.Comma(int64(prod.Capacity.Storage)),
		"cash", humanize.Comma(int64(prod.Capacity.Cash)),
		"produced", totalProduced(prod.Produced),
		"built", len(built),
		"demolished", len(demolished),
	)

	s.publish(summary)
	return summary
}

// checkSaturation records an event the first time a produced resource hits
// its cap, and re-arms once it drops below.
func (s *Simulation) checkSaturation(caps ledger.Capacity) {
	for _, r := range catalog.AllResources() {
		full := s.Ledger.Get(r) >= caps.Cap(r) && s.LastProduction.Produced[r] > 0
		if full && !s.saturated[r] {
			s.record("capacity", fmt.Sprintf("%s storage full at %s", r, humanize.Comma(int64(caps.Cap(r)))))
		}
		s.saturated[r] = full
	}
}

func (s *Simulation) recordBuilt(built []world.Built) {
	for _, b := range built {
		s.record("replan", fmt.Sprintf("Built planned %s at %s%s", b.Type, b.Parcel, b.Cell))
	}
}

func (s *Simulation) recordDemolitions(ds []world.Demolition) {
	for _, d := range ds {
		s.record("demolish", fmt.Sprintf("%s at %s%s lost its support and was demolished", d.Type, d.Parcel, d.Cell))
	}
}

// record appends an event. The caller holds the lock.
func (s *Simulation) record(category, desc string) {
	e := Event{Tick: s.LastTick, Description: desc, Category: category}
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
	s.pending = append(s.pending, e)
	if len(s.pending) > maxEvents {
		s.pending = s.pending[len(s.pending)-maxEvents:]
	}
}

// RecentEvents returns up to n of the newest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.Events) - n
	if start < 0 || n <= 0 {
		start = 0
	}
	return append([]Event(nil), s.Events[start:]...)
}

// DrainEvents returns and forgets the events not yet persisted.
func (s *Simulation) DrainEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// Subscribe registers a listener for tick summaries. Slow listeners miss
// summaries rather than stall the tick.
func (s *Simulation) Subscribe() (int, <-chan TickSummary) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	ch := make(chan TickSummary, 16)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe removes and closes a listener.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Simulation) publish(t TickSummary) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

func totalProduced(m map[catalog.Resource]int) string {
	keys := make([]catalog.Resource, 0, len(m))
	for r := range m {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := ""
	for _, r := range keys {
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s+%s", r.Symbol(), humanize.Comma(int64(m[r])))
	}
	return out
}

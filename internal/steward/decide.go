package steward

import (
	"fmt"
	"sort"
)

// Action kinds the steward can take.
const (
	ActionNone     = "none"
	ActionUnlock   = "unlock"
	ActionPurchase = "purchase"
)

// Decision is one action the steward wants to take.
type Decision struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
	Stage     int    `json:"stage,omitempty"`
	Plot      *Plot  `json:"plot,omitempty"`
}

// Decide turns an observation into at most one purchase plus one unlock per
// ready stage. It returns a single "none" decision when nothing applies.
func Decide(snap *Snapshot, h *Health) []Decision {
	var out []Decision

	for _, n := range h.ReadyStages {
		out = append(out, Decision{
			Action:    ActionUnlock,
			Stage:     n,
			Rationale: fmt.Sprintf("stage %d thresholds met", n),
		})
	}

	if p := cheapestAffordable(snap.Frontier); p != nil {
		out = append(out, Decision{
			Action:    ActionPurchase,
			Plot:      p,
			Rationale: fmt.Sprintf("plot (%d,%d) affordable at %d tax", p.X, p.Y, p.Cost),
		})
	}

	if len(out) == 0 {
		reason := "nothing to unlock and no affordable plot"
		if h.TaxShort > 0 {
			reason = fmt.Sprintf("saving up: %d tax short of the cheapest plot", h.TaxShort)
		}
		out = append(out, Decision{Action: ActionNone, Rationale: reason})
	}
	return out
}

// cheapestAffordable picks the cheapest affordable plot, breaking ties by
// position so repeated runs choose the same plot.
func cheapestAffordable(plots []Plot) *Plot {
	var candidates []Plot
	for _, p := range plots {
		if p.Affordable {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	p := candidates[0]
	return &p
}

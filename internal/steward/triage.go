package steward

import "sort"

// Health holds diagnostic signals derived from a Snapshot. Computed before
// any decision so it can be logged and remembered.
type Health struct {
	Saturated   []string // resources sitting at their cap while still produced
	CheapestLot int      // tax cost of the cheapest frontier plot, 0 if none
	TaxShort    int      // tax still missing for the cheapest plot
	ReadyStages []int    // locked stages whose thresholds are met
	Level       string   // "SATURATED", "STALLED", "GROWING"
}

// Triage computes a Health from the snapshot's data.
func Triage(snap *Snapshot) *Health {
	h := &Health{}

	tax := 0
	for _, r := range snap.Resources {
		if r.Key == "tax" {
			tax = r.Amount
		}
		if r.Cap > 0 && r.Amount >= r.Cap && r.PerSecond > 0 {
			h.Saturated = append(h.Saturated, r.Key)
		}
	}
	sort.Strings(h.Saturated)

	for _, p := range snap.Frontier {
		if h.CheapestLot == 0 || p.Cost < h.CheapestLot {
			h.CheapestLot = p.Cost
		}
	}
	if h.CheapestLot > tax {
		h.TaxShort = h.CheapestLot - tax
	}

	for _, st := range snap.Stages {
		if st.State != "unlocked" && st.Ready {
			h.ReadyStages = append(h.ReadyStages, st.Num)
		}
	}

	growing := false
	for _, r := range snap.Resources {
		if r.PerSecond > 0 {
			growing = true
			break
		}
	}
	switch {
	case len(h.Saturated) > 0:
		h.Level = "SATURATED"
	case !growing:
		h.Level = "STALLED"
	default:
		h.Level = "GROWING"
	}
	return h
}

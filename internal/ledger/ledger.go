// Package ledger tracks resource quantities and the storage capacity that
// bounds them.
package ledger

import (
	"sort"

	"github.com/talgya/homestead/internal/catalog"
)

// Ledger maps each resource to a non-negative quantity. Missing entries read as zero.
type Ledger map[catalog.Resource]int

// New returns a ledger with every resource present at zero.
func New() Ledger {
	l := make(Ledger)
	for _, r := range catalog.AllResources() {
		l[r] = 0
	}
	return l
}

// Get returns the quantity of r.
func (l Ledger) Get(r catalog.Resource) int { return l[r] }

// Set stores q for r, clamping negatives to zero.
func (l Ledger) Set(r catalog.Resource, q int) {
	if q < 0 {
		q = 0
	}
	l[r] = q
}

// AtLeast reports whether the ledger holds at least a.Qty of a.Resource.
func (l Ledger) AtLeast(a catalog.Amount) bool { return l[a.Resource] >= a.Qty }

// CanAfford reports whether every component of cost is covered.
func (l Ledger) CanAfford(cost []catalog.Amount) bool {
	need := make(map[catalog.Resource]int, len(cost))
	for _, a := range cost {
		need[a.Resource] += a.Qty
	}
	for r, q := range need {
		if l[r] < q {
			return false
		}
	}
	return true
}

// Debit subtracts cost when it is fully affordable. It charges nothing and
// returns false otherwise.
func (l Ledger) Debit(cost []catalog.Amount) bool {
	if !l.CanAfford(cost) {
		return false
	}
	for _, a := range cost {
		l[a.Resource] -= a.Qty
	}
	return true
}

// Credit adds q of r without exceeding limits.Cap(r). Surplus is discarded, and
// a quantity already above the cap is left alone rather than lowered.
func (l Ledger) Credit(r catalog.Resource, q int, limits Capacity) {
	if q <= 0 {
		return
	}
	limit := limits.Cap(r)
	cur := l[r]
	if cur >= limit {
		return
	}
	cur += q
	if cur > limit {
		cur = limit
	}
	l[r] = cur
}

// Refund credits pct percent of every cost component, capped by capacity.
func (l Ledger) Refund(cost []catalog.Amount, pct int, limits Capacity) {
	for _, a := range cost {
		l.Credit(a.Resource, scale(a.Qty, pct), limits)
	}
}

// Produce writes min(current+q, cap) for r. Unlike Credit it clamps a value
// already above the cap back down, so nothing is stored beyond capacity
// after a production write.
func (l Ledger) Produce(r catalog.Resource, q int, limits Capacity) {
	v := l[r] + q
	if limit := limits.Cap(r); v > limit {
		v = limit
	}
	if v < 0 {
		v = 0
	}
	l[r] = v
}

// Clone returns an independent copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for r, q := range l {
		out[r] = q
	}
	return out
}

// Amounts lists the non-zero entries in resource order.
func (l Ledger) Amounts() []catalog.Amount {
	out := make([]catalog.Amount, 0, len(l))
	for r, q := range l {
		if q != 0 {
			out = append(out, catalog.Amount{Resource: r, Qty: q})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// scale applies a percentage with round-half-up, as the original 0.75 refund rounded.
func scale(q, pct int) int {
	if pct == 100 {
		return q
	}
	return (q*pct + 50) / 100
}

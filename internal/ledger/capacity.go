package ledger

import "github.com/talgya/homestead/internal/catalog"

// Capacity is the pair of storage totals computed from every building's
// Storage and CashStorage output.
type Capacity struct {
	Storage int `json:"storage"`
	Cash    int `json:"cash"`
}

// Cap returns the ceiling for r. Currency-like resources use storage plus
// cash storage; everything else uses storage alone.
func (c Capacity) Cap(r catalog.Resource) int {
	switch r {
	case catalog.ResourceCashStorage, catalog.ResourceTax:
		return c.Storage + c.Cash
	default:
		return c.Storage
	}
}

// Add folds one building output, weighted by count, into the totals.
func (c *Capacity) Add(a catalog.Amount, count int) {
	switch a.Resource {
	case catalog.ResourceStorage:
		c.Storage += a.Qty * count
	case catalog.ResourceCashStorage:
		c.Cash += a.Qty * count
	}
}

package catalog

import "slices"

// Catalog holds the economic tables: what each building costs and produces.
// The zero-cost, zero-output entry is the answer for anything unmapped.
type Catalog struct {
	costs   [buildingTypeCount][]Amount
	outputs [buildingTypeCount][]Amount
}

var defaultCatalog = newDefault()

// Default returns the shared built-in catalog. Callers must not modify it;
// use Clone before applying overrides.
func Default() *Catalog { return defaultCatalog }

// Derive builds the Building value for t from the default catalog.
func Derive(t BuildingType) Building { return defaultCatalog.Derive(t) }

// Cost returns the construction cost of t from the default catalog.
func Cost(t BuildingType) []Amount { return defaultCatalog.Cost(t) }

// Output returns the per-tick output of one t from the default catalog.
func Output(t BuildingType) []Amount { return defaultCatalog.Output(t) }

func newDefault() *Catalog {
	c := &Catalog{}

	c.costs[BuildingHouse] = []Amount{{ResourceWood, 10}, {ResourceFood, 10}}
	c.costs[BuildingTree] = []Amount{{ResourceSeed, 5}}
	c.costs[BuildingCarrot] = []Amount{{ResourceSeed, 50}}
	c.costs[BuildingShop] = []Amount{{ResourceWood, 50}, {ResourceFood, 50}}
	c.costs[BuildingWarehouse] = []Amount{{ResourceWood, 100}}
	c.costs[BuildingBattery] = []Amount{{ResourceSteel, 20}, {ResourceFood, 200}}
	c.costs[BuildingFactory] = []Amount{{ResourceWood, 100}, {ResourceFood, 100}, {ResourceSeed, 100}}
	c.costs[BuildingSteelProduction] = []Amount{{ResourceWood, 150}}
	c.costs[BuildingBank] = []Amount{{ResourceWood, 200}, {ResourceFood, 200}, {ResourceSteel, 30}, {ResourceTax, 300}}
	c.costs[BuildingBasicResearchFacility] = []Amount{{ResourceWood, 100}, {ResourceFood, 100}, {ResourceSeed, 100}, {ResourceSteel, 100}}
	c.costs[BuildingConcreteMixer] = []Amount{{ResourceSteel, 100}, {ResourceBasicScience, 100}}
	c.costs[BuildingGauge] = []Amount{{ResourceSteel, 50}, {ResourceBasicScience, 300}}
	c.costs[BuildingAsphalt] = []Amount{{ResourceConcrete, 1}}
	c.costs[BuildingApartment] = []Amount{{ResourceFood, 1}, {ResourceConcrete, 50}, {ResourceSteel, 10}}
	c.costs[BuildingFireStation] = []Amount{{ResourceConcrete, 500}, {ResourceSteel, 20}}
	c.costs[BuildingPoliceStation] = []Amount{{ResourceConcrete, 500}, {ResourceFood, 500}}
	c.costs[BuildingHospital] = []Amount{{ResourceConcrete, 1000}, {ResourceFood, 1500}, {ResourceBasicScience, 50}}
	c.costs[BuildingFoodTruck] = []Amount{{ResourceFood, 5000}, {ResourceWood, 1000}}

	c.outputs[BuildingGrain] = []Amount{{ResourceFood, 1}, {ResourceSeed, 1}}
	c.outputs[BuildingCarrot] = []Amount{{ResourceFood, 3}}
	c.outputs[BuildingTree] = []Amount{{ResourceWood, 1}}
	c.outputs[BuildingShop] = []Amount{{ResourceTax, 2}}
	c.outputs[BuildingWarehouse] = []Amount{{ResourceStorage, 100}}
	c.outputs[BuildingSteelProduction] = []Amount{{ResourceSteel, 1}}
	c.outputs[BuildingBank] = []Amount{{ResourceCashStorage, 1000}}
	c.outputs[BuildingBasicResearchFacility] = []Amount{{ResourceBasicScience, 1}}
	c.outputs[BuildingConcreteMixer] = []Amount{{ResourceConcrete, 10}}
	c.outputs[BuildingCpu] = []Amount{{ResourceComputation, 1}}
	c.outputs[BuildingFoodTruck] = []Amount{{ResourceTax, 25}}

	return c
}

// Clone returns a deep copy that can be modified independently.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{}
	for i := range c.costs {
		out.costs[i] = slices.Clone(c.costs[i])
		out.outputs[i] = slices.Clone(c.outputs[i])
	}
	return out
}

// SetCost replaces the cost of t. Ground always stays free.
func (c *Catalog) SetCost(t BuildingType, cost []Amount) {
	if !t.Valid() || t == BuildingGround {
		return
	}
	c.costs[t] = slices.Clone(cost)
}

// SetOutput replaces the per-tick output of t.
func (c *Catalog) SetOutput(t BuildingType, out []Amount) {
	if !t.Valid() || t == BuildingGround {
		return
	}
	c.outputs[t] = slices.Clone(out)
}

// Cost returns a copy of the construction cost of t.
func (c *Catalog) Cost(t BuildingType) []Amount {
	if !t.Valid() {
		return nil
	}
	return slices.Clone(c.costs[t])
}

// Output returns a copy of the per-tick output of a single t.
func (c *Catalog) Output(t BuildingType) []Amount {
	if !t.Valid() {
		return nil
	}
	return slices.Clone(c.outputs[t])
}

// Derive builds the full Building value for t. It is total: an undeclared
// type derives to a free building with no rules.
func (c *Catalog) Derive(t BuildingType) Building {
	if !t.Valid() {
		return Building{Type: t, Symbol: t.Symbol()}
	}
	required, optional, tile := adjacency(t)
	return Building{
		Type:        t,
		Cost:        c.Cost(t),
		RequiredAdj: required,
		OptionalAdj: optional,
		TileAdj:     tile,
		Symbol:      t.Symbol(),
	}
}

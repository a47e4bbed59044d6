package catalog

import "slices"

// Amount is a quantity of one resource.
type Amount struct {
	Resource Resource `json:"resource"`
	Qty      int      `json:"amount"`
}

// Building is the derived, immutable description of a building type.
// Two Buildings derived from the same catalog and type are equal.
type Building struct {
	Type        BuildingType   `json:"type"`
	Cost        []Amount       `json:"cost"`
	RequiredAdj []BuildingType `json:"required_adj"` // all must be orthogonal neighbours
	OptionalAdj []BuildingType `json:"optional_adj"` // tolerated neighbours beyond the required set
	TileAdj     []BuildingType `json:"tile_adj"`     // must exist somewhere in the parcel
	Symbol      string         `json:"symbol"`
}

// IsGround reports whether b is the empty cell.
func (b Building) IsGround() bool { return b.Type == BuildingGround }

// Allows reports whether a neighbour of type t is tolerated next to b.
func (b Building) Allows(t BuildingType) bool {
	return slices.Contains(b.RequiredAdj, t) || slices.Contains(b.OptionalAdj, t)
}

// Ground returns the empty-cell building.
func Ground() Building { return Derive(BuildingGround) }

// Buildings in the city block: all tolerate each other and need asphalt access.
var cityTiles = []BuildingType{
	BuildingBank,
	BuildingFireStation,
	BuildingPoliceStation,
	BuildingHospital,
	BuildingApartment,
	BuildingFoodTruck,
	BuildingCpu,
}

// City tiles that produce something; each needs an apartment in the parcel.
var productionCityTiles = []BuildingType{BuildingBank, BuildingFoodTruck, BuildingCpu}

// Pairs that may sit next to each other, in either order.
var compatiblePairs = [][2]BuildingType{
	{BuildingHouse, BuildingGrain},
	{BuildingWarehouse, BuildingShop},
	{BuildingBattery, BuildingFactory},
	{BuildingSteelProduction, BuildingFactory},
	{BuildingHouse, BuildingBasicResearchFacility},
	{BuildingBasicResearchFacility, BuildingBattery},
	{BuildingFactory, BuildingConcreteMixer},
	{BuildingConcreteMixer, BuildingGauge},
	{BuildingGrain, BuildingCarrot},
}

var requiredNeighbours = map[BuildingType][]BuildingType{
	BuildingBattery:               {BuildingFactory},
	BuildingSteelProduction:       {BuildingFactory},
	BuildingConcreteMixer:         {BuildingFactory, BuildingGauge},
	BuildingBasicResearchFacility: {BuildingHouse, BuildingBattery},
}

var requiredInParcel = map[BuildingType][]BuildingType{
	BuildingShop:      {BuildingGrain, BuildingHouse, BuildingTree},
	BuildingGrain:     {BuildingHouse},
	BuildingTree:      {BuildingHouse},
	BuildingCarrot:    {BuildingHouse},
	BuildingApartment: {BuildingFireStation, BuildingHospital, BuildingPoliceStation},
}

// adjacency derives the three rule sets for t. It does not depend on the
// economic tables, so every catalog shares it.
func adjacency(t BuildingType) (required, optional, tile []BuildingType) {
	required = slices.Clone(requiredNeighbours[t])
	tile = slices.Clone(requiredInParcel[t])

	if t == BuildingGround {
		return required, optional, tile
	}

	// Every building tolerates open ground and its own kind.
	optional = append(optional, BuildingGround, t)

	for _, p := range compatiblePairs {
		if p[0] == t {
			optional = append(optional, p[1])
		}
		if p[1] == t {
			optional = append(optional, p[0])
		}
	}

	if slices.Contains(cityTiles, t) {
		optional = append(optional, cityTiles...)
		required = append(required, BuildingAsphalt)
	}
	if t == BuildingAsphalt {
		optional = append(optional, cityTiles...)
	}
	if slices.Contains(productionCityTiles, t) {
		tile = append(tile, BuildingApartment)
	}

	return required, dedupe(optional), tile
}

func dedupe(in []BuildingType) []BuildingType {
	out := in[:0]
	for _, t := range in {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

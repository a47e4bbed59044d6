// Package catalog defines the building and resource kinds of the settlement
// and the static tables that describe them: cost, output, adjacency rules and
// stage membership. Everything here is pure and safe to share.
package catalog

import (
	"fmt"
	"strings"
)

// BuildingType enumerates every kind of building a cell can hold.
// BuildingGround is the empty cell.
type BuildingType uint8

const (
	BuildingGround BuildingType = iota
	BuildingHouse
	BuildingGrain
	BuildingTree
	BuildingShop
	BuildingWarehouse
	BuildingBattery
	BuildingFactory
	BuildingSteelProduction
	BuildingBank
	BuildingBasicResearchFacility
	BuildingConcreteMixer
	BuildingGauge
	BuildingAsphalt
	BuildingApartment
	BuildingFireStation
	BuildingPoliceStation
	BuildingCarrot
	BuildingHospital
	BuildingFoodTruck
	BuildingLightning
	BuildingSiren
	BuildingAirTrafficControl
	BuildingRunway
	BuildingCpu
	BuildingStairsIntoTheVoid
	BuildingGarage
	BuildingLightHouse
	BuildingLightbulb
	BuildingMosque
	BuildingNuclearPowerPlant
	BuildingRocket
	BuildingRobotFactory
	BuildingCookie
	BuildingDatabase
	BuildingPalmTree
	BuildingTurret

	buildingTypeCount
)

// Resource enumerates the quantities tracked by the ledger.
// ResourceStorage and ResourceCashStorage define capacity.
type Resource uint8

const (
	ResourceFood Resource = iota
	ResourceTax
	ResourceWood
	ResourceSeed
	ResourceStorage
	ResourceCashStorage
	ResourceSteel
	ResourceBasicScience
	ResourceConcrete
	ResourceComputation
	ResourcePlaceholder

	resourceCount
)

var buildingNames = [buildingTypeCount]string{
	BuildingGround:                "Ground",
	BuildingHouse:                 "House",
	BuildingGrain:                 "Grain",
	BuildingTree:                  "Tree",
	BuildingShop:                  "Shop",
	BuildingWarehouse:             "Warehouse",
	BuildingBattery:               "Battery",
	BuildingFactory:               "Factory",
	BuildingSteelProduction:       "Steel Mill",
	BuildingBank:                  "Bank",
	BuildingBasicResearchFacility: "Basic Research Facility",
	BuildingConcreteMixer:         "Concrete Mixer",
	BuildingGauge:                 "Gauge",
	BuildingAsphalt:               "Asphalt",
	BuildingApartment:             "Apartment",
	BuildingFireStation:           "Fire Station",
	BuildingPoliceStation:         "Police Station",
	BuildingCarrot:                "Carrot",
	BuildingHospital:              "Hospital",
	BuildingFoodTruck:             "Food Truck",
	BuildingLightning:             "Lightning",
	BuildingSiren:                 "Siren",
	BuildingAirTrafficControl:     "Air Traffic Control",
	BuildingRunway:                "Runway",
	BuildingCpu:                   "Computational Research Facility",
	BuildingStairsIntoTheVoid:     "Stairs Into The Void",
	BuildingGarage:                "Garage",
	BuildingLightHouse:            "Light House",
	BuildingLightbulb:             "Lightbulb",
	BuildingMosque:                "Mosque",
	BuildingNuclearPowerPlant:     "Nuclear Power Plant",
	BuildingRocket:                "Rocket",
	BuildingRobotFactory:          "Robot Factory",
	BuildingCookie:                "Cookie",
	BuildingDatabase:              "Database",
	BuildingPalmTree:              "Palm Tree",
	BuildingTurret:                "Turret",
}

// Two-column glyphs so a parcel renders as a fixed-width grid.
var buildingSymbols = [buildingTypeCount]string{
	BuildingGround:                "..",
	BuildingHouse:                 "Ho",
	BuildingGrain:                 "Gr",
	BuildingTree:                  "Tr",
	BuildingShop:                  "Sh",
	BuildingWarehouse:             "Wh",
	BuildingBattery:               "Bt",
	BuildingFactory:               "Fa",
	BuildingSteelProduction:       "St",
	BuildingBank:                  "Bk",
	BuildingBasicResearchFacility: "Rs",
	BuildingConcreteMixer:         "Cm",
	BuildingGauge:                 "Ga",
	BuildingAsphalt:               "##",
	BuildingApartment:             "Ap",
	BuildingFireStation:           "Fs",
	BuildingPoliceStation:         "Ps",
	BuildingCarrot:                "Ca",
	BuildingHospital:              "Hs",
	BuildingFoodTruck:             "Ft",
	BuildingLightning:             "Li",
	BuildingSiren:                 "Si",
	BuildingAirTrafficControl:     "At",
	BuildingRunway:                "Rw",
	BuildingCpu:                   "Cp",
	BuildingStairsIntoTheVoid:     "Sv",
	BuildingGarage:                "Gg",
	BuildingLightHouse:            "Lh",
	BuildingLightbulb:             "Lb",
	BuildingMosque:                "Mq",
	BuildingNuclearPowerPlant:     "Np",
	BuildingRocket:                "Ro",
	BuildingRobotFactory:          "Rf",
	BuildingCookie:                "Ck",
	BuildingDatabase:              "Db",
	BuildingPalmTree:              "Pt",
	BuildingTurret:                "Tu",
}

var resourceNames = [resourceCount]string{
	ResourceFood:         "Food",
	ResourceTax:          "Tax",
	ResourceWood:         "Wood",
	ResourceSeed:         "Seeds",
	ResourceStorage:      "Storage",
	ResourceCashStorage:  "Cash Storage",
	ResourceSteel:        "Steel",
	ResourceBasicScience: "Basic Science",
	ResourceConcrete:     "Concrete",
	ResourceComputation:  "Computation",
	ResourcePlaceholder:  "Placeholder Resource",
}

var resourceSymbols = [resourceCount]string{
	ResourceFood:         "F",
	ResourceTax:          "$",
	ResourceWood:         "W",
	ResourceSeed:         "s",
	ResourceStorage:      "S",
	ResourceCashStorage:  "C",
	ResourceSteel:        "I",
	ResourceBasicScience: "B",
	ResourceConcrete:     "K",
	ResourceComputation:  "P",
	ResourcePlaceholder:  "?",
}

// Identifier-style spellings that differ from the display names.
var buildingAliases = map[string]BuildingType{
	"steel_production": BuildingSteelProduction,
	"cpu":              BuildingCpu,
	"lighthouse":       BuildingLightHouse,
}

var resourceAliases = map[string]Resource{
	"seed":        ResourceSeed,
	"placeholder": ResourcePlaceholder,
}

// AllBuildingTypes returns every building type in declaration order.
func AllBuildingTypes() []BuildingType {
	out := make([]BuildingType, 0, buildingTypeCount)
	for t := BuildingType(0); t < buildingTypeCount; t++ {
		out = append(out, t)
	}
	return out
}

// AllResources returns every resource in declaration order.
func AllResources() []Resource {
	out := make([]Resource, 0, resourceCount)
	for r := Resource(0); r < resourceCount; r++ {
		out = append(out, r)
	}
	return out
}

// Valid reports whether t is a declared building type.
func (t BuildingType) Valid() bool { return t < buildingTypeCount }

// Valid reports whether r is a declared resource.
func (r Resource) Valid() bool { return r < resourceCount }

// Name returns the display name of the building.
func (t BuildingType) Name() string {
	if !t.Valid() {
		return fmt.Sprintf("BuildingType(%d)", uint8(t))
	}
	return buildingNames[t]
}

// Symbol returns the two-column glyph used when rendering a parcel.
func (t BuildingType) Symbol() string {
	if !t.Valid() {
		return "??"
	}
	return buildingSymbols[t]
}

// Key returns the snake_case identifier used in config files and the API.
func (t BuildingType) Key() string { return keyOf(t.Name()) }

func (t BuildingType) String() string { return t.Name() }

// Name returns the display name of the resource.
func (r Resource) Name() string {
	if !r.Valid() {
		return fmt.Sprintf("Resource(%d)", uint8(r))
	}
	return resourceNames[r]
}

// Symbol returns a one-character glyph for the resource.
func (r Resource) Symbol() string {
	if !r.Valid() {
		return "?"
	}
	return resourceSymbols[r]
}

// Key returns the snake_case identifier used in config files and the API.
func (r Resource) Key() string { return keyOf(r.Name()) }

func (r Resource) String() string { return r.Name() }

// ParseBuildingType accepts a key ("steel_mill") or a display name ("Steel Mill"),
// case-insensitively.
func ParseBuildingType(s string) (BuildingType, bool) {
	k := keyOf(s)
	if t, ok := buildingAliases[k]; ok {
		return t, true
	}
	for t := BuildingType(0); t < buildingTypeCount; t++ {
		if t.Key() == k {
			return t, true
		}
	}
	return BuildingGround, false
}

// ParseResource accepts a key ("basic_science") or a display name, case-insensitively.
func ParseResource(s string) (Resource, bool) {
	k := keyOf(s)
	if r, ok := resourceAliases[k]; ok {
		return r, true
	}
	for r := Resource(0); r < resourceCount; r++ {
		if r.Key() == k {
			return r, true
		}
	}
	return ResourceFood, false
}

func (t BuildingType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid building type %d", uint8(t))
	}
	return []byte(t.Key()), nil
}

func (t *BuildingType) UnmarshalText(b []byte) error {
	v, ok := ParseBuildingType(string(b))
	if !ok {
		return fmt.Errorf("unknown building type %q", string(b))
	}
	*t = v
	return nil
}

func (r Resource) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid resource %d", uint8(r))
	}
	return []byte(r.Key()), nil
}

func (r *Resource) UnmarshalText(b []byte) error {
	v, ok := ParseResource(string(b))
	if !ok {
		return fmt.Errorf("unknown resource %q", string(b))
	}
	*r = v
	return nil
}

func keyOf(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), "_")
}

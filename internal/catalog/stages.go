package catalog

import "fmt"

// StageDef describes one progression stage: the buildings it unlocks and the
// resource thresholds that unlock it automatically.
type StageDef struct {
	Num         int            `json:"num"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Buildings   []BuildingType `json:"buildings"`
	UnlockAt    []Amount       `json:"unlock_at"`
}

// StageCount is the number of stages defined.
const StageCount = 6

// Threshold used for the final stage, which is effectively unlock-early only.
const unreachable = 999999

// Stages returns the stage definitions in order. Stage 1 has no thresholds.
func Stages() []StageDef {
	defs := make([]StageDef, 0, StageCount)
	for n := 1; n <= StageCount; n++ {
		defs = append(defs, Stage(n))
	}
	return defs
}

// Stage returns the definition of stage n. An unknown number yields a stage
// with no buildings that can never unlock on its own.
func Stage(n int) StageDef {
	d := StageDef{Num: n}
	switch n {
	case 1:
		d.Title = "Just a simple farmer"
		d.Description = "Plop down your house and some crops."
		d.Buildings = []BuildingType{BuildingHouse, BuildingGrain}
	case 2:
		d.Title = "Power Up"
		d.Description = "Plant trees, open a shop and build a warehouse."
		d.Buildings = []BuildingType{BuildingTree, BuildingShop, BuildingWarehouse}
		d.UnlockAt = []Amount{{ResourceSeed, 50}}
	case 3:
		d.Title = "Industrial Revolution"
		d.Description = "Factories operate steel mills and batteries."
		d.Buildings = []BuildingType{BuildingFactory, BuildingBattery, BuildingSteelProduction}
		d.UnlockAt = []Amount{{ResourceWood, 100}}
	case 4:
		d.Title = "Research"
		d.Description = "Build a basic research facility, a concrete mixer, a gauge and asphalt."
		d.Buildings = []BuildingType{
			BuildingBasicResearchFacility, BuildingConcreteMixer, BuildingGauge,
			BuildingAsphalt, BuildingCarrot,
		}
		d.UnlockAt = []Amount{{ResourceStorage, 200}}
	case 5:
		d.Title = "City"
		d.Description = "Expand into a city. Everything in a city needs asphalt access."
		d.Buildings = []BuildingType{
			BuildingBank, BuildingApartment, BuildingFireStation, BuildingPoliceStation,
			BuildingHospital, BuildingFoodTruck, BuildingCpu,
		}
		d.UnlockAt = []Amount{{ResourceConcrete, 50}}
	case 6:
		d.Title = "Beyond"
		d.Description = "Experimental buildings with no economy yet."
		d.Buildings = []BuildingType{
			BuildingLightning, BuildingSiren, BuildingAirTrafficControl, BuildingRunway,
			BuildingStairsIntoTheVoid, BuildingGarage, BuildingLightHouse, BuildingLightbulb,
			BuildingMosque, BuildingNuclearPowerPlant, BuildingRocket, BuildingRobotFactory,
			BuildingCookie, BuildingDatabase, BuildingPalmTree, BuildingTurret,
		}
		fallthrough
	default:
		d.UnlockAt = nil
		for _, r := range AllResources() {
			d.UnlockAt = append(d.UnlockAt, Amount{r, unreachable})
		}
	}
	if d.Title == "" {
		d.Title = fmt.Sprintf("Stage %d", n)
	}
	return d
}

// StageOf returns the number of the stage that unlocks t, or 0 for Ground
// and for types no stage lists.
func StageOf(t BuildingType) int {
	for n := 1; n <= StageCount; n++ {
		for _, b := range Stage(n).Buildings {
			if b == t {
				return n
			}
		}
	}
	return 0
}

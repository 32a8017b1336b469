// Package catalog holds the built-in activity definitions and citation texts
// the computation engine derives emission figures from. The catalog is loaded
// once at process start and is read-only afterwards.
package catalog

// Version identifies the current generation of the built-in catalog. It is
// used as the dataset version whenever neither configuration nor a backend
// response supplies one.
const Version = "2025.08"

// Activity describes one emission-producing activity. Factor is grams of
// CO2e per unit of quantity; DefaultQuantity is the assumed weekly quantity
// when a request carries no override. Uncertainty is the symmetric band
// fraction; zero means "use the engine default".
type Activity struct {
	ID              string  `json:"id"`
	Label           string  `json:"label"`
	Category        string  `json:"category"`
	Layer           string  `json:"layer"`
	Factor          float64 `json:"factor"`
	DefaultQuantity float64 `json:"default_quantity"`
	Reference       string  `json:"reference"`
	Uncertainty     float64 `json:"uncertainty,omitempty"`
}

// builtin is the catalog in canonical order. Figure rows, citation ordering,
// and bubble tie-breaks all follow this order.
var builtin = []Activity{
	{
		ID:              "TRAVEL.COMMUTE.CAR.WORKDAY",
		Label:           "Car commute (workday)",
		Category:        "Travel",
		Layer:           "transport",
		Factor:          7200,
		DefaultQuantity: 1.8,
		Reference:       "SRC.GHG.TRANSPORT",
		Uncertainty:     0.15,
	},
	{
		ID:              "TRAVEL.COMMUTE.RAIL.WORKDAY",
		Label:           "Rail commute (workday)",
		Category:        "Travel",
		Layer:           "transport",
		Factor:          1400,
		DefaultQuantity: 2.0,
		Reference:       "SRC.GHG.TRANSPORT",
	},
	{
		ID:              "TRAVEL.FLIGHT.SHORTHAUL.LEG",
		Label:           "Short-haul flight leg",
		Category:        "Travel",
		Layer:           "aviation",
		Factor:          156000,
		DefaultQuantity: 0.04,
		Reference:       "SRC.ICAO.AVIATION",
		Uncertainty:     0.3,
	},
	{
		ID:              "TRAVEL.FLIGHT.LONGHAUL.LEG",
		Label:           "Long-haul flight leg",
		Category:        "Travel",
		Layer:           "aviation",
		Factor:          520000,
		DefaultQuantity: 0.02,
		Reference:       "SRC.ICAO.AVIATION",
		Uncertainty:     0.3,
	},
	{
		ID:              "FOOD.DIET.OMNIVORE.WEEK",
		Label:           "Omnivore diet (week)",
		Category:        "Food",
		Layer:           "diet",
		Factor:          48000,
		DefaultQuantity: 1,
		Reference:       "SRC.DIET",
		Uncertainty:     0.25,
	},
	{
		ID:              "FOOD.DIET.VEGETARIAN.WEEK",
		Label:           "Vegetarian diet (week)",
		Category:        "Food",
		Layer:           "diet",
		Factor:          29000,
		DefaultQuantity: 0,
		Reference:       "SRC.DIET",
		Uncertainty:     0.25,
	},
	{
		ID:              "FOOD.WASTE.HOUSEHOLD.KG",
		Label:           "Household food waste (kg)",
		Category:        "Food",
		Layer:           "waste",
		Factor:          2500,
		DefaultQuantity: 1.5,
		Reference:       "SRC.FAO.FOODWASTE",
		Uncertainty:     0.2,
	},
	{
		ID:              "HOME.ENERGY.ELECTRICITY.KWH",
		Label:           "Grid electricity (kWh)",
		Category:        "Home",
		Layer:           "energy",
		Factor:          233,
		DefaultQuantity: 62,
		Reference:       "SRC.GRID.INTENSITY",
	},
	{
		ID:              "HOME.ENERGY.GAS.KWH",
		Label:           "Natural gas (kWh)",
		Category:        "Home",
		Layer:           "energy",
		Factor:          183,
		DefaultQuantity: 95,
		Reference:       "SRC.GRID.INTENSITY",
	},
	{
		ID:              "HOME.WATER.HEATED.LITER",
		Label:           "Heated water (liter)",
		Category:        "Home",
		Layer:           "water",
		Factor:          14,
		DefaultQuantity: 280,
		Reference:       "SRC.WATER.HEAT",
		Uncertainty:     0.2,
	},
	{
		ID:              "GOODS.APPAREL.ITEM",
		Label:           "Apparel item",
		Category:        "Goods",
		Layer:           "consumption",
		Factor:          15000,
		DefaultQuantity: 0.3,
		Reference:       "SRC.LCA.APPAREL",
		Uncertainty:     0.35,
	},
	{
		ID:              "GOODS.ELECTRONICS.DEVICE",
		Label:           "Electronics device",
		Category:        "Goods",
		Layer:           "consumption",
		Factor:          95000,
		DefaultQuantity: 0.01,
		Reference:       "SRC.LCA.ELECTRONICS",
		Uncertainty:     0.4,
	},
	{
		ID:              "DIGITAL.STREAMING.VIDEO.HOUR",
		Label:           "Video streaming (hour)",
		Category:        "Digital",
		Layer:           "digital",
		Factor:          55,
		DefaultQuantity: 9,
		Reference:       "SRC.DIGITAL.CARBON",
		Uncertainty:     0.3,
	},
	{
		ID:              "DIGITAL.CLOUD.STORAGE.GB",
		Label:           "Cloud storage (GB)",
		Category:        "Digital",
		Layer:           "digital",
		Factor:          10,
		DefaultQuantity: 0,
		Reference:       "SRC.DIGITAL.CARBON",
		Uncertainty:     0.3,
	},
}

// referenceTexts maps citation keys to their rendered reference texts.
var referenceTexts = map[string]string{
	"SRC.GHG.TRANSPORT":   "GHG Protocol: mobile combustion emission factors for passenger transport, 2024 revision.",
	"SRC.ICAO.AVIATION":   "ICAO carbon emissions calculator methodology, version 13.",
	"SRC.DIET":            "Scarborough et al.: dietary greenhouse gas emissions of meat-eaters, fish-eaters, vegetarians and vegans.",
	"SRC.FAO.FOODWASTE":   "FAO: food wastage footprint, impacts on natural resources.",
	"SRC.GRID.INTENSITY":  "National grid average carbon intensity statistics, rolling annual figure.",
	"SRC.WATER.HEAT":      "Energy Saving Trust: at home with water, heated water carbon factors.",
	"SRC.LCA.APPAREL":     "WRAP: valuing our clothes, life-cycle analysis of garment production.",
	"SRC.LCA.ELECTRONICS": "Life-cycle assessment of consumer electronics manufacturing, meta-analysis.",
	"SRC.DIGITAL.CARBON":  "DIMPACT working papers: the carbon footprint of streaming media and cloud storage.",
}

// Builtin returns the built-in catalog in canonical order. The returned slice
// is shared; callers must treat it as read-only.
func Builtin() []Activity {
	return builtin
}

// ReferenceText resolves a citation key to its reference text.
func ReferenceText(key string) (string, bool) {
	text, ok := referenceTexts[key]
	return text, ok
}

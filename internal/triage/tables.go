package triage

import "regexp"

// Keyword tables are fixed at startup and never mutated. Slice order is the
// tie-break: when two categories or tiers score equal, the earlier one wins.

const (
	CategoryWater       = "Water"
	CategoryElectricity = "Electricity"
	CategoryRoads       = "Roads"
	CategorySanitation  = "Sanitation"
	CategoryHousing     = "Housing"
	CategoryParks       = "Parks"
	CategoryEmergency   = "Emergency"
	CategoryOther       = "Other"
)

type keyword struct {
	term   string
	weight float64
	re     *regexp.Regexp
}

type keywordTable struct {
	name     string
	keywords []keyword
}

func wholeWord(term string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
}

// Longer category keywords carry more signal.
func categoryWeight(term string) float64 {
	if len(term) > 4 {
		return 1.5
	}
	return 1.0
}

// Tier keywords are weighted by their length, so specific phrases dominate.
func tierWeight(term string) float64 {
	return float64(len(term)) / 5.0
}

func buildTable(name string, terms []string, weight func(string) float64) keywordTable {
	kws := make([]keyword, 0, len(terms))
	for _, term := range terms {
		kws = append(kws, keyword{term: term, weight: weight(term), re: wholeWord(term)})
	}
	return keywordTable{name: name, keywords: kws}
}

var categoryTables = []keywordTable{
	buildTable(CategoryWater, []string{
		"water", "tap", "pipe", "leak", "burst", "pressure", "supply", "outage",
		"draining", "flooding", "sewage", "drainage", "blockage", "smell",
		"contaminated", "dirty", "brown", "chlorine",
	}, categoryWeight),
	buildTable(CategoryElectricity, []string{
		"power", "electricity", "outage", "blackout", "transformer", "cable",
		"pole", "meter", "billing", "streetlight", "lighting", "voltage",
		"electrical", "spark", "wire", "connection",
	}, categoryWeight),
	buildTable(CategoryRoads, []string{
		"road", "street", "pothole", "tar", "asphalt", "traffic", "sign",
		"marking", "intersection", "sidewalk", "pavement", "crossing",
		"bridge", "surface", "crack", "repair",
	}, categoryWeight),
	buildTable(CategorySanitation, []string{
		"garbage", "trash", "refuse", "collection", "bin", "dump", "litter",
		"cleaning", "sweep", "toilet", "public", "hygiene", "waste",
		"recycling", "landfill",
	}, categoryWeight),
	buildTable(CategoryHousing, []string{
		"housing", "rdp", "house", "building", "construction", "maintenance",
		"repair", "roof", "window", "door", "structure", "property",
	}, categoryWeight),
	buildTable(CategoryParks, []string{
		"park", "garden", "playground", "grass", "tree", "maintenance",
		"recreation", "facility", "sport", "field", "bench",
	}, categoryWeight),
}

const (
	tierUrgent = iota
	tierHigh
	tierMedium
	tierLow
)

var tierTables = []keywordTable{
	tierUrgent: buildTable("urgent", []string{
		"emergency", "urgent", "immediate", "dangerous", "hazard", "risk",
		"injury", "accident", "fire", "explosion", "gas", "toxic",
		"flooding", "burst", "collapse",
	}, tierWeight),
	tierHigh: buildTable("high", []string{
		"major", "serious", "important", "critical", "affecting many",
		"whole area", "community", "health", "safety", "children",
	}, tierWeight),
	tierMedium: buildTable("medium", []string{
		"issue", "problem", "concern", "request", "help", "fix",
		"repair", "maintenance", "service",
	}, tierWeight),
	tierLow: buildTable("low", []string{
		"minor", "small", "cosmetic", "aesthetic", "suggestion",
		"improvement", "enhancement", "when possible",
	}, tierWeight),
}

var (
	breakageRe    = regexp.MustCompile(`\b(can't|cannot|broken|burst|leak|stop)\b`)
	elapsedTimeRe = regexp.MustCompile(`\b(day|week|month)s?\b.*\bago\b`)
)

// DefaultDepartment receives complaints whose category has no dedicated
// department, matching the routing fallback.
const DefaultDepartment = "water_sanitation"

var departmentByCategory = map[string]string{
	CategoryWater:       "water_sanitation",
	CategoryElectricity: "electrical",
	CategoryRoads:       "roads_infrastructure",
	CategorySanitation:  "waste_management",
	CategoryHousing:     "housing",
	CategoryParks:       "parks_recreation",
	CategoryEmergency:   "emergency_services",
}

// DepartmentFor maps a complaint category to its department code.
func DepartmentFor(category string) string {
	if code, ok := departmentByCategory[category]; ok {
		return code
	}
	return DefaultDepartment
}

// MenuCategories lists the categories offered in the lodge-complaint menu, in
// menu-digit order.
var MenuCategories = []string{
	CategoryWater,
	CategoryElectricity,
	CategorySanitation,
	CategoryRoads,
	CategoryHousing,
	CategoryParks,
	CategoryOther,
}

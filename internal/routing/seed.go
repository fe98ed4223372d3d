package routing

import "github.com/muni-info/backend/internal/models"

// DefaultDepartments seeds the registry with the municipal departments and
// the complaint volume each can carry at once.
func DefaultDepartments() []models.Department {
	return []models.Department{
		{
			Code:        "water_sanitation",
			Name:        "Water and Sanitation Department",
			Capacity:    50,
			Specialties: []string{"water", "sanitation", "sewage", "drainage", "plumbing"},
		},
		{
			Code:        "electrical",
			Name:        "Electrical Services Department",
			Capacity:    30,
			Specialties: []string{"electricity", "power", "streetlights", "transformer", "outage"},
		},
		{
			Code:        "roads_infrastructure",
			Name:        "Roads and Infrastructure Department",
			Capacity:    40,
			Specialties: []string{"roads", "potholes", "traffic", "bridges", "sidewalks"},
		},
		{
			Code:        "waste_management",
			Name:        "Waste Management Department",
			Capacity:    25,
			Specialties: []string{"garbage", "refuse", "recycling", "bins", "collection"},
		},
		{
			Code:        "housing",
			Name:        "Human Settlements Department",
			Capacity:    20,
			Specialties: []string{"housing", "rdp", "maintenance", "repairs", "construction"},
		},
		{
			Code:        "parks_recreation",
			Name:        "Parks and Recreation Department",
			Capacity:    15,
			Specialties: []string{"parks", "gardens", "playgrounds", "sports", "recreation"},
		},
		{
			Code:        "emergency_services",
			Name:        "Emergency Services Department",
			Capacity:    20,
			Specialties: []string{"emergency", "fire", "rescue", "disaster", "safety"},
		},
	}
}

// DefaultStaff seeds the registry with field staff until a staff directory
// integration replaces it.
func DefaultStaff() []models.Staff {
	return []models.Staff{
		{ID: "staff-001", Name: "Sipho Dlamini", Department: "water_sanitation", Skills: []string{"plumbing", "water", "pipes"}, CurrentLoad: 2, MaxCapacity: 8, PerformanceScore: 1.2, Available: true},
		{ID: "staff-002", Name: "Annelie Botha", Department: "electrical", Skills: []string{"electrical", "power", "wiring"}, CurrentLoad: 1, MaxCapacity: 10, PerformanceScore: 1.1, Available: true},
		{ID: "staff-003", Name: "David Nkosi", Department: "roads_infrastructure", Skills: []string{"roads", "asphalt", "maintenance"}, CurrentLoad: 3, MaxCapacity: 6, PerformanceScore: 0.9, Available: true},
		{ID: "staff-004", Name: "Priya Naidoo", Department: "waste_management", Skills: []string{"waste", "recycling", "collection"}, CurrentLoad: 1, MaxCapacity: 8, PerformanceScore: 1.3, Available: true},
		{ID: "staff-005", Name: "Pieter van Wyk", Department: "housing", Skills: []string{"construction", "maintenance", "repairs"}, CurrentLoad: 0, MaxCapacity: 5, PerformanceScore: 1.0, Available: true},
		{ID: "staff-006", Name: "Lerato Molefe", Department: "parks_recreation", Skills: []string{"landscaping", "maintenance", "sports"}, CurrentLoad: 2, MaxCapacity: 7, PerformanceScore: 1.1, Available: true},
		{ID: "staff-007", Name: "Grace Oliphant", Department: "emergency_services", Skills: []string{"emergency", "fire", "rescue"}, CurrentLoad: 0, MaxCapacity: 12, PerformanceScore: 1.4, Available: true},
	}
}

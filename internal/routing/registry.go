package routing

import (
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/muni-info/backend/internal/models"
)

// Registry holds the live department and staff records with their load
// counters. All counter mutation goes through the acquire/release methods;
// one mutex covers the records so every check-then-increment is atomic.
//
// Staff capacity is strict: TryAcquireStaff never takes a member past
// MaxCapacity. Department load is a demand signal, not an admission gate,
// so AcquireDepartment increments past capacity and only logs the overflow.
type Registry struct {
	mu          sync.Mutex
	logger      zerolog.Logger
	departments map[string]*models.Department
	staff       map[string]*models.Staff
	staffIDs    []string
}

func NewRegistry(departments []models.Department, staff []models.Staff, logger zerolog.Logger) *Registry {
	r := &Registry{
		logger:      logger,
		departments: make(map[string]*models.Department, len(departments)),
		staff:       make(map[string]*models.Staff, len(staff)),
	}
	for i := range departments {
		d := departments[i]
		r.departments[d.Code] = &d
	}
	for i := range staff {
		s := staff[i]
		r.staff[s.ID] = &s
		r.staffIDs = append(r.staffIDs, s.ID)
	}
	sort.Strings(r.staffIDs)
	return r
}

// Department returns a copy of the record for code.
func (r *Registry) Department(code string) (models.Department, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.departments[code]
	if !ok {
		return models.Department{}, false
	}
	return *d, true
}

// Departments returns copies of all records, ordered by code.
func (r *Registry) Departments() []models.Department {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Department, 0, len(r.departments))
	for _, d := range r.departments {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// StaffInDepartment returns copies of the available staff in a department,
// ordered by id so scoring iterates deterministically.
func (r *Registry) StaffInDepartment(code string) []models.Staff {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Staff
	for _, id := range r.staffIDs {
		s := r.staff[id]
		if s.Department == code && s.Available {
			out = append(out, *s)
		}
	}
	return out
}

// TryAcquireStaff increments a staff member's load unless they are already at
// MaxCapacity or unknown. The check and increment happen under one lock.
func (r *Registry) TryAcquireStaff(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok || !s.Available || s.CurrentLoad >= s.MaxCapacity {
		return false
	}
	s.CurrentLoad++
	return true
}

func (r *Registry) ReleaseStaff(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok {
		return
	}
	if s.CurrentLoad > 0 {
		s.CurrentLoad--
	}
}

// AcquireDepartment counts a complaint against a department. Departments
// never reject work, so the counter may pass capacity; that only trips the
// overload behavior in routing and a warning here.
func (r *Registry) AcquireDepartment(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.departments[code]
	if !ok {
		return
	}
	d.CurrentLoad++
	if d.CurrentLoad > d.Capacity {
		r.logger.Warn().
			Str("department", code).
			Int("load", d.CurrentLoad).
			Int("capacity", d.Capacity).
			Msg("department over capacity")
	}
}

// ReleaseDepartment frees one unit of department load. When resolutionHours
// is positive it is folded into the rolling response-time average.
func (r *Registry) ReleaseDepartment(code string, resolutionHours float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.departments[code]
	if !ok {
		return
	}
	if d.CurrentLoad > 0 {
		d.CurrentLoad--
	}
	if resolutionHours > 0 {
		if d.AvgResponseHours == 0 {
			d.AvgResponseHours = resolutionHours
		} else {
			d.AvgResponseHours = d.AvgResponseHours*0.8 + resolutionHours*0.2
		}
	}
}

// Alternative finds a fallback department for an overloaded one: the first
// adjacent department running under 70% of capacity.
func (r *Registry) Alternative(code string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alt := range departmentAlternatives[code] {
		d, ok := r.departments[alt]
		if !ok || d.Capacity <= 0 {
			continue
		}
		if float64(d.CurrentLoad) < 0.7*float64(d.Capacity) {
			return alt, true
		}
	}
	return "", false
}

var departmentAlternatives = map[string][]string{
	"water_sanitation":     {"waste_management", "roads_infrastructure"},
	"electrical":           {"roads_infrastructure"},
	"roads_infrastructure": {"water_sanitation"},
	"waste_management":     {"water_sanitation"},
	"housing":              {"water_sanitation"},
	"parks_recreation":     {"roads_infrastructure"},
}

type DepartmentStatus struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	CurrentLoad      int     `json:"current_load"`
	Capacity         int     `json:"capacity"`
	LoadPercent      float64 `json:"load_percent"`
	AvgResponseHours float64 `json:"avg_response_hours"`
	Status           string  `json:"status"`
}

// DepartmentStatusList snapshots every department for the status endpoint.
func (r *Registry) DepartmentStatusList() []DepartmentStatus {
	departments := r.Departments()
	out := make([]DepartmentStatus, 0, len(departments))
	for _, d := range departments {
		percent := 0.0
		if d.Capacity > 0 {
			percent = float64(d.CurrentLoad) / float64(d.Capacity) * 100
		}
		out = append(out, DepartmentStatus{
			Code:             d.Code,
			Name:             d.Name,
			CurrentLoad:      d.CurrentLoad,
			Capacity:         d.Capacity,
			LoadPercent:      math.Round(percent*10) / 10,
			AvgResponseHours: math.Round(d.AvgResponseHours*100) / 100,
			Status:           loadStatus(percent),
		})
	}
	return out
}

func loadStatus(percent float64) string {
	switch {
	case percent >= 90:
		return "critical"
	case percent >= 70:
		return "high"
	case percent >= 40:
		return "normal"
	default:
		return "low"
	}
}

type Analytics struct {
	TotalStaff     int     `json:"total_staff"`
	AvailableStaff int     `json:"available_staff"`
	TotalLoad      int     `json:"total_load"`
	TotalCapacity  int     `json:"total_capacity"`
	Utilization    float64 `json:"utilization_percent"`
}

// StaffAnalytics summarizes staff capacity across all departments.
func (r *Registry) StaffAnalytics() Analytics {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := Analytics{TotalStaff: len(r.staff)}
	for _, s := range r.staff {
		if s.Available {
			a.AvailableStaff++
		}
		a.TotalLoad += s.CurrentLoad
		a.TotalCapacity += s.MaxCapacity
	}
	if a.TotalCapacity > 0 {
		a.Utilization = math.Round(float64(a.TotalLoad)/float64(a.TotalCapacity)*1000) / 10
	}
	return a
}

package routing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/muni-info/backend/internal/models"
	"github.com/muni-info/backend/internal/triage"
)

const emergencyDepartment = "emergency_services"

// emergencyKeywords force a complaint into emergency services regardless of
// its category. Matched as substrings so multi-word phrases hit too.
var emergencyKeywords = []string{
	"emergency", "fire", "gas leak", "explosion", "danger", "life threatening",
}

// criticalIndicators upgrade the routing tier to immediate when the
// classifier surfaced one of them.
var criticalIndicators = map[string]bool{
	"emergency": true,
	"urgent":    true,
	"dangerous": true,
	"burst":     true,
	"fire":      true,
	"leak":      true,
}

var tierByPriority = map[models.Priority]models.Tier{
	models.PriorityUrgent: models.TierImmediate,
	models.PriorityHigh:   models.TierHigh,
	models.PriorityMedium: models.TierNormal,
	models.PriorityLow:    models.TierLow,
}

var tierMultipliers = map[models.Tier]float64{
	models.TierImmediate: 0.25,
	models.TierHigh:      0.5,
	models.TierNormal:    1.0,
	models.TierLow:       2.0,
}

// Engine turns a classified complaint into a routing decision, reserving
// staff capacity through the registry as a side effect. Everything else it
// computes from registry snapshots.
type Engine struct {
	registry *Registry
	logger   zerolog.Logger
	now      func() time.Time
}

func NewEngine(registry *Registry, logger zerolog.Logger) *Engine {
	return &Engine{registry: registry, logger: logger, now: time.Now}
}

// Route picks a department and, capacity allowing, a staff member for the
// complaint. Each step appends its rationale to the decision's reasoning
// trail. The chosen staff member's load is incremented; the department's
// load counter is incremented last, after the estimate and confidence have
// been computed from the pre-assignment snapshot.
func (e *Engine) Route(complaint models.Complaint, cls models.Classification) models.RoutingDecision {
	var reasons []string

	department := e.selectDepartment(complaint, cls, &reasons)
	tier := e.selectTier(complaint, cls, &reasons)
	staffID := e.assignStaff(department, complaint, &reasons)
	estimate := e.estimateResponse(department, tier)
	confidence := e.confidence(cls, department, staffID != "")

	e.registry.AcquireDepartment(department)

	decision := models.RoutingDecision{
		Department:       department,
		StaffID:          staffID,
		Tier:             tier,
		ResponseEstimate: estimate,
		Confidence:       confidence,
		Reasoning:        reasons,
		RoutedAt:         e.now().UTC(),
	}

	e.logger.Info().
		Str("reference", complaint.ReferenceID).
		Str("department", department).
		Str("staff", staffID).
		Str("tier", string(tier)).
		Float64("confidence", confidence).
		Msg("complaint routed")

	return decision
}

// Release frees the capacity a complaint held. Resolved complaints also fold
// their resolution time into the department's rolling average.
func (e *Engine) Release(complaint models.Complaint) {
	if complaint.AssignedStaff != "" {
		e.registry.ReleaseStaff(complaint.AssignedStaff)
	}
	if complaint.AssignedDepartment == "" {
		return
	}
	hours := 0.0
	if complaint.Status == models.StatusResolved && complaint.UpdatedAt.After(complaint.CreatedAt) {
		hours = complaint.UpdatedAt.Sub(complaint.CreatedAt).Hours()
	}
	e.registry.ReleaseDepartment(complaint.AssignedDepartment, hours)
}

func (e *Engine) selectDepartment(complaint models.Complaint, cls models.Classification, reasons *[]string) string {
	department := triage.DepartmentFor(complaint.Category)

	if cls.Category != "" && cls.Category != complaint.Category && cls.CategoryConfidence > 0.8 {
		suggested := triage.DepartmentFor(cls.Category)
		if suggested != department {
			*reasons = append(*reasons, fmt.Sprintf(
				"Classifier suggested %s with %.0f%% confidence", cls.Category, cls.CategoryConfidence*100))
			department = suggested
		}
	}

	text := strings.ToLower(complaint.Description)
	for _, kw := range emergencyKeywords {
		if strings.Contains(text, kw) {
			*reasons = append(*reasons, fmt.Sprintf(
				"Emergency keyword %q detected, routing to emergency services", kw))
			return emergencyDepartment
		}
	}

	if dept, ok := e.registry.Department(department); ok && dept.Capacity > 0 &&
		float64(dept.CurrentLoad) >= 0.9*float64(dept.Capacity) {
		if alt, found := e.registry.Alternative(department); found {
			*reasons = append(*reasons, fmt.Sprintf(
				"%s near capacity, rerouting to alternative department", dept.Name))
			return alt
		}
	}

	*reasons = append(*reasons, fmt.Sprintf(
		"Routed to %s for category %s", e.departmentName(department), complaint.Category))
	return department
}

func (e *Engine) selectTier(complaint models.Complaint, cls models.Classification, reasons *[]string) models.Tier {
	tier, ok := tierByPriority[complaint.Priority]
	if !ok {
		tier = models.TierNormal
	}

	if tier != models.TierImmediate {
		for _, indicator := range cls.UrgencyIndicators {
			if criticalIndicators[indicator] {
				*reasons = append(*reasons, fmt.Sprintf(
					"Critical urgency indicator %q, upgrading to immediate", indicator))
				return models.TierImmediate
			}
		}
	}

	if tier == models.TierLow && e.now().Sub(complaint.CreatedAt) > 24*time.Hour {
		*reasons = append(*reasons, "Complaint older than 24 hours, upgrading to normal")
		return models.TierNormal
	}

	return tier
}

// assignStaff scores the department's available staff and reserves the best
// candidate. Scores favor skill matches and spare capacity; ties fall to the
// lexically first staff id. A department with nobody to take the complaint
// is not an error; the complaint queues unassigned.
func (e *Engine) assignStaff(department string, complaint models.Complaint, reasons *[]string) string {
	candidates := e.registry.StaffInDepartment(department)
	if len(candidates) == 0 {
		*reasons = append(*reasons, "No available staff in department, queued for assignment")
		return ""
	}

	text := strings.ToLower(complaint.Description)
	type scored struct {
		staff models.Staff
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, s := range candidates {
		ranked = append(ranked, scored{staff: s, score: staffScore(s, text)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	for _, cand := range ranked {
		if e.registry.TryAcquireStaff(cand.staff.ID) {
			*reasons = append(*reasons, fmt.Sprintf(
				"Assigned to %s (score %.2f)", cand.staff.Name, cand.score))
			return cand.staff.ID
		}
	}

	*reasons = append(*reasons, "All staff at capacity, queued for assignment")
	return ""
}

func staffScore(s models.Staff, text string) float64 {
	score := s.PerformanceScore
	matches := 0
	for _, skill := range s.Skills {
		if skill != "" && strings.Contains(text, strings.ToLower(skill)) {
			matches++
		}
	}
	score += float64(matches) * 0.3
	if s.MaxCapacity > 0 {
		score *= 1.0 - 0.5*float64(s.CurrentLoad)/float64(s.MaxCapacity)
	}
	return score
}

func (e *Engine) estimateResponse(department string, tier models.Tier) string {
	base := 4.0
	dept, ok := e.registry.Department(department)
	if ok && dept.AvgResponseHours > 0 {
		base = dept.AvgResponseHours
	}

	hours := base * tierMultipliers[tier]

	if ok && dept.Capacity > 0 {
		ratio := float64(dept.CurrentLoad) / float64(dept.Capacity)
		if ratio > 0.8 {
			hours *= 1.5
		} else if ratio < 0.3 {
			hours *= 0.8
		}
	}

	return formatHours(hours)
}

func formatHours(hours float64) string {
	switch {
	case hours < 1:
		return fmt.Sprintf("%d minutes", int(hours*60))
	case hours < 24:
		return fmt.Sprintf("%d hours", int(hours))
	default:
		return fmt.Sprintf("%d days", int(hours/24))
	}
}

func (e *Engine) confidence(cls models.Classification, department string, staffAssigned bool) float64 {
	confidence := 0.8 + cls.CategoryConfidence*0.2
	if staffAssigned {
		confidence += 0.1
	}
	if dept, ok := e.registry.Department(department); ok && dept.Capacity > 0 {
		if float64(dept.CurrentLoad)/float64(dept.Capacity) > 0.8 {
			confidence -= 0.2
		}
	}
	return clamp01(confidence)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (e *Engine) departmentName(code string) string {
	if dept, ok := e.registry.Department(code); ok {
		return dept.Name
	}
	return code
}

package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusInProgress  Status = "in_progress"
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
	StatusClosed      Status = "closed"
)

func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusSubmitted:
		return StatusSubmitted, true
	case StatusInProgress:
		return StatusInProgress, true
	case StatusUnderReview:
		return StatusUnderReview, true
	case StatusResolved:
		return StatusResolved, true
	case StatusClosed:
		return StatusClosed, true
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities by severity, low first. Unknown values rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	}
	return -1
}

func ParsePriority(value string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(value))) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	case PriorityUrgent:
		return PriorityUrgent, true
	}
	return "", false
}

type Tier string

const (
	TierImmediate Tier = "immediate"
	TierHigh      Tier = "high"
	TierNormal    Tier = "normal"
	TierLow       Tier = "low"
)

type LocationInfo struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Province     string  `json:"province,omitempty"`
	District     string  `json:"district,omitempty"`
	Municipality string  `json:"municipality,omitempty"`
}

type Classification struct {
	Category           string   `json:"category"`
	CategoryConfidence float64  `json:"category_confidence"`
	Priority           Priority `json:"priority"`
	PriorityConfidence float64  `json:"priority_confidence"`
	Department         string   `json:"department"`
	Keywords           []string `json:"keywords,omitempty"`
	UrgencyIndicators  []string `json:"urgency_indicators,omitempty"`
}

type StatusUpdate struct {
	Status    Status    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Complaint struct {
	ID                 string          `json:"id"`
	ReferenceID        string          `json:"reference_id"`
	Sender             string          `json:"sender"`
	Category           string          `json:"category"`
	Description        string          `json:"description"`
	Status             Status          `json:"status"`
	Priority           Priority        `json:"priority"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Location           *LocationInfo   `json:"location,omitempty"`
	Classification     *Classification `json:"classification,omitempty"`
	AssignedDepartment string          `json:"assigned_department,omitempty"`
	AssignedStaff      string          `json:"assigned_staff,omitempty"`
	ResponseEstimate   string          `json:"response_estimate,omitempty"`
	Updates            []StatusUpdate  `json:"updates,omitempty"`
}

type Department struct {
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	Capacity         int      `json:"capacity"`
	CurrentLoad      int      `json:"current_load"`
	Specialties      []string `json:"specialties"`
	AvgResponseHours float64  `json:"avg_response_hours"`
}

type Staff struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Department       string   `json:"department"`
	Skills           []string `json:"skills"`
	CurrentLoad      int      `json:"current_load"`
	MaxCapacity      int      `json:"max_capacity"`
	PerformanceScore float64  `json:"performance_score"`
	Available        bool     `json:"available"`
}

type RoutingDecision struct {
	Department       string    `json:"department"`
	StaffID          string    `json:"staff_id,omitempty"`
	Tier             Tier      `json:"tier"`
	ResponseEstimate string    `json:"response_estimate"`
	Confidence       float64   `json:"confidence"`
	Reasoning        []string  `json:"reasoning"`
	RoutedAt         time.Time `json:"routed_at"`
}

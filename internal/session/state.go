package session

import (
	"time"

	"github.com/muni-info/backend/internal/models"
)

// State names the position of a conversation. Sessions always hold a valid
// state; unknown input never moves a session to an undefined one.
type State string

const (
	StateStart                State = "start"
	StateStarted              State = "started"
	StateInLocation           State = "in_location"
	StateComplaintCategory    State = "complaint_category"
	StateComplaintDescription State = "complaint_description"
	StateComplaintPriority    State = "complaint_priority"
	StateComplaintConfirm     State = "complaint_confirm"
	StateLanguageSelection    State = "language_selection"
	StateStatusCheck          State = "status_check"
	StateEmergencyMenu        State = "emergency_menu"
	StateInfoMenu             State = "info_menu"
)

// Draft accumulates a complaint while the user walks the lodge flow. It is
// discarded on cancel and replaced wholesale on submit.
type Draft struct {
	Category    string
	Description string
	Priority    models.Priority
	Emergency   bool
}

func (d Draft) Empty() bool {
	return d.Category == "" && d.Description == "" && d.Priority == "" && !d.Emergency
}

type Session struct {
	Address     string
	State       State
	Language    string
	Draft       Draft
	Location    *models.LocationInfo
	LastTouched time.Time
}

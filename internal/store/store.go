package store

import (
	"context"
	"errors"
	"time"

	"github.com/muni-info/backend/internal/models"
)

var ErrNotFound = errors.New("complaint not found")

// NewComplaint carries everything known about a complaint at submission.
// Routing, when present, is the decision made before the complaint was
// persisted; its outputs are copied onto the stored record.
type NewComplaint struct {
	Sender         string
	Category       string
	Description    string
	Priority       models.Priority
	Location       *models.LocationInfo
	Classification *models.Classification
	Routing        *models.RoutingDecision
}

// ComplaintStore persists complaints and issues their reference ids
// ("MI-<year>-<6 digits>", unique).
type ComplaintStore interface {
	Create(ctx context.Context, nc NewComplaint) (models.Complaint, error)
	GetByReference(ctx context.Context, reference string) (models.Complaint, error)
	ListBySender(ctx context.Context, sender string, limit int) ([]models.Complaint, error)
	UpdateStatus(ctx context.Context, reference string, status models.Status, notes string) (models.Complaint, error)
	CountByCategorySince(ctx context.Context, since time.Time) (map[string]int, error)
}

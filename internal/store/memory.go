package store

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muni-info/backend/internal/models"
)

const defaultListLimit = 10

// MemoryStore keeps complaints in process memory. It is the default
// backend when no database is configured and the fixture for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	byRef map[string]*models.Complaint
	rng   *rand.Rand
	now   func() time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		byRef: make(map[string]*models.Complaint),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, nc NewComplaint) (models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	c := models.Complaint{
		ID:             uuid.NewString(),
		ReferenceID:    m.nextReference(now),
		Sender:         nc.Sender,
		Category:       nc.Category,
		Description:    nc.Description,
		Status:         models.StatusSubmitted,
		Priority:       nc.Priority,
		CreatedAt:      now,
		UpdatedAt:      now,
		Location:       nc.Location,
		Classification: nc.Classification,
	}
	if nc.Routing != nil {
		c.AssignedDepartment = nc.Routing.Department
		c.AssignedStaff = nc.Routing.StaffID
		c.ResponseEstimate = nc.Routing.ResponseEstimate
	}
	m.byRef[c.ReferenceID] = &c
	return clone(&c), nil
}

func (m *MemoryStore) GetByReference(_ context.Context, reference string) (models.Complaint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byRef[reference]
	if !ok {
		return models.Complaint{}, ErrNotFound
	}
	return clone(c), nil
}

func (m *MemoryStore) ListBySender(_ context.Context, sender string, limit int) ([]models.Complaint, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Complaint
	for _, c := range m.byRef {
		if c.Sender == sender {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ReferenceID > out[j].ReferenceID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, reference string, status models.Status, notes string) (models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byRef[reference]
	if !ok {
		return models.Complaint{}, ErrNotFound
	}
	now := m.now().UTC()
	c.Status = status
	c.UpdatedAt = now
	c.Updates = append(c.Updates, models.StatusUpdate{Status: status, Notes: notes, UpdatedAt: now})
	return clone(c), nil
}

func (m *MemoryStore) CountByCategorySince(_ context.Context, since time.Time) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, c := range m.byRef {
		if !c.CreatedAt.Before(since) {
			counts[c.Category]++
		}
	}
	return counts, nil
}

// nextReference draws MI-<year>-<6 digits> candidates until one is
// unused. Callers hold m.mu.
func (m *MemoryStore) nextReference(now time.Time) string {
	for {
		ref := fmt.Sprintf("MI-%d-%06d", now.Year(), m.rng.Intn(1000000))
		if _, taken := m.byRef[ref]; !taken {
			return ref
		}
	}
}

func clone(c *models.Complaint) models.Complaint {
	out := *c
	if c.Location != nil {
		loc := *c.Location
		out.Location = &loc
	}
	if c.Classification != nil {
		cls := *c.Classification
		cls.Keywords = append([]string(nil), c.Classification.Keywords...)
		cls.UrgencyIndicators = append([]string(nil), c.Classification.UrgencyIndicators...)
		out.Classification = &cls
	}
	out.Updates = append([]models.StatusUpdate(nil), c.Updates...)
	return out
}

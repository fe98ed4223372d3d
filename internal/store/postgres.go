package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/muni-info/backend/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS complaints (
	id TEXT PRIMARY KEY,
	reference_id TEXT NOT NULL UNIQUE,
	sender TEXT NOT NULL,
	category TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	priority TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	location JSONB,
	classification JSONB,
	assigned_department TEXT NOT NULL DEFAULT '',
	assigned_staff TEXT NOT NULL DEFAULT '',
	response_estimate TEXT NOT NULL DEFAULT '',
	updates JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS complaints_sender_created_idx ON complaints (sender, created_at DESC);
CREATE INDEX IF NOT EXISTS complaints_created_at_idx ON complaints (created_at);
`

const complaintColumns = `id, reference_id, sender, category, description, status, priority,
	created_at, updated_at, location, classification,
	assigned_department, assigned_staff, response_estimate, updates`

// createAttempts bounds the reference collision retry loop. Six random
// digits per year make collisions rare long before this limit matters.
const createAttempts = 5

type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{Pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.Pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, nc NewComplaint) (models.Complaint, error) {
	now := time.Now().UTC()
	c := models.Complaint{
		ID:             uuid.NewString(),
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

	var location, classification []byte
	if c.Location != nil {
		var err error
		if location, err = json.Marshal(c.Location); err != nil {
			return models.Complaint{}, err
		}
	}
	if c.Classification != nil {
		var err error
		if classification, err = json.Marshal(c.Classification); err != nil {
			return models.Complaint{}, err
		}
	}

	// The reference id carries a UNIQUE constraint; a conflicting draw
	// inserts nothing and we try again with a fresh one.
	for attempt := 0; attempt < createAttempts; attempt++ {
		c.ReferenceID = fmt.Sprintf("MI-%d-%06d", now.Year(), rand.Intn(1000000))
		tag, err := s.Pool.Exec(ctx, `
			INSERT INTO complaints (`+complaintColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,'[]'::jsonb)
			ON CONFLICT (reference_id) DO NOTHING
		`, c.ID, c.ReferenceID, c.Sender, c.Category, c.Description, string(c.Status), string(c.Priority),
			c.CreatedAt, c.UpdatedAt, location, classification,
			c.AssignedDepartment, c.AssignedStaff, c.ResponseEstimate)
		if err != nil {
			return models.Complaint{}, err
		}
		if tag.RowsAffected() == 1 {
			return c, nil
		}
	}
	return models.Complaint{}, fmt.Errorf("could not allocate a unique reference id after %d attempts", createAttempts)
}

func (s *PostgresStore) GetByReference(ctx context.Context, reference string) (models.Complaint, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE reference_id = $1`, reference)
	c, err := scanComplaint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Complaint{}, ErrNotFound
		}
		return models.Complaint{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListBySender(ctx context.Context, sender string, limit int) ([]models.Complaint, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT `+complaintColumns+` FROM complaints
		WHERE sender = $1
		ORDER BY created_at DESC, reference_id DESC
		LIMIT $2
	`, sender, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, reference string, status models.Status, notes string) (models.Complaint, error) {
	now := time.Now().UTC()
	update, err := json.Marshal([]models.StatusUpdate{{Status: status, Notes: notes, UpdatedAt: now}})
	if err != nil {
		return models.Complaint{}, err
	}

	row := s.Pool.QueryRow(ctx, `
		UPDATE complaints
		SET status = $2, updated_at = $3, updates = updates || $4::jsonb
		WHERE reference_id = $1
		RETURNING `+complaintColumns+`
	`, reference, string(status), now, update)
	c, err := scanComplaint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Complaint{}, ErrNotFound
		}
		return models.Complaint{}, err
	}
	return c, nil
}

func (s *PostgresStore) CountByCategorySince(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT category, COUNT(*) FROM complaints
		WHERE created_at >= $1
		GROUP BY category
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

func scanComplaint(row pgx.Row) (models.Complaint, error) {
	var (
		c              models.Complaint
		status         string
		priority       string
		location       []byte
		classification []byte
		updates        []byte
	)
	if err := row.Scan(
		&c.ID, &c.ReferenceID, &c.Sender, &c.Category, &c.Description, &status, &priority,
		&c.CreatedAt, &c.UpdatedAt, &location, &classification,
		&c.AssignedDepartment, &c.AssignedStaff, &c.ResponseEstimate, &updates,
	); err != nil {
		return models.Complaint{}, err
	}
	c.Status = models.Status(status)
	c.Priority = models.Priority(priority)

	if len(location) > 0 {
		var loc models.LocationInfo
		if err := json.Unmarshal(location, &loc); err != nil {
			return models.Complaint{}, err
		}
		c.Location = &loc
	}
	if len(classification) > 0 {
		var cls models.Classification
		if err := json.Unmarshal(classification, &cls); err != nil {
			return models.Complaint{}, err
		}
		c.Classification = &cls
	}
	if len(updates) > 0 {
		if err := json.Unmarshal(updates, &c.Updates); err != nil {
			return models.Complaint{}, err
		}
	}
	return c, nil
}


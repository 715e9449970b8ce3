package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/followups/domain"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LeadSlots is a lead eligible for follow-up planning with what it already has.
type LeadSlots struct {
	LeadID       uuid.UUID
	SalesID      uuid.UUID
	MaxTypeID    int
	LatestAction *time.Time
}

// Repository provides follow-up persistence.
type Repository interface {
	// ListEligibleLeads lists the sales owner's non-excluded leads outside terminal statuses.
	ListEligibleLeads(ctx context.Context, q db.DBTX, salesID uuid.UUID) ([]LeadSlots, error)
	// Insert creates a follow-up; false means the (lead, type) slot already exists.
	Insert(ctx context.Context, q db.DBTX, f domain.FollowUp) (bool, error)
	ListByLead(ctx context.Context, q db.DBTX, leadID uuid.UUID) ([]domain.FollowUp, error)
	Lock(ctx context.Context, q db.DBTX, id uuid.UUID) (domain.FollowUp, error)
	Reschedule(ctx context.Context, q db.DBTX, id uuid.UUID, at time.Time) error
	Complete(ctx context.Context, q db.DBTX, id uuid.UUID, at time.Time, note string) error
	GetLeadOwner(ctx context.Context, q db.DBTX, leadID uuid.UUID) (uuid.UUID, error)
}

// Repo implements Repository using PostgreSQL.
type Repo struct{}

// New creates a new follow-up repository.
func New() *Repo {
	return &Repo{}
}

var _ Repository = (*Repo)(nil)

const followUpColumns = `id, lead_id, sales_id, type_id, next_action_at, done_at, note, channel, created_at`

func scanFollowUp(row pgx.Row) (domain.FollowUp, error) {
	var (
		f      domain.FollowUp
		typeID int16
	)
	err := row.Scan(&f.ID, &f.LeadID, &f.SalesID, &typeID, &f.NextActionAt, &f.DoneAt, &f.Note, &f.Channel, &f.CreatedAt)
	f.TypeID = int(typeID)
	return f, err
}

// ListEligibleLeads lists leads with their highest slot and latest action time.
func (r *Repo) ListEligibleLeads(ctx context.Context, q db.DBTX, salesID uuid.UUID) ([]LeadSlots, error) {
	rows, err := q.Query(ctx, `
		SELECT l.id, l.sales_id, COALESCE(MAX(f.type_id), 0)::int, MAX(f.next_action_at)
		FROM leads l
		LEFT JOIN statuses s ON s.id = l.status_id
		LEFT JOIN follow_ups f ON f.lead_id = l.id
		WHERE l.sales_id = $1
			AND NOT l.is_excluded
			AND (s.code IS NULL OR s.code NOT IN ('CLOSE_WON', 'CLOSE_LOST'))
		GROUP BY l.id, l.sales_id
		ORDER BY l.id`, salesID)
	if err != nil {
		return nil, fmt.Errorf("list eligible leads: %w", err)
	}
	defer rows.Close()

	items := make([]LeadSlots, 0)
	for rows.Next() {
		var ls LeadSlots
		if err := rows.Scan(&ls.LeadID, &ls.SalesID, &ls.MaxTypeID, &ls.LatestAction); err != nil {
			return nil, fmt.Errorf("scan eligible lead: %w", err)
		}
		items = append(items, ls)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate eligible leads: %w", rows.Err())
	}
	return items, nil
}

// Insert creates a follow-up unless its slot is already taken.
func (r *Repo) Insert(ctx context.Context, q db.DBTX, f domain.FollowUp) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO follow_ups (lead_id, sales_id, type_id, next_action_at, note, channel)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lead_id, type_id) DO NOTHING`,
		f.LeadID, f.SalesID, int16(f.TypeID), f.NextActionAt, f.Note, f.Channel)
	if err != nil {
		return false, fmt.Errorf("insert follow-up: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByLead lists a lead's follow-ups in slot order.
func (r *Repo) ListByLead(ctx context.Context, q db.DBTX, leadID uuid.UUID) ([]domain.FollowUp, error) {
	rows, err := q.Query(ctx, `SELECT `+followUpColumns+` FROM follow_ups WHERE lead_id = $1 ORDER BY type_id`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	defer rows.Close()

	items := make([]domain.FollowUp, 0)
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan follow-up: %w", err)
		}
		items = append(items, f)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate follow-ups: %w", rows.Err())
	}
	return items, nil
}

// Lock loads a follow-up FOR UPDATE.
func (r *Repo) Lock(ctx context.Context, q db.DBTX, id uuid.UUID) (domain.FollowUp, error) {
	f, err := scanFollowUp(q.QueryRow(ctx, `SELECT `+followUpColumns+` FROM follow_ups WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FollowUp{}, apperr.NotFound("follow-up not found")
		}
		return domain.FollowUp{}, fmt.Errorf("lock follow-up: %w", err)
	}
	return f, nil
}

// Reschedule moves a follow-up.
func (r *Repo) Reschedule(ctx context.Context, q db.DBTX, id uuid.UUID, at time.Time) error {
	if _, err := q.Exec(ctx, `UPDATE follow_ups SET next_action_at = $2, updated_at = now() WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("reschedule follow-up: %w", err)
	}
	return nil
}

// Complete marks a follow-up done.
func (r *Repo) Complete(ctx context.Context, q db.DBTX, id uuid.UUID, at time.Time, note string) error {
	_, err := q.Exec(ctx, `
		UPDATE follow_ups SET done_at = $2, note = CASE WHEN $3::text = '' THEN note ELSE $3::text END, updated_at = now()
		WHERE id = $1 AND done_at IS NULL`, id, at, note)
	if err != nil {
		return fmt.Errorf("complete follow-up: %w", err)
	}
	return nil
}

// GetLeadOwner returns the sales id owning the lead.
func (r *Repo) GetLeadOwner(ctx context.Context, q db.DBTX, leadID uuid.UUID) (uuid.UUID, error) {
	var salesID uuid.UUID
	if err := q.QueryRow(ctx, `SELECT sales_id FROM leads WHERE id = $1`, leadID).Scan(&salesID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.UUID{}, apperr.NotFound("lead not found")
		}
		return uuid.UUID{}, fmt.Errorf("get lead owner: %w", err)
	}
	return salesID, nil
}

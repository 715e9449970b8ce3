package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/nurturing/domain"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repo implements Repository using PostgreSQL.
type Repo struct{}

// New creates a new nurturing repository.
func New() *Repo {
	return &Repo{}
}

var _ Repository = (*Repo)(nil)

const stateColumns = `lead_id, status, manual_paused, pause_reason, paused_at, next_send_at, current_step,
	last_sent_at, last_message_key, plan_id, pending_link_code, updated_at`

func scanState(row pgx.Row) (domain.State, error) {
	var (
		s      domain.State
		status string
	)
	err := row.Scan(&s.LeadID, &status, &s.ManualPaused, &s.PauseReason, &s.PausedAt, &s.NextSendAt, &s.CurrentStep,
		&s.LastSentAt, &s.LastMessageKey, &s.PlanID, &s.PendingLinkCode, &s.UpdatedAt)
	s.Status = domain.Status(status)
	return s, err
}

func (r *Repo) getState(ctx context.Context, q db.DBTX, leadID uuid.UUID, lock bool) (*domain.State, error) {
	query := `SELECT ` + stateColumns + ` FROM nurturing_states WHERE lead_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	s, err := scanState(q.QueryRow(ctx, query, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get nurturing state: %w", err)
	}
	return &s, nil
}

// GetState returns the lead's state, or nil.
func (r *Repo) GetState(ctx context.Context, q db.DBTX, leadID uuid.UUID) (*domain.State, error) {
	return r.getState(ctx, q, leadID, false)
}

// LockState returns the lead's state locked FOR UPDATE, or nil.
func (r *Repo) LockState(ctx context.Context, q db.DBTX, leadID uuid.UUID) (*domain.State, error) {
	return r.getState(ctx, q, leadID, true)
}

// UpsertState writes the whole state keyed by lead id. Last write wins.
func (r *Repo) UpsertState(ctx context.Context, q db.DBTX, s domain.State) (domain.State, error) {
	if err := s.Validate(); err != nil {
		return domain.State{}, apperr.Internal(err.Error())
	}
	saved, err := scanState(q.QueryRow(ctx, `
		INSERT INTO nurturing_states (`+stateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (lead_id) DO UPDATE SET
			status = EXCLUDED.status,
			manual_paused = EXCLUDED.manual_paused,
			pause_reason = EXCLUDED.pause_reason,
			paused_at = EXCLUDED.paused_at,
			next_send_at = EXCLUDED.next_send_at,
			current_step = EXCLUDED.current_step,
			last_sent_at = EXCLUDED.last_sent_at,
			last_message_key = EXCLUDED.last_message_key,
			plan_id = EXCLUDED.plan_id,
			pending_link_code = EXCLUDED.pending_link_code,
			updated_at = now()
		RETURNING `+stateColumns,
		s.LeadID, string(s.Status), s.ManualPaused, s.PauseReason, s.PausedAt, s.NextSendAt, s.CurrentStep,
		s.LastSentAt, s.LastMessageKey, s.PlanID, s.PendingLinkCode,
	))
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return domain.State{}, apperr.NotFound("lead or plan not found")
		}
		return domain.State{}, fmt.Errorf("upsert nurturing state: %w", err)
	}
	return saved, nil
}

func (r *Repo) listStates(ctx context.Context, q db.DBTX, query string, args ...interface{}) ([]domain.State, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.State, 0)
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// ListResumeCandidates lists auto-paused states idle since before pausedBefore, oldest first.
func (r *Repo) ListResumeCandidates(ctx context.Context, q db.DBTX, pausedBefore time.Time, limit int) ([]domain.State, error) {
	items, err := r.listStates(ctx, q, `
		SELECT `+stateColumns+` FROM nurturing_states
		WHERE status = 'PAUSED' AND NOT manual_paused AND paused_at <= $1
		ORDER BY paused_at ASC
		LIMIT $2`, pausedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list resume candidates: %w", err)
	}
	return items, nil
}

// ListDue lists active states whose next send is due, earliest first.
func (r *Repo) ListDue(ctx context.Context, q db.DBTX, now time.Time, limit int) ([]domain.State, error) {
	items, err := r.listStates(ctx, q, `
		SELECT `+stateColumns+` FROM nurturing_states
		WHERE status = 'ACTIVE' AND next_send_at <= $1
		ORDER BY next_send_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due states: %w", err)
	}
	return items, nil
}

// HasUndoneFollowUp reports whether a human action is still pending for the lead.
func (r *Repo) HasUndoneFollowUp(ctx context.Context, q db.DBTX, leadID uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM follow_ups WHERE lead_id = $1 AND done_at IS NULL)`, leadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending follow-ups: %w", err)
	}
	return exists, nil
}

// GetLeadContact loads the lead with its status code.
func (r *Repo) GetLeadContact(ctx context.Context, q db.DBTX, leadID uuid.UUID) (LeadContact, error) {
	var c LeadContact
	err := q.QueryRow(ctx, `
		SELECT l.id, l.sales_id, l.name, l.phone, l.product_id, l.source_id, COALESCE(s.code, ''),
			l.is_excluded, l.last_inbound_at
		FROM leads l
		LEFT JOIN statuses s ON s.id = l.status_id
		WHERE l.id = $1`, leadID).
		Scan(&c.ID, &c.SalesID, &c.Name, &c.Phone, &c.ProductID, &c.SourceID, &c.StatusCode, &c.IsExcluded, &c.LastInboundAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LeadContact{}, apperr.NotFound("lead not found")
		}
		return LeadContact{}, fmt.Errorf("get lead contact: %w", err)
	}
	return c, nil
}

// ResumeIfPaused activates s only while the stored row is still auto-paused
// and was not paused again after pausedBefore.
func (r *Repo) ResumeIfPaused(ctx context.Context, q db.DBTX, s domain.State, pausedBefore time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE nurturing_states
		SET status = $2, pause_reason = NULL, paused_at = NULL, next_send_at = $3, updated_at = now()
		WHERE lead_id = $1 AND status = 'PAUSED' AND NOT manual_paused AND paused_at <= $4`,
		s.LeadID, string(s.Status), s.NextSendAt, pausedBefore)
	if err != nil {
		return false, fmt.Errorf("resume nurturing state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateIfStep writes s while the stored row is ACTIVE at expectedStep.
func (r *Repo) UpdateIfStep(ctx context.Context, q db.DBTX, s domain.State, expectedStep int) (bool, error) {
	if err := s.Validate(); err != nil {
		return false, apperr.Internal(err.Error())
	}
	tag, err := q.Exec(ctx, `
		UPDATE nurturing_states SET
			status = $3,
			pause_reason = $4,
			paused_at = $5,
			next_send_at = $6,
			current_step = $7,
			last_sent_at = $8,
			last_message_key = $9,
			pending_link_code = $10,
			updated_at = now()
		WHERE lead_id = $1 AND status = 'ACTIVE' AND current_step = $2`,
		s.LeadID, expectedStep, string(s.Status), s.PauseReason, s.PausedAt, s.NextSendAt, s.CurrentStep,
		s.LastSentAt, s.LastMessageKey, s.PendingLinkCode)
	if err != nil {
		return false, fmt.Errorf("advance nurturing state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetPendingLinkCode caches the link minted for the step about to be sent.
func (r *Repo) SetPendingLinkCode(ctx context.Context, q db.DBTX, leadID uuid.UUID, expectedStep int, code string) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE nurturing_states SET pending_link_code = $3, updated_at = now()
		WHERE lead_id = $1 AND status = 'ACTIVE' AND current_step = $2 AND pending_link_code IS NULL`,
		leadID, expectedStep, code)
	if err != nil {
		return false, fmt.Errorf("set pending link code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertSendLog appends an audit row for a delivered step.
func (r *Repo) InsertSendLog(ctx context.Context, q db.DBTX, e SendLogEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO nurturing_send_log (lead_id, plan_id, step, message_id, kind, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.LeadID, e.PlanID, e.Step, e.MessageID, string(e.Kind), e.SentAt)
	if err != nil {
		return fmt.Errorf("insert send log: %w", err)
	}
	return nil
}

// TouchLastOutbound stamps the lead's last outbound message time.
func (r *Repo) TouchLastOutbound(ctx context.Context, q db.DBTX, leadID uuid.UUID, at time.Time) error {
	if _, err := q.Exec(ctx, `UPDATE leads SET last_outbound_at = $2, updated_at = now() WHERE id = $1`, leadID, at); err != nil {
		return fmt.Errorf("touch lead outbound: %w", err)
	}
	return nil
}

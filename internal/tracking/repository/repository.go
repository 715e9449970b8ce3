package repository

import (
	"context"
	"errors"
	"fmt"

	"leadflow_backend/internal/tracking/domain"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository provides tracked link persistence.
type Repository interface {
	// InsertLink stores a link; false means the code is already taken.
	InsertLink(ctx context.Context, q db.DBTX, link domain.Link) (domain.Link, bool, error)
	GetByCode(ctx context.Context, q db.DBTX, code string) (domain.Link, error)
	// InsertClick records the first click of a lead on a link; false means one exists.
	InsertClick(ctx context.Context, q db.DBTX, link domain.Link, meta domain.ClickMeta, preview bool) (bool, error)
	GetLeadOwner(ctx context.Context, q db.DBTX, leadID uuid.UUID) (uuid.UUID, error)
}

// Repo implements Repository using PostgreSQL.
type Repo struct{}

// New creates a new tracking repository.
func New() *Repo {
	return &Repo{}
}

var _ Repository = (*Repo)(nil)

// InsertLink stores a link unless its code collides.
func (r *Repo) InsertLink(ctx context.Context, q db.DBTX, link domain.Link) (domain.Link, bool, error) {
	err := q.QueryRow(ctx, `
		INSERT INTO tracked_links (code, lead_id, sales_id, target_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO NOTHING
		RETURNING id, created_at`,
		link.Code, link.LeadID, link.SalesID, link.TargetURL,
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Link{}, false, nil
		}
		if db.IsForeignKeyViolation(err) {
			return domain.Link{}, false, apperr.NotFound("lead not found")
		}
		return domain.Link{}, false, fmt.Errorf("insert tracked link: %w", err)
	}
	return link, true, nil
}

// GetByCode resolves a link by its code.
func (r *Repo) GetByCode(ctx context.Context, q db.DBTX, code string) (domain.Link, error) {
	var link domain.Link
	err := q.QueryRow(ctx, `
		SELECT id, code, lead_id, sales_id, target_url, created_at
		FROM tracked_links WHERE code = $1`, code,
	).Scan(&link.ID, &link.Code, &link.LeadID, &link.SalesID, &link.TargetURL, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Link{}, apperr.NotFound("link not found")
		}
		return domain.Link{}, fmt.Errorf("get tracked link: %w", err)
	}
	return link, nil
}

// InsertClick keeps only the first click per (link, lead).
func (r *Repo) InsertClick(ctx context.Context, q db.DBTX, link domain.Link, meta domain.ClickMeta, preview bool) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO tracked_link_clicks (link_id, lead_id, ip, user_agent, is_preview)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (link_id, lead_id) DO NOTHING`,
		link.ID, link.LeadID, meta.IP, meta.UserAgent, preview)
	if err != nil {
		return false, fmt.Errorf("insert link click: %w", err)
	}
	return tag.RowsAffected() == 1, nil
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

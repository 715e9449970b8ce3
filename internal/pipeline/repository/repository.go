package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/pipeline/domain"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	leadNotFoundMessage      = "lead not found"
	stageNotFoundMessage     = "stage not found"
	statusNotFoundMessage    = "status not found"
	subStatusNotFoundMessage = "sub-status not found"
)

// Repo implements Repository using PostgreSQL. All methods run on the
// supplied DBTX so the service decides the transaction boundary.
type Repo struct{}

// New creates a new pipeline repository.
func New() *Repo {
	return &Repo{}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

var historyTables = map[domain.Dimension]string{
	domain.DimensionStage:     "lead_stage_history",
	domain.DimensionStatus:    "lead_status_history",
	domain.DimensionSubStatus: "lead_sub_status_history",
}

var pointerColumns = map[domain.Dimension]string{
	domain.DimensionStage:     "stage_id",
	domain.DimensionStatus:    "status_id",
	domain.DimensionSubStatus: "sub_status_id",
}

func historyTable(dim domain.Dimension) (string, error) {
	table, ok := historyTables[dim]
	if !ok {
		return "", fmt.Errorf("unknown dimension %q", dim)
	}
	return table, nil
}

const leadColumns = `id, sales_id, stage_id, status_id, sub_status_id, product_id, source_id,
	is_excluded, name, phone, last_inbound_at, last_outbound_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(&l.ID, &l.SalesID, &l.StageID, &l.StatusID, &l.SubStatusID, &l.ProductID, &l.SourceID,
		&l.IsExcluded, &l.Name, &l.Phone, &l.LastInboundAt, &l.LastOutboundAt)
	return l, err
}

// GetLead retrieves a lead without locking it.
func (r *Repo) GetLead(ctx context.Context, q db.DBTX, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(q.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return domain.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// LockLead retrieves a lead and holds a row lock until the transaction ends,
// serialising concurrent transitions of the same lead.
func (r *Repo) LockLead(ctx context.Context, q db.DBTX, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(q.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return domain.Lead{}, fmt.Errorf("lock lead: %w", err)
	}
	return lead, nil
}

// SetLeadPointer updates the lead's current target on dim.
func (r *Repo) SetLeadPointer(ctx context.Context, q db.DBTX, dim domain.Dimension, leadID uuid.UUID, targetID *uuid.UUID) error {
	column, ok := pointerColumns[dim]
	if !ok {
		return fmt.Errorf("unknown dimension %q", dim)
	}
	query := fmt.Sprintf(`UPDATE leads SET %s = $2, updated_at = now() WHERE id = $1`, column)
	if _, err := q.Exec(ctx, query, leadID, targetID); err != nil {
		return fmt.Errorf("set lead %s: %w", column, err)
	}
	return nil
}

// GetStage retrieves a stage.
func (r *Repo) GetStage(ctx context.Context, q db.DBTX, id uuid.UUID) (domain.Stage, error) {
	var s domain.Stage
	err := q.QueryRow(ctx, `SELECT id, code, name, is_active FROM stages WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Stage{}, apperr.NotFound(stageNotFoundMessage)
		}
		return domain.Stage{}, fmt.Errorf("get stage: %w", err)
	}
	return s, nil
}

// GetStatus retrieves a status.
func (r *Repo) GetStatus(ctx context.Context, q db.DBTX, id uuid.UUID) (domain.Status, error) {
	var s domain.Status
	err := q.QueryRow(ctx, `SELECT id, code, name, is_active FROM statuses WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Status{}, apperr.NotFound(statusNotFoundMessage)
		}
		return domain.Status{}, fmt.Errorf("get status: %w", err)
	}
	return s, nil
}

// GetSubStatus retrieves a sub-status.
func (r *Repo) GetSubStatus(ctx context.Context, q db.DBTX, id uuid.UUID) (domain.SubStatus, error) {
	var s domain.SubStatus
	err := q.QueryRow(ctx, `SELECT id, status_id, code, name, is_active FROM sub_statuses WHERE id = $1`, id).
		Scan(&s.ID, &s.StatusID, &s.Code, &s.Name, &s.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SubStatus{}, apperr.NotFound(subStatusNotFoundMessage)
		}
		return domain.SubStatus{}, fmt.Errorf("get sub-status: %w", err)
	}
	return s, nil
}

const historyColumns = `id, lead_id, target_id, changed_by, sales_id, note, mode, created_at, done_at, close_note`

func scanHistory(row pgx.Row, dim domain.Dimension) (domain.HistoryRow, error) {
	var h domain.HistoryRow
	var mode string
	err := row.Scan(&h.ID, &h.LeadID, &h.TargetID, &h.ChangedBy, &h.SalesID, &h.Note, &mode, &h.CreatedAt, &h.DoneAt, &h.CloseNote)
	h.Mode = domain.Mode(mode)
	h.Dimension = dim
	return h, err
}

// GetOpenRow returns the open interval of dim, locked FOR UPDATE.
func (r *Repo) GetOpenRow(ctx context.Context, q db.DBTX, dim domain.Dimension, leadID uuid.UUID) (*domain.HistoryRow, error) {
	table, err := historyTable(dim)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE lead_id = $1 AND done_at IS NULL FOR UPDATE`, historyColumns, table)
	row, err := scanHistory(q.QueryRow(ctx, query, leadID), dim)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open %s row: %w", dim, err)
	}
	return &row, nil
}

// CloseRow sets done_at on an open row. Closing an already closed row is a no-op.
func (r *Repo) CloseRow(ctx context.Context, q db.DBTX, dim domain.Dimension, rowID uuid.UUID, at time.Time, closeNote *string) error {
	table, err := historyTable(dim)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET done_at = $2, close_note = $3 WHERE id = $1 AND done_at IS NULL`, table)
	if _, err := q.Exec(ctx, query, rowID, at, closeNote); err != nil {
		return fmt.Errorf("close %s row: %w", dim, err)
	}
	return nil
}

// InsertRow appends a row. A second open row for the lead violates the
// partial unique index and surfaces as a Conflict.
func (r *Repo) InsertRow(ctx context.Context, q db.DBTX, row domain.HistoryRow) (domain.HistoryRow, error) {
	table, err := historyTable(row.Dimension)
	if err != nil {
		return domain.HistoryRow{}, err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (lead_id, target_id, changed_by, sales_id, note, mode, created_at, done_at, close_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s`, table, historyColumns)

	inserted, err := scanHistory(q.QueryRow(ctx, query,
		row.LeadID, row.TargetID, row.ChangedBy, row.SalesID, row.Note, string(row.Mode), row.CreatedAt, row.DoneAt, row.CloseNote,
	), row.Dimension)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return domain.HistoryRow{}, apperr.Conflict(fmt.Sprintf("lead already has an open %s row", row.Dimension))
		}
		return domain.HistoryRow{}, fmt.Errorf("insert %s row: %w", row.Dimension, err)
	}
	return inserted, nil
}

// ListHistory lists all rows of dim, newest first.
func (r *Repo) ListHistory(ctx context.Context, q db.DBTX, dim domain.Dimension, leadID uuid.UUID) ([]domain.HistoryRow, error) {
	table, err := historyTable(dim)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE lead_id = $1 ORDER BY created_at DESC, id DESC`, historyColumns, table)
	rows, err := q.Query(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("list %s history: %w", dim, err)
	}
	defer rows.Close()

	items := make([]domain.HistoryRow, 0)
	for rows.Next() {
		h, err := scanHistory(rows, dim)
		if err != nil {
			return nil, fmt.Errorf("scan %s history: %w", dim, err)
		}
		items = append(items, h)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate %s history: %w", dim, rows.Err())
	}
	return items, nil
}

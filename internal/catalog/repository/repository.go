package repository

import (
	"context"
	"errors"
	"fmt"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	planNotFoundMessage = "nurturing plan not found"
	stepNotFoundMessage = "plan step not found"
)

// Repo implements Repository using PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new catalog repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const planColumns = `id, product_id, source_id, target_status_code, name, is_active, created_at`

func scanPlan(row pgx.Row) (Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.ProductID, &p.SourceID, &p.TargetStatusCode, &p.Name, &p.IsActive, &p.CreatedAt)
	return p, err
}

// ListPlans lists plans, newest first.
func (r *Repo) ListPlans(ctx context.Context, activeOnly bool) ([]Plan, error) {
	query := `SELECT ` + planColumns + ` FROM nurturing_plans`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	items := make([]Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		items = append(items, p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate plans: %w", rows.Err())
	}
	return items, nil
}

// GetPlan retrieves a plan by ID.
func (r *Repo) GetPlan(ctx context.Context, id uuid.UUID) (Plan, error) {
	p, err := scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM nurturing_plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, apperr.NotFound(planNotFoundMessage)
		}
		return Plan{}, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

const stepSelect = `
	SELECT s.plan_id, s.step_order, s.delay_hours, s.topic_id, s.slot,
	       t.id, t.topic_id, t.slot, t.body, t.media_url, t.media_mime, t.file_name
	FROM nurturing_plan_steps s
	JOIN nurturing_templates t ON t.topic_id = s.topic_id AND t.slot = s.slot`

func scanStep(row pgx.Row) (ResolvedStep, error) {
	var s ResolvedStep
	err := row.Scan(
		&s.PlanID, &s.Order, &s.DelayHours, &s.TopicID, &s.Slot,
		&s.Template.ID, &s.Template.TopicID, &s.Template.Slot, &s.Template.Body,
		&s.Template.MediaURL, &s.Template.MediaMime, &s.Template.FileName,
	)
	return s, err
}

// ListSteps lists a plan's steps in order.
func (r *Repo) ListSteps(ctx context.Context, planID uuid.UUID) ([]ResolvedStep, error) {
	rows, err := r.pool.Query(ctx, stepSelect+` WHERE s.plan_id = $1 ORDER BY s.step_order ASC`, planID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	items := make([]ResolvedStep, 0)
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		items = append(items, s)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate steps: %w", rows.Err())
	}
	return items, nil
}

// GetStep retrieves the step at order. Step orders are dense from zero.
func (r *Repo) GetStep(ctx context.Context, planID uuid.UUID, order int) (ResolvedStep, error) {
	s, err := scanStep(r.pool.QueryRow(ctx, stepSelect+` WHERE s.plan_id = $1 AND s.step_order = $2`, planID, order))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResolvedStep{}, apperr.NotFound(stepNotFoundMessage)
		}
		return ResolvedStep{}, fmt.Errorf("get step: %w", err)
	}
	return s, nil
}

// ListCategories lists all categories by name.
func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM nurturing_categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	items := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Import upserts categories, topics and templates by natural key and
// replaces the step list of every imported plan.
func (r *Repo) Import(ctx context.Context, params ImportParams) (ImportResult, error) {
	var result ImportResult

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	topicIDs := make(map[string]uuid.UUID)

	for _, cat := range params.Categories {
		var categoryID uuid.UUID
		if err := tx.QueryRow(ctx, `
			INSERT INTO nurturing_categories (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, cat.Name).Scan(&categoryID); err != nil {
			return result, fmt.Errorf("upsert category %q: %w", cat.Name, err)
		}
		result.Categories++

		for _, topic := range cat.Topics {
			var topicID uuid.UUID
			if err := tx.QueryRow(ctx, `
				INSERT INTO nurturing_topics (category_id, name) VALUES ($1, $2)
				ON CONFLICT (category_id, name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id`, categoryID, topic.Name).Scan(&topicID); err != nil {
				return result, fmt.Errorf("upsert topic %q: %w", topic.Name, err)
			}
			topicIDs[topicKey(cat.Name, topic.Name)] = topicID
			result.Topics++

			for _, tpl := range topic.Templates {
				if _, err := tx.Exec(ctx, `
					INSERT INTO nurturing_templates (topic_id, slot, body, media_url, media_mime, file_name)
					VALUES ($1, $2, $3, $4, $5, $6)
					ON CONFLICT (topic_id, slot) DO UPDATE SET
						body = EXCLUDED.body,
						media_url = EXCLUDED.media_url,
						media_mime = EXCLUDED.media_mime,
						file_name = EXCLUDED.file_name`,
					topicID, tpl.Slot, tpl.Body, tpl.MediaURL, tpl.MediaMime, tpl.FileName); err != nil {
					return result, fmt.Errorf("upsert template %s/%s: %w", topic.Name, tpl.Slot, err)
				}
				result.Templates++
			}
		}
	}

	for _, plan := range params.Plans {
		var planID uuid.UUID
		if err := tx.QueryRow(ctx, `
			INSERT INTO nurturing_plans (name, product_id, source_id, target_status_code, is_active)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (name) DO UPDATE SET
				product_id = EXCLUDED.product_id,
				source_id = EXCLUDED.source_id,
				target_status_code = EXCLUDED.target_status_code,
				is_active = EXCLUDED.is_active
			RETURNING id`,
			plan.Name, plan.ProductID, plan.SourceID, plan.TargetStatusCode, plan.IsActive).Scan(&planID); err != nil {
			return result, fmt.Errorf("upsert plan %q: %w", plan.Name, err)
		}
		result.Plans++

		if _, err := tx.Exec(ctx, `DELETE FROM nurturing_plan_steps WHERE plan_id = $1`, planID); err != nil {
			return result, fmt.Errorf("clear steps of %q: %w", plan.Name, err)
		}

		for order, step := range plan.Steps {
			topicID, ok := topicIDs[topicKey(step.Category, step.Topic)]
			if !ok {
				if err := tx.QueryRow(ctx, `
					SELECT t.id FROM nurturing_topics t
					JOIN nurturing_categories c ON c.id = t.category_id
					WHERE c.name = $1 AND t.name = $2`, step.Category, step.Topic).Scan(&topicID); err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						return result, apperr.Validation(fmt.Sprintf("plan %q step %d references unknown topic %s/%s", plan.Name, order, step.Category, step.Topic))
					}
					return result, fmt.Errorf("lookup topic: %w", err)
				}
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO nurturing_plan_steps (plan_id, step_order, delay_hours, topic_id, slot)
				VALUES ($1, $2, $3, $4, $5)`,
				planID, order, step.DelayHours, topicID, step.Slot); err != nil {
				return result, fmt.Errorf("insert step %d of %q: %w", order, plan.Name, err)
			}
			result.Steps++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func topicKey(category, topic string) string {
	return category + "\x00" + topic
}

package service

import (
	"context"
	"io"
	"strings"

	"leadflow_backend/internal/catalog/repository"
	"leadflow_backend/internal/catalog/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// PlanKey is the lead attribute triple a plan is selected by.
type PlanKey struct {
	ProductID  *uuid.UUID
	SourceID   *uuid.UUID
	StatusCode string
}

// Service provides plan lookup and catalog import.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new catalog service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// SelectPlan picks the most specific active plan matching key. A plan matches
// when each of its non-nil selectors equals the key; more matched selectors
// win, then the most recently created plan.
func SelectPlan(plans []repository.Plan, key PlanKey) (repository.Plan, bool) {
	var (
		best      repository.Plan
		bestScore = -1
	)

	for _, p := range plans {
		if !p.IsActive {
			continue
		}
		score, ok := specificity(p, key)
		if !ok {
			continue
		}
		if score > bestScore || (score == bestScore && p.CreatedAt.After(best.CreatedAt)) {
			best = p
			bestScore = score
		}
	}

	return best, bestScore >= 0
}

func specificity(p repository.Plan, key PlanKey) (int, bool) {
	score := 0
	if p.ProductID != nil {
		if key.ProductID == nil || *key.ProductID != *p.ProductID {
			return 0, false
		}
		score++
	}
	if p.SourceID != nil {
		if key.SourceID == nil || *key.SourceID != *p.SourceID {
			return 0, false
		}
		score++
	}
	if p.TargetStatusCode != nil {
		if !strings.EqualFold(*p.TargetStatusCode, key.StatusCode) {
			return 0, false
		}
		score++
	}
	return score, true
}

// ResolvePlan returns the best plan for key, or nil when none matches.
func (s *Service) ResolvePlan(ctx context.Context, key PlanKey) (*repository.Plan, error) {
	plans, err := s.repo.ListPlans(ctx, true)
	if err != nil {
		return nil, err
	}
	plan, ok := SelectPlan(plans, key)
	if !ok {
		return nil, nil
	}
	return &plan, nil
}

// LookupPlan returns a plan without its steps.
func (s *Service) LookupPlan(ctx context.Context, id uuid.UUID) (repository.Plan, error) {
	return s.repo.GetPlan(ctx, id)
}

// StepAt returns the step at order. The boolean is false when the plan has
// no step there, which callers treat as plan exhaustion.
func (s *Service) StepAt(ctx context.Context, planID uuid.UUID, order int) (repository.ResolvedStep, bool, error) {
	step, err := s.repo.GetStep(ctx, planID, order)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return repository.ResolvedStep{}, false, nil
		}
		return repository.ResolvedStep{}, false, err
	}
	return step, true, nil
}

// GetPlan returns a plan with its steps.
func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (transport.PlanResponse, error) {
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return transport.PlanResponse{}, err
	}
	steps, err := s.repo.ListSteps(ctx, id)
	if err != nil {
		return transport.PlanResponse{}, err
	}
	return toPlanResponse(plan, steps), nil
}

// ListPlans lists plans without their steps.
func (s *Service) ListPlans(ctx context.Context, req transport.ListPlansRequest) (transport.PlanListResponse, error) {
	plans, err := s.repo.ListPlans(ctx, !req.IncludeInactive)
	if err != nil {
		return transport.PlanListResponse{}, err
	}
	items := make([]transport.PlanResponse, 0, len(plans))
	for _, p := range plans {
		items = append(items, toPlanResponse(p, nil))
	}
	return transport.PlanListResponse{Items: items, Total: len(items)}, nil
}

// Resolve exposes plan selection over HTTP.
func (s *Service) Resolve(ctx context.Context, req transport.ResolvePlanRequest) (transport.PlanResponse, error) {
	plan, err := s.ResolvePlan(ctx, PlanKey{ProductID: req.ProductID, SourceID: req.SourceID, StatusCode: req.StatusCode})
	if err != nil {
		return transport.PlanResponse{}, err
	}
	if plan == nil {
		return transport.PlanResponse{}, apperr.NotFound("no nurturing plan matches")
	}
	return s.GetPlan(ctx, plan.ID)
}

// ListCategories lists categories.
func (s *Service) ListCategories(ctx context.Context) ([]transport.CategoryResponse, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]transport.CategoryResponse, 0, len(cats))
	for _, c := range cats {
		items = append(items, transport.CategoryResponse{ID: c.ID, Name: c.Name})
	}
	return items, nil
}

// Import parses a YAML catalog document and writes it.
func (s *Service) Import(ctx context.Context, r io.Reader) (transport.ImportResponse, error) {
	params, err := ParseSeed(r)
	if err != nil {
		return transport.ImportResponse{}, err
	}

	result, err := s.repo.Import(ctx, params)
	if err != nil {
		return transport.ImportResponse{}, err
	}

	s.log.Info("nurturing catalog imported",
		"categories", result.Categories,
		"topics", result.Topics,
		"plans", result.Plans,
		"steps", result.Steps,
	)

	return transport.ImportResponse{
		Categories: result.Categories,
		Topics:     result.Topics,
		Templates:  result.Templates,
		Plans:      result.Plans,
		Steps:      result.Steps,
	}, nil
}

func toPlanResponse(p repository.Plan, steps []repository.ResolvedStep) transport.PlanResponse {
	resp := transport.PlanResponse{
		ID:               p.ID,
		Name:             p.Name,
		ProductID:        p.ProductID,
		SourceID:         p.SourceID,
		TargetStatusCode: p.TargetStatusCode,
		IsActive:         p.IsActive,
		CreatedAt:        p.CreatedAt,
	}
	for _, st := range steps {
		resp.Steps = append(resp.Steps, transport.StepResponse{
			Order:      st.Order,
			DelayHours: st.DelayHours,
			TopicID:    st.TopicID,
			Slot:       st.Slot,
			Body:       st.Template.Body,
			MediaURL:   st.Template.MediaURL,
			MediaMime:  st.Template.MediaMime,
			FileName:   st.Template.FileName,
		})
	}
	return resp
}

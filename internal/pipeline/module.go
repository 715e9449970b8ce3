// Package pipeline provides the lead pipeline bounded context module:
// stage, status and sub-status transitions with an interval history.
package pipeline

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/pipeline/handler"
	"leadflow_backend/internal/pipeline/repository"
	"leadflow_backend/internal/pipeline/service"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the pipeline module.
func NewModule(pool *pgxpool.Pool, nurturing service.NurturingLifecycle, bus events.Bus, clock clockwork.Clock, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New()
	svc := service.New(db.NewTxRunner(pool), pool, repo, nurturing, bus, clock, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// Service returns the transition engine for other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts pipeline routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leads := ctx.Protected.Group("/leads/:id")
	leads.POST("/stage", m.handler.AdvanceStage)
	leads.POST("/stages/:stageId/complete", m.handler.CompleteStage)
	leads.POST("/status", m.handler.ChangeStatus)
	leads.POST("/sub-status", m.handler.ChangeSubStatus)
	leads.GET("/history/:dimension", m.handler.ListHistory)
}

var _ apphttp.Module = (*Module)(nil)

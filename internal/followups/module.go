// Package followups provides the follow-up planning bounded context module.
package followups

import (
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/followups/domain"
	"leadflow_backend/internal/followups/handler"
	"leadflow_backend/internal/followups/repository"
	"leadflow_backend/internal/followups/service"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

// Module is the follow-ups bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the follow-ups module.
func NewModule(pool *pgxpool.Pool, nurturing service.NurturingPauser, cfg config.FollowUpConfig, bus events.Bus, clock clockwork.Clock, val *validator.Validator, log *logger.Logger) *Module {
	planner := domain.NewPlanner(cfg.GetFollowUpHour(), cfg.GetFollowUpLocation())
	svc := service.New(db.NewTxRunner(pool), pool, repository.New(), nurturing, planner, bus, clock, log)
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "followups"
}

// RegisterRoutes mounts follow-up routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/leads/:id/follow-ups", m.handler.List)

	followUps := ctx.Protected.Group("/follow-ups")
	followUps.POST("/recalculate", m.handler.Recalculate)
	followUps.POST("/:id/reschedule", m.handler.Reschedule)
	followUps.POST("/:id/complete", m.handler.Complete)
}

var _ apphttp.Module = (*Module)(nil)

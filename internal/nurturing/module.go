// Package nurturing provides the lead nurturing bounded context module: the
// per-lead state machine plus the auto-resume and send sweeps.
package nurturing

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/nurturing/handler"
	"leadflow_backend/internal/nurturing/repository"
	"leadflow_backend/internal/nurturing/service"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

// Collaborators are the outside services nurturing drives.
type Collaborators struct {
	Plans    service.PlanResolver
	Gateway  service.Gateway
	Links    service.LinkMinter
	Media    service.MediaResolver
	Observer service.SweepObserver
}

// Config is what the module reads from application configuration.
type Config interface {
	config.NurturingConfig
	config.TrackingConfig
}

// Module is the nurturing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the nurturing module.
func NewModule(pool *pgxpool.Pool, collab Collaborators, cfg Config, bus events.Bus, clock clockwork.Clock, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(service.Deps{
		Tx:             db.NewTxRunner(pool),
		DB:             pool,
		Repo:           repository.New(),
		Plans:          collab.Plans,
		Gateway:        collab.Gateway,
		Links:          collab.Links,
		Media:          collab.Media,
		Bus:            bus,
		Clock:          clock,
		Observer:       collab.Observer,
		Log:            log,
		AutoResumeIdle: cfg.GetAutoResumeIdle(),
		BatchSize:      cfg.GetSweepBatchSize(),
		DispatchDelay:  cfg.GetDispatchDelay(),
		LinkTargetURL:  cfg.GetTrackingLandingURL(),
	})

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "nurturing"
}

// Service returns the nurturing service for the pipeline, follow-ups and scheduler.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts nurturing routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	lead := ctx.Protected.Group("/leads/:id/nurturing")
	lead.GET("", m.handler.Get)
	lead.POST("/toggle", m.handler.Toggle)
	lead.POST("/pause", m.handler.Pause)
	lead.POST("/stop", m.handler.Stop)
	lead.PUT("/plan", m.handler.BindPlan)

	ctx.Cron.POST("/nurturing/auto-resume", m.handler.RunAutoResume)
	ctx.Cron.POST("/nurturing/send", m.handler.RunSend)
}

var _ apphttp.Module = (*Module)(nil)

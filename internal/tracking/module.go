// Package tracking provides the tracked-link bounded context module.
package tracking

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/tracking/handler"
	"leadflow_backend/internal/tracking/repository"
	"leadflow_backend/internal/tracking/service"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tracking bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the tracking module.
func NewModule(pool *pgxpool.Pool, cfg config.TrackingConfig, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(db.NewTxRunner(pool), pool, repository.New(), bus, cfg.GetTrackingBaseURL(), cfg.GetTrackingLandingURL(), log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tracking"
}

// Service returns the link service; nurturing mints links through it.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts tracking routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.GET("/l/:code", m.handler.Redirect)
	ctx.Public.HEAD("/l/:code", m.handler.Redirect)

	ctx.Protected.POST("/leads/:id/links", m.handler.Mint)
	ctx.Protected.GET("/links/:code/qr", m.handler.QR)
}

var _ apphttp.Module = (*Module)(nil)

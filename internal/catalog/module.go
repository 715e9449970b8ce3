// Package catalog provides the nurturing plan catalog bounded context module:
// categories, topics, A/B templates and ordered plan steps.
package catalog

import (
	"leadflow_backend/internal/catalog/handler"
	"leadflow_backend/internal/catalog/repository"
	"leadflow_backend/internal/catalog/service"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the catalog bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the catalog module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "catalog"
}

// Service is the plan resolver nurturing reads from.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts catalog routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/nurturing/plans", m.handler.ListPlans)
	ctx.Protected.GET("/nurturing/plans/resolve", m.handler.ResolvePlan)
	ctx.Protected.GET("/nurturing/plans/:id", m.handler.GetPlan)
	ctx.Protected.GET("/nurturing/categories", m.handler.ListCategories)

	ctx.Admin.POST("/nurturing/catalog", m.handler.Import)
}

var _ apphttp.Module = (*Module)(nil)

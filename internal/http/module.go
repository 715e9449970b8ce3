// Package http defines how bounded-context modules attach to the API.
package http

import "github.com/gin-gonic/gin"

// Module is a bounded context with HTTP routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups a module may mount on.
type RouterContext struct {
	// Public sits at the engine root behind the per-IP limiter.
	Public *gin.RouterGroup
	// Protected is /api/v1 behind access-token auth.
	Protected *gin.RouterGroup
	// Admin is /api/v1/admin and also requires the admin role.
	Admin *gin.RouterGroup
	// Cron is /api/v1/cron behind the shared cron secret.
	Cron *gin.RouterGroup
}

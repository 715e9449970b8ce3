package realtime

import (
	"context"

	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// Module wires the realtime notifier into the router and event bus.
type Module struct {
	notifier *Notifier
}

// NewModule creates the module and subscribes it to bus. rdb may be nil.
func NewModule(rdb redis.UniversalClient, bus events.Bus, clock clockwork.Clock, log *logger.Logger) *Module {
	n := NewNotifier(NewHub(log), rdb, clock, log)
	n.SubscribeAll(bus)
	return &Module{notifier: n}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "realtime"
}

// Run relays cross-instance events until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	return m.notifier.Run(ctx)
}

// Notifier exposes Emit for direct callers.
func (m *Module) Notifier() *Notifier {
	return m.notifier
}

// RegisterRoutes mounts the SSE stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/realtime/stream", m.notifier.Stream)
}

var _ apphttp.Module = (*Module)(nil)

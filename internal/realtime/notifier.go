package realtime

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel shared by all API instances.
const Channel = "leadflow:realtime"

// Notifier publishes room events. With Redis every instance's hub receives
// them; without it only the local hub does.
type Notifier struct {
	hub   *Hub
	rdb   redis.UniversalClient
	clock clockwork.Clock
	log   *logger.Logger
}

// NewNotifier creates a notifier. rdb may be nil.
func NewNotifier(hub *Hub, rdb redis.UniversalClient, clock clockwork.Clock, log *logger.Logger) *Notifier {
	return &Notifier{hub: hub, rdb: rdb, clock: clock, log: log}
}

// NewRedisClient opens the Redis client described by cfg, or returns nil when
// no Redis URL is configured.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

// Emit is fire-and-forget: failures are logged, never returned.
func (n *Notifier) Emit(ctx context.Context, room, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("realtime payload not serializable", "room", room, "event", event, "error", err)
		return
	}
	msg := Message{Room: room, Event: event, Payload: data, SentAt: n.clock.Now().UTC()}

	if n.rdb == nil {
		n.hub.Deliver(msg)
		return
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		n.log.Error("realtime message not serializable", "room", room, "event", event, "error", err)
		return
	}
	if err := n.rdb.Publish(ctx, Channel, raw).Err(); err != nil {
		n.log.Warn("realtime publish failed, delivering locally", "room", room, "event", event, "error", err)
		n.hub.Deliver(msg)
	}
}

// Run relays Redis messages into the local hub until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	if n.rdb == nil {
		<-ctx.Done()
		return nil
	}

	sub := n.rdb.Subscribe(ctx, Channel)
	defer func() {
		_ = sub.Close()
	}()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				n.log.Warn("realtime message malformed", "error", err)
				continue
			}
			n.hub.Deliver(msg)
		}
	}
}

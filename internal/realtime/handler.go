package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"leadflow_backend/internal/shared/actor"
	"leadflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const keepAliveInterval = 25 * time.Second

// Stream handles GET /api/v1/realtime/stream?lead=<id>
func (n *Notifier) Stream(c *gin.Context) {
	act := actor.FromIdentity(httpkit.MustGetIdentity(c))

	rooms := make([]string, 0, 2)
	if act.IsSalesOnly() {
		if act.SalesID == nil {
			httpkit.Error(c, http.StatusForbidden, "sales identity required", nil)
			return
		}
		rooms = append(rooms, SalesRoom(*act.SalesID))
	} else {
		rooms = append(rooms, TeamRoom)
	}
	if raw := c.Query("lead"); raw != "" {
		leadID, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
			return
		}
		rooms = append(rooms, LeadRoom(leadID))
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	cl := n.hub.join(rooms...)
	defer n.hub.leave(cl)

	c.SSEvent("connected", gin.H{"rooms": rooms})
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.SSEvent("ping", "")
			c.Writer.Flush()
		case msg, ok := <-cl.events:
			if !ok {
				return
			}
			data, _ := json.Marshal(msg)
			c.SSEvent(msg.Event, string(data))
			c.Writer.Flush()
		}
	}
}

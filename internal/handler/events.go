package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/triage-service/internal/controller"
)

const keepAliveInterval = 25 * time.Second

type EventsHandler struct {
	ctl *controller.Controller
}

func NewEventsHandler(ctl *controller.Controller) *EventsHandler {
	return &EventsHandler{ctl: ctl}
}

// Stream: поток событий контроллера (SSE). Первым приходит текущее состояние;
// после потери событий приходит resync, и клиент перечитывает список.
func (h *EventsHandler) Stream(c *gin.Context) {
	hub := h.ctl.Hub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent(controller.EventState, h.ctl.State())
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case e := <-sub.C:
			if sub.TakeResync() {
				c.SSEvent(controller.EventResync, h.ctl.State())
			}
			c.SSEvent(e.Type, e.Data)
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
		}
		c.Writer.Flush()
	}
}

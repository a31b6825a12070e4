package api

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 25 * time.Second

// StreamEvents pushes broadcast signals to the client as server-sent events.
// The first event carries the current version so clients can detect gaps.
func (h *Handler) StreamEvents(c *gin.Context) {
	signals, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("hello", gin.H{"version": h.hub.Version()})
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case sig, ok := <-signals:
			if !ok {
				return false
			}
			c.SSEvent(string(sig.Kind), sig)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"version": h.hub.Version()})
			return true
		}
	})
}

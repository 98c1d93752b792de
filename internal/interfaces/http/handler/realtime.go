package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carebridge/backend/internal/infrastructure/realtime"
)

// RealtimeHandler streams order lifecycle events to dashboard clients
// over Server-Sent Events
type RealtimeHandler struct {
	BaseHandler
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewRealtimeHandler creates a new RealtimeHandler
func NewRealtimeHandler(hub *realtime.Hub, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{
		hub:    hub,
		logger: logger,
	}
}

// RegisterRoutes registers the realtime routes
func (h *RealtimeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/realtime/orders", h.Stream)
}

// Stream establishes an SSE connection delivering order events until the
// client disconnects or the hub shuts down
func (h *RealtimeHandler) Stream(c *gin.Context) {
	client, err := h.hub.Register()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MAX_CONNECTIONS_REACHED",
				"message": "Maximum number of realtime connections reached",
			},
		})
		return
	}
	defer h.hub.Unregister(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	h.logger.Info("Realtime client connected", zap.String("client_id", client.ID))

	sendEvent(c.Writer, realtime.Message{
		Event: "connected",
		Data:  fmt.Sprintf(`{"client_id":"%s","timestamp":%d}`, client.ID, time.Now().Unix()),
	})
	c.Writer.Flush()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			h.logger.Info("Realtime client disconnected", zap.String("client_id", client.ID))
			return
		case <-client.Done:
			return
		case <-h.hub.Done():
			return
		case msg, ok := <-client.Chan:
			if !ok {
				return
			}
			sendEvent(c.Writer, msg)
			c.Writer.Flush()
		}
	}
}

// sendEvent writes one SSE frame
func sendEvent(w io.Writer, msg realtime.Message) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

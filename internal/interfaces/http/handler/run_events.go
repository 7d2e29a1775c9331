package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/infrastructure/notify"
)

// RunEventsHandler streams run progress events to operators via SSE.
// It is a thin bridge over the notify hub: the hub owns subscriber
// bookkeeping, this handler only encodes messages onto the wire.
type RunEventsHandler struct {
	BaseHandler
	hub       *notify.Hub
	logger    *zap.Logger
	heartbeat time.Duration
}

// RunEventsOption is a functional option for configuring the handler
type RunEventsOption func(*RunEventsHandler)

// WithEventsLogger sets the logger for the handler
func WithEventsLogger(logger *zap.Logger) RunEventsOption {
	return func(h *RunEventsHandler) {
		h.logger = logger
	}
}

// WithEventsHeartbeat sets the keep-alive interval
func WithEventsHeartbeat(interval time.Duration) RunEventsOption {
	return func(h *RunEventsHandler) {
		h.heartbeat = interval
	}
}

// NewRunEventsHandler creates a new run events SSE handler
func NewRunEventsHandler(hub *notify.Hub, opts ...RunEventsOption) *RunEventsHandler {
	h := &RunEventsHandler{
		hub:       hub,
		logger:    zap.NewNop(),
		heartbeat: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stream godoc
//
//	@Summary		Subscribe to run progress events via SSE
//	@Description	Establishes a Server-Sent Events connection emitting session-started, session-completed, session-error and run lifecycle events for one run
//	@Tags			simulation
//	@Produce		text/event-stream
//	@Param			id	path		string	true	"Run ID"
//	@Success		200	{string}	string	"SSE stream"
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/simulation/runs/{id}/events [get]
func (h *RunEventsHandler) Stream(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid run ID format")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// The server-wide write deadline would kill long-lived streams.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	events, cancel := h.hub.Subscribe(runID)
	defer cancel()

	h.logger.Info("run event subscriber connected",
		zap.String("run_id", runID.String()),
		zap.Int("subscribers", h.hub.SubscriberCount(runID)))

	writeEvent(c.Writer, "connected",
		fmt.Sprintf(`{"run_id":"%s","timestamp":%d}`, runID, time.Now().Unix()))
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			h.logger.Debug("run event subscriber disconnected",
				zap.String("run_id", runID.String()))
			return
		case <-ticker.C:
			writeEvent(c.Writer, "heartbeat",
				fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()))
			c.Writer.Flush()
		case msg, ok := <-events:
			if !ok {
				return
			}
			writeEvent(c.Writer, msg.Type, string(msg.Data))
			c.Writer.Flush()
		}
	}
}

// writeEvent encodes one SSE frame
func writeEvent(w io.Writer, event, data string) {
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

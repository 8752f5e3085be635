package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/reviq/backend/internal/pipeline"
	"github.com/reviq/backend/pkg/logger"
)

// WebSocketHandler streams batch scoring runs: the client requests a run and
// receives stage progress messages until the run summary arrives.
type WebSocketHandler struct {
	pipeline        *pipeline.Pipeline
	defaultStrategy string
}

func NewWebSocketHandler(p *pipeline.Pipeline, defaultStrategy string) *WebSocketHandler {
	return &WebSocketHandler{pipeline: p, defaultStrategy: defaultStrategy}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			Strategy string `json:"strategy"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "run" {
			continue
		}

		strategy := msg.Strategy
		if strategy == "" {
			strategy = h.defaultStrategy
		}

		logger.Info("Processing WebSocket scoring run", zap.String("strategy", strategy))

		if err := h.streamRun(c, strategy); err != nil {
			logger.Error("Failed to stream scoring run", zap.Error(err))
			h.sendError(c, "Scoring run failed")
		}
	}
}

func (h *WebSocketHandler) streamRun(c *websocket.Conn, strategy string) error {
	progress := func(stage string, count int) {
		c.WriteJSON(map[string]interface{}{
			"type":  "progress",
			"stage": stage,
			"count": count,
		})
	}

	summary, err := h.pipeline.Run(context.Background(), strategy, progress)
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":        "complete",
		"run_id":      summary.RunID,
		"strategy":    summary.Strategy,
		"patients":    summary.Patients,
		"events":      summary.Events,
		"duration_ms": summary.DurationMS,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

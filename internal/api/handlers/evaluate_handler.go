package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reviq/backend/internal/evaluation"
	"github.com/reviq/backend/pkg/logger"
)

type EvaluateHandler struct {
	evaluator *evaluation.Evaluator
}

func NewEvaluateHandler(evaluator *evaluation.Evaluator) *EvaluateHandler {
	return &EvaluateHandler{evaluator: evaluator}
}

// HandleEvaluate re-predicts scored patients and reports the drift between
// the lookup predictions and the pipeline-computed scores.
func (h *EvaluateHandler) HandleEvaluate(c *fiber.Ctx) error {
	var req struct {
		Limit int `json:"limit"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	report, err := h.evaluator.Evaluate(c.Context(), req.Limit)
	if err != nil {
		logger.Error("Evaluation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Evaluation failed",
		})
	}

	return c.JSON(report)
}

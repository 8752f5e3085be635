package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reviq/backend/internal/cache/redis"
	"github.com/reviq/backend/internal/metrics"
	"github.com/reviq/backend/internal/pipeline"
	"github.com/reviq/backend/internal/storage"
	"github.com/reviq/backend/internal/storage/sqlite"
	"github.com/reviq/backend/pkg/logger"
)

type ScoreHandler struct {
	pipeline        *pipeline.Pipeline
	db              *sqlite.Client
	cache           *redis.Client
	defaultStrategy string
}

func NewScoreHandler(p *pipeline.Pipeline, db *sqlite.Client, cache *redis.Client, defaultStrategy string) *ScoreHandler {
	return &ScoreHandler{
		pipeline:        p,
		db:              db,
		cache:           cache,
		defaultStrategy: defaultStrategy,
	}
}

func (h *ScoreHandler) RunScore(c *fiber.Ctx) error {
	var req struct {
		Strategy string `json:"strategy"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	if req.Strategy == "" {
		req.Strategy = h.defaultStrategy
	}

	summary, err := h.pipeline.Run(c.Context(), req.Strategy, nil)
	if err != nil {
		var schemaErr *storage.SchemaError
		if errors.As(err, &schemaErr) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": schemaErr.Error(),
			})
		}
		logger.Error("Batch scoring run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Scoring run failed",
		})
	}

	return c.JSON(summary)
}

func (h *ScoreHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	runs, err := h.db.ListScoreRuns(limit)
	if err != nil {
		logger.Error("Failed to list score runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list score runs",
		})
	}

	out := make([]fiber.Map, 0, len(runs))
	for _, r := range runs {
		out = append(out, fiber.Map{
			"run_id":        r.ID,
			"strategy":      r.Strategy,
			"patient_count": r.PatientCount,
			"event_count":   r.EventCount,
			"duration_ms":   r.DurationMS,
			"created_at":    r.CreatedAt.Unix(),
		})
	}
	return c.JSON(fiber.Map{"runs": out})
}

func (h *ScoreHandler) GetPatientScores(c *fiber.Ctx) error {
	patientID := c.Params("id")
	if patientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "patient id is required",
		})
	}

	if h.cache != nil {
		cached, hit, err := h.cache.GetScores(c.Context(), patientID)
		if err != nil {
			logger.Warn("Score cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("scores").Inc()
			return c.JSON(cached)
		}
		metrics.CacheMisses.WithLabelValues("scores").Inc()
	}

	scores, err := h.db.GetPatientScores(patientID)
	if err != nil {
		logger.Error("Failed to get patient scores", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get patient scores",
		})
	}
	if scores == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "patient not found in scored table",
		})
	}

	if h.cache != nil {
		if err := h.cache.SetScores(c.Context(), patientID, scores); err != nil {
			logger.Warn("Failed to cache patient scores", zap.Error(err))
		}
	}

	return c.JSON(scores)
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reviq/backend/internal/ingest"
	"github.com/reviq/backend/internal/storage"
	"github.com/reviq/backend/pkg/logger"
)

type IngestHandler struct {
	loader *ingest.Loader
}

func NewIngestHandler(loader *ingest.Loader) *IngestHandler {
	return &IngestHandler{loader: loader}
}

// UploadTable ingests one CSV upload into the named input table.
func (h *IngestHandler) UploadTable(c *fiber.Ctx) error {
	table := c.Params("table")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file upload is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read upload",
		})
	}
	defer file.Close()

	count, err := h.loader.Load(table, file)
	if err != nil {
		var schemaErr *storage.SchemaError
		if errors.As(err, &schemaErr) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": schemaErr.Error(),
			})
		}
		logger.Error("Ingest failed", zap.String("table", table), zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"table": table,
		"rows":  count,
	})
}

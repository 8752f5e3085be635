package handlers

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reviq/backend/internal/cache/redis"
	"github.com/reviq/backend/internal/metrics"
	"github.com/reviq/backend/internal/predict"
	"github.com/reviq/backend/internal/storage/models"
	"github.com/reviq/backend/pkg/logger"
	"github.com/reviq/backend/pkg/utils"
)

type PredictHandler struct {
	predictor *predict.Predictor
	cache     *redis.Client
}

func NewPredictHandler(predictor *predict.Predictor, cache *redis.Client) *PredictHandler {
	return &PredictHandler{predictor: predictor, cache: cache}
}

// HandlePredict accepts a single patient record (JSON object) or a batch
// (JSON array) and returns one predicted score set per record. Any other
// payload shape is an input type mismatch.
func (h *PredictHandler) HandlePredict(c *fiber.Ctx) error {
	body := bytes.TrimSpace(c.Body())

	records, err := decodeRecords(body)
	if err != nil {
		metrics.Predictions.WithLabelValues("invalid").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	requestHash := utils.HashBytes(body)
	if h.cache != nil {
		var cached []models.PatientScores
		hit, err := h.cache.GetPrediction(c.Context(), requestHash, &cached)
		if err != nil {
			logger.Warn("Prediction cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("predictions").Inc()
			return c.JSON(fiber.Map{"predictions": cached, "count": len(cached)})
		}
		metrics.CacheMisses.WithLabelValues("predictions").Inc()
	}

	predictions, err := h.predictor.PredictBatch(c.Context(), records)
	if err != nil {
		metrics.Predictions.WithLabelValues("error").Inc()
		logger.Error("Prediction failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to predict scores",
		})
	}

	metrics.Predictions.WithLabelValues("success").Inc()

	if h.cache != nil {
		if err := h.cache.SetPrediction(c.Context(), requestHash, predictions); err != nil {
			logger.Warn("Failed to cache prediction", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{"predictions": predictions, "count": len(predictions)})
}

// decodeRecords resolves the single-record / batch duality of the predict
// payload; anything that is neither is rejected as a type mismatch.
func decodeRecords(body []byte) ([]models.PatientRecord, error) {
	if len(body) == 0 {
		return nil, predict.ErrInput
	}

	switch body[0] {
	case '{':
		var raw map[string]interface{}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, predict.ErrInput
		}
		return []models.PatientRecord{recordFromMap(raw)}, nil
	case '[':
		var raws []map[string]interface{}
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, predict.ErrInput
		}
		records := make([]models.PatientRecord, 0, len(raws))
		for _, raw := range raws {
			records = append(records, recordFromMap(raw))
		}
		return records, nil
	}
	return nil, predict.ErrInput
}

// recordFromMap tolerates the loose typing of upstream payloads, where ids,
// phones and zip codes arrive as either numbers or strings.
func recordFromMap(raw map[string]interface{}) models.PatientRecord {
	p := models.PatientRecord{
		ID:               asString(raw["id"]),
		Name:             asString(raw["name"]),
		Phone:            asString(raw["phone"]),
		Email:            asString(raw["email"]),
		AddressLine1:     asString(raw["address_line1"]),
		AddressLine2:     asString(raw["address_line2"]),
		City:             asString(raw["city"]),
		State:            asString(raw["state"]),
		ZipCode:          asString(raw["zip_code"]),
		Gender:           asString(raw["gender"]),
		MaritialStatus:   asString(raw["maritial_status"]),
		Occupation:       asString(raw["occupation"]),
		PatientCondition: asString(raw["patient_condition"]),
		Age:              asInt(raw["age"]),
		NoOfDependant:    asInt(raw["no_of_dependant"]),
	}
	if grade := asString(raw["annual_income_grade"]); grade != "" {
		if v, err := strconv.Atoi(grade); err == nil {
			p.AnnualIncomeGrade = &v
		}
	}
	return p
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func asInt(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		i, _ := strconv.Atoi(t)
		return i
	}
	return 0
}

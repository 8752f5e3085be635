package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reviq/backend/internal/storage/models"
	"github.com/reviq/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetScores(ctx context.Context, patientID string, scores *models.PatientScores) error {
	data, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}

	if err := c.client.Set(ctx, scoresKey(patientID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set scores cache: %w", err)
	}

	logger.Debug("Scores cached", zap.String("patient_id", patientID))
	return nil
}

func (c *Client) GetScores(ctx context.Context, patientID string) (*models.PatientScores, bool, error) {
	data, err := c.client.Get(ctx, scoresKey(patientID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get scores cache: %w", err)
	}

	var scores models.PatientScores
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached scores: %w", err)
	}

	logger.Debug("Scores cache hit", zap.String("patient_id", patientID))
	return &scores, true, nil
}

func (c *Client) SetPrediction(ctx context.Context, requestHash string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	if err := c.client.Set(ctx, predictionKey(requestHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set prediction cache: %w", err)
	}
	return nil
}

func (c *Client) GetPrediction(ctx context.Context, requestHash string, payload interface{}) (bool, error) {
	data, err := c.client.Get(ctx, predictionKey(requestHash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get prediction cache: %w", err)
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached prediction: %w", err)
	}
	return true, nil
}

// Invalidate drops every cached score and prediction. Called after a batch
// run replaces the scored table.
func (c *Client) Invalidate(ctx context.Context) error {
	for _, pattern := range []string{"scores:*", "prediction:*"} {
		iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				logger.Warn("Failed to delete cache key", zap.Error(err))
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to iterate cache keys: %w", err)
		}
	}

	logger.Info("Score cache invalidated")
	return nil
}

func scoresKey(patientID string) string {
	return fmt.Sprintf("scores:%s", patientID)
}

func predictionKey(hash string) string {
	return fmt.Sprintf("prediction:%s", hash)
}

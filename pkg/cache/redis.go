// Package cache provides an optional Redis read-through cache for prediction
// results. Cache failures never fail a prediction; they degrade to direct
// computation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/materio/materio-go/pkg/models"
)

// PredictionCache caches ranked prediction results keyed by model id and
// input properties.
type PredictionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// New connects to Redis and returns a prediction cache
func New(redisURL string, ttl time.Duration, logger *logrus.Logger) (*PredictionCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PredictionCache{client: client, ttl: ttl, logger: logger}, nil
}

// Get returns cached results for the inputs, or false on miss or error
func (c *PredictionCache) Get(ctx context.Context, modelID string, properties map[string]string) ([]models.PredictionResult, bool) {
	data, err := c.client.Get(ctx, c.key(modelID, properties)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Debug("prediction cache read failed")
		return nil, false
	}

	var results []models.PredictionResult
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.WithError(err).Warn("prediction cache entry corrupt, ignoring")
		return nil, false
	}
	return results, true
}

// Set stores results for the inputs with the configured TTL
func (c *PredictionCache) Set(ctx context.Context, modelID string, properties map[string]string, results []models.PredictionResult) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.WithError(err).Warn("failed to marshal prediction results for cache")
		return
	}
	if err := c.client.Set(ctx, c.key(modelID, properties), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("prediction cache write failed")
	}
}

// Close closes the Redis connection
func (c *PredictionCache) Close() error {
	return c.client.Close()
}

// key hashes the sorted input properties so equivalent maps share an entry
func (c *PredictionCache) key(modelID string, properties map[string]string) string {
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(properties[k]))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("materio:predictions:%s:%x", modelID, h.Sum64())
}

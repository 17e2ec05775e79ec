package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidpet/product-price-service/internal/config"
	"github.com/davidpet/product-price-service/internal/domain/models"
)

const keyPrefix = "lowest:"

// Adapter implements the CachePort interface for Redis.
type Adapter struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a new Redis adapter and verifies the connection.
func New(cfg config.RedisConfig) (*Adapter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Adapter{
		client: client,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
	}, nil
}

// Invalidate removes the cached record for a product.
func (a *Adapter) Invalidate(ctx context.Context, productID string) error {
	return a.client.Del(ctx, keyPrefix+productID).Err()
}

// Retrieve returns the cached record, or nil on a miss.
func (a *Adapter) Retrieve(ctx context.Context, productID string) (*models.PriceRecord, error) {
	data, err := a.client.Get(ctx, keyPrefix+productID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var record models.PriceRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, err
	}

	return &record, nil
}

// Update stores the record for a product. The TTL bounds how long a lost
// invalidation can serve a stale price.
func (a *Adapter) Update(ctx context.Context, productID string, record models.PriceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return a.client.Set(ctx, keyPrefix+productID, data, a.ttl).Err()
}

// DebugInfo dumps the cached records.
func (a *Adapter) DebugInfo(ctx context.Context) (map[string]models.PriceRecord, error) {
	keys, err := a.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}

	dump := make(map[string]models.PriceRecord, len(keys))
	if len(keys) == 0 {
		return dump, nil
	}

	values, err := a.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, value := range values {
		if value == nil {
			continue
		}

		var record models.PriceRecord
		if err := json.Unmarshal([]byte(value.(string)), &record); err != nil {
			continue
		}
		dump[strings.TrimPrefix(keys[i], keyPrefix)] = record
	}

	return dump, nil
}

// Close closes the cache connection.
func (a *Adapter) Close() error {
	return a.client.Close()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sunnyapi/internal/model"
)

// TaxonomyCache stores the flat node list of each tree. Writes to a tree must call Invalidate.
type TaxonomyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTaxonomyCache(client *redis.Client, ttl time.Duration) *TaxonomyCache {
	return &TaxonomyCache{client: client, ttl: ttl}
}

func taxonomyKey(kind model.TaxonomyKind) string {
	return "taxonomy:" + string(kind)
}

func (c *TaxonomyCache) Get(ctx context.Context, kind model.TaxonomyKind) ([]model.Taxonomy, error) {
	data, err := c.client.Get(ctx, taxonomyKey(kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var nodes []model.Taxonomy
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("decode cached taxonomy: %w", err)
	}
	return nodes, nil
}

func (c *TaxonomyCache) Set(ctx context.Context, kind model.TaxonomyKind, nodes []model.Taxonomy) error {
	data, err := json.Marshal(nodes)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, taxonomyKey(kind), data, c.ttl).Err()
}

func (c *TaxonomyCache) Invalidate(ctx context.Context, kind model.TaxonomyKind) error {
	return c.client.Del(ctx, taxonomyKey(kind)).Err()
}

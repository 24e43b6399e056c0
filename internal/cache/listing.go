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

// ListingCache stores published listings by kind and id.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewListingCache(client *redis.Client, ttl time.Duration) *ListingCache {
	return &ListingCache{client: client, ttl: ttl}
}

func listingKey(kind model.Kind, id string) string {
	return fmt.Sprintf("listing:%s:%s", kind, id)
}

func (c *ListingCache) Get(ctx context.Context, kind model.Kind, id string) (*model.Listing, error) {
	data, err := c.client.Get(ctx, listingKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var l model.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode cached listing: %w", err)
	}
	return &l, nil
}

func listingVersionKey(kind model.Kind, id string) string {
	return fmt.Sprintf("listing:%s:%s:version", kind, id)
}

// Version returns the invalidation counter of a listing. Read it before loading the listing
// from the database and pass it to Set.
func (c *ListingCache) Version(ctx context.Context, kind model.Kind, id string) (int64, error) {
	v, err := c.client.Get(ctx, listingVersionKey(kind, id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Set stores l unless the listing was invalidated after version was read.
func (c *ListingCache) Set(ctx context.Context, l *model.Listing, version int64) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	vkey := listingVersionKey(l.Kind, l.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, listingKey(l.Kind, l.ID), data, c.ttl)
			return nil
		})
		return err
	}, vkey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Delete drops the cached listing and bumps its version so in-flight fills are discarded.
func (c *ListingCache) Delete(ctx context.Context, kind model.Kind, id string) error {
	vkey := listingVersionKey(kind, id)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, listingKey(kind, id))
		pipe.Incr(ctx, vkey)
		if c.ttl > 0 {
			pipe.Expire(ctx, vkey, c.ttl)
		}
		return nil
	})
	return err
}

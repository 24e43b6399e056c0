package cache

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const limiterPrefix = "ratelimit:"

// LimiterStorage backs fiber's limiter middleware with Redis so limits hold across instances.
type LimiterStorage struct {
	client *redis.Client
}

func NewLimiterStorage(client *redis.Client) *LimiterStorage {
	return &LimiterStorage{client: client}
}

var _ fiber.Storage = (*LimiterStorage)(nil)

func (s *LimiterStorage) Get(key string) ([]byte, error) {
	val, err := s.client.Get(context.Background(), limiterPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *LimiterStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return s.client.Set(context.Background(), limiterPrefix+key, val, exp).Err()
}

func (s *LimiterStorage) Delete(key string) error {
	return s.client.Del(context.Background(), limiterPrefix+key).Err()
}

// Reset removes every limiter key.
func (s *LimiterStorage) Reset() error {
	ctx := context.Background()
	iter := s.client.Scan(ctx, 0, limiterPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close is a no-op; the client is owned by main.
func (s *LimiterStorage) Close() error { return nil }

package infra

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tnqbao/gau-share-service/config"
)

type RedisClient struct {
	Client *redis.Client
}

// InitRedisClient returns nil, nil when no host is configured.
func InitRedisClient(cfg *config.EnvConfig) (*RedisClient, error) {
	if cfg.Redis.RedisHost == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisHost + ":" + cfg.Redis.RedisPort,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Println("Connected to Redis:", cfg.Redis.RedisPort+" on "+cfg.Redis.RedisHost)

	return &RedisClient{Client: client}, nil
}

func NewRedisClient(client *redis.Client) *RedisClient {
	return &RedisClient{Client: client}
}

// IncrementWindow counts one hit in the fixed window stored at key. The window
// starts with the first hit; the returned duration is what is left of it.
func (r *RedisClient) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}

	if count == 1 {
		if err := r.Client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	ttl, err := r.Client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// lost expiry, e.g. a crash between INCR and PEXPIRE
		if err := r.Client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}

	return count, ttl, nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

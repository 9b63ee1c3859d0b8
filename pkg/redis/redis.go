package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

type IRedis interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

type redisClient struct {
	client *redis.Client
	prefix string
	log    *logrus.Logger
}

func New(cfg Config, log *logrus.Logger) IRedis {
	log.Info(fmt.Sprintf("Connecting to Redis at %s...", cfg.Address))

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		log.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client, prefix: cfg.Prefix, log: log}
}

func (r *redisClient) key(k string) string {
	return r.prefix + k
}

func (r *redisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Debug(fmt.Sprintf("Cache miss for key %s", key))
		return nil, ErrCacheMiss
	} else if err != nil {
		r.log.Error(fmt.Sprintf("Error getting key %s: %v", key, err))
		return nil, err
	}
	return val, nil
}

func (r *redisClient) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, expiration).Err(); err != nil {
		r.log.Error(fmt.Sprintf("Error setting key %s: %v", key, err))
		return err
	}
	r.log.Debug(fmt.Sprintf("Cached key %s for %v", key, expiration))
	return nil
}

func (r *redisClient) Delete(ctx context.Context, key string) error {
	result, err := r.client.Del(ctx, r.key(key)).Result()
	if err != nil {
		r.log.Error(fmt.Sprintf("Error deleting key %s: %v", key, err))
		return err
	}

	if result == 0 {
		r.log.Debug(fmt.Sprintf("Key %s not found for deletion", key))
	}

	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}

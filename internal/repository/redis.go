package repository

import (
	"context"
	"fmt"
	"sort"

	"hvacbook/internal/config"
	"hvacbook/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisReservationStore keeps one set per date. SADD reports whether the
// member was new, which makes the check-and-insert a single server-side step.
type RedisReservationStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisReservationStore(client *redis.Client) *RedisReservationStore {
	return &RedisReservationStore{
		client: client,
		prefix: "reservations",
	}
}

func (r *RedisReservationStore) key(date string) string {
	return fmt.Sprintf("%s:%s", r.prefix, date)
}

func (r *RedisReservationStore) Reserved(ctx context.Context, date string) ([]string, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	times, err := r.client.SMembers(ctx, r.key(date)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read reservations from redis: %w", err)
	}
	sort.Strings(times)
	return times, nil
}

func (r *RedisReservationStore) TryReserve(ctx context.Context, date, clock string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	added, err := r.client.SAdd(ctx, r.key(date), clock).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve slot in redis: %w", err)
	}
	if added == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

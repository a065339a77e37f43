package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	redisMemoryKey = "menta:memory"
	maxTxRetries   = 5
)

// RedisMemoryStore keeps memories as fields of one Redis hash, keyed by user id
type RedisMemoryStore struct {
	client *redis.Client
	logger logrus.FieldLogger
}

func NewRedisMemoryStore(cfg *config.RedisConfig, logger logrus.FieldLogger) (*RedisMemoryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisMemoryStoreWithClient(client, logger), nil
}

// NewRedisMemoryStoreWithClient wraps an existing client
func NewRedisMemoryStoreWithClient(client *redis.Client, logger logrus.FieldLogger) *RedisMemoryStore {
	return &RedisMemoryStore{client: client, logger: logger}
}

func (r *RedisMemoryStore) Get(ctx context.Context, userID int64) (*models.UserMemory, error) {
	data, err := r.client.HGet(ctx, redisMemoryKey, strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var mem models.UserMemory
	if err := json.Unmarshal([]byte(data), &mem); err != nil {
		return nil, err
	}
	return &mem, nil
}

// Update runs an optimistic WATCH transaction so concurrent writers never lose counts
func (r *RedisMemoryStore) Update(ctx context.Context, userID int64, at time.Time, sentiment models.Sentiment, recommendation string) (*models.UserMemory, error) {
	field := strconv.FormatInt(userID, 10)
	var mem models.UserMemory

	txf := func(tx *redis.Tx) error {
		mem = models.UserMemory{}
		data, err := tx.HGet(ctx, redisMemoryKey, field).Result()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(data), &mem); err != nil {
				return err
			}
		}

		mem.Apply(at, sentiment, recommendation)
		encoded, err := json.Marshal(&mem)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisMemoryKey, field, encoded)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, redisMemoryKey)
		if err == nil {
			return &mem, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		r.logger.WithField("user_id", userID).Debug("Memory update conflicted, retrying")
	}

	return nil, fmt.Errorf("memory update for %d: too many conflicts", userID)
}

func (r *RedisMemoryStore) Clear(ctx context.Context, userID int64) error {
	return r.client.HDel(ctx, redisMemoryKey, strconv.FormatInt(userID, 10)).Err()
}

func (r *RedisMemoryStore) Count(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, redisMemoryKey).Result()
	return int(n), err
}

func (r *RedisMemoryStore) Close() error {
	return r.client.Close()
}

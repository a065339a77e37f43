package storage

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/menta-tgbot-go/internal/models"
	"github.com/patrickmn/go-cache"
)

// CacheMemoryStore is a process-local backend for development and tests
type CacheMemoryStore struct {
	mu       sync.Mutex
	memories *cache.Cache
}

func NewCacheMemoryStore() *CacheMemoryStore {
	return &CacheMemoryStore{
		memories: cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

func (m *CacheMemoryStore) Get(ctx context.Context, userID int64) (*models.UserMemory, error) {
	if val, found := m.memories.Get(strconv.FormatInt(userID, 10)); found {
		mem := *val.(*models.UserMemory)
		return &mem, nil
	}
	return nil, ErrNotFound
}

func (m *CacheMemoryStore) Update(ctx context.Context, userID int64, at time.Time, sentiment models.Sentiment, recommendation string) (*models.UserMemory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strconv.FormatInt(userID, 10)
	mem := &models.UserMemory{}
	if val, found := m.memories.Get(key); found {
		copied := *val.(*models.UserMemory)
		mem = &copied
	}
	mem.Apply(at, sentiment, recommendation)
	m.memories.Set(key, mem, cache.NoExpiration)

	out := *mem
	return &out, nil
}

func (m *CacheMemoryStore) Clear(ctx context.Context, userID int64) error {
	m.memories.Delete(strconv.FormatInt(userID, 10))
	return nil
}

func (m *CacheMemoryStore) Count(ctx context.Context) (int, error) {
	return m.memories.ItemCount(), nil
}

func (m *CacheMemoryStore) Close() error { return nil }

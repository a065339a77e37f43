package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Recorder receives hit/miss events
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// SentimentCache remembers model labels for texts already classified
type SentimentCache struct {
	enabled bool
	cache   *cache.Cache
	logger  logrus.FieldLogger
	metrics Recorder
	maxSize int
}

// NewSentimentCache creates a new cache service
func NewSentimentCache(cfg *config.CacheConfig, metrics Recorder, logger logrus.FieldLogger) *SentimentCache {
	if !cfg.Enabled {
		return &SentimentCache{enabled: false}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &SentimentCache{
		enabled: true,
		cache:   cache.New(ttl, ttl*2),
		logger:  logger,
		metrics: metrics,
		maxSize: cfg.MaxSize,
	}
}

// Get returns the cached label for text
func (c *SentimentCache) Get(text string) (models.Sentiment, bool) {
	if c == nil || !c.enabled {
		return "", false
	}

	if val, found := c.cache.Get(generateKey(text)); found {
		entry := val.(*models.CacheEntry)
		c.logger.WithField("age", time.Since(entry.CreatedAt)).Debug("Sentiment cache hit")
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return entry.Sentiment, true
	}

	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}
	return "", false
}

// Set stores a label for text
func (c *SentimentCache) Set(text string, sentiment models.Sentiment) {
	if c == nil || !c.enabled {
		return
	}

	if c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.cache.DeleteExpired()
		if c.cache.ItemCount() >= c.maxSize {
			c.logger.Warn("Sentiment cache full, flushing")
			c.cache.Flush()
		}
	}

	c.cache.SetDefault(generateKey(text), &models.CacheEntry{
		Text:      text,
		Sentiment: sentiment,
		CreatedAt: time.Now(),
	})
}

// Len returns the number of cached labels
func (c *SentimentCache) Len() int {
	if c == nil || !c.enabled {
		return 0
	}
	return c.cache.ItemCount()
}

func generateKey(text string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(strings.ToLower(text))))
	return hex.EncodeToString(hash[:])
}

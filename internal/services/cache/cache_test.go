package cache

import (
	"testing"
	"time"

	"github.com/menta-tgbot-go/internal/config"
	"github.com/menta-tgbot-go/internal/models"
	"github.com/menta-tgbot-go/pkg/logger"
)

type countingRecorder struct {
	hits, misses int
}

func (r *countingRecorder) RecordCacheHit()  { r.hits++ }
func (r *countingRecorder) RecordCacheMiss() { r.misses++ }

func TestSentimentCache_GetSet(t *testing.T) {
	rec := &countingRecorder{}
	c := NewSentimentCache(&config.CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: 10}, rec, logger.Discard())

	if _, ok := c.Get("me siento bien"); ok {
		t.Fatalf("empty cache should miss")
	}
	c.Set("me siento bien", models.SentimentPositive)

	got, ok := c.Get("  Me siento BIEN ")
	if !ok || got != models.SentimentPositive {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if rec.hits != 1 || rec.misses != 1 {
		t.Fatalf("hits=%d misses=%d", rec.hits, rec.misses)
	}
}

func TestSentimentCache_MaxSizeFlushes(t *testing.T) {
	c := NewSentimentCache(&config.CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: 2}, nil, logger.Discard())
	c.Set("a", models.SentimentNeutral)
	c.Set("b", models.SentimentNeutral)
	c.Set("c", models.SentimentNegative)

	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1 after flush", c.Len())
	}
	if got, ok := c.Get("c"); !ok || got != models.SentimentNegative {
		t.Fatalf("latest entry should survive the flush")
	}
}

func TestSentimentCache_Disabled(t *testing.T) {
	c := NewSentimentCache(&config.CacheConfig{Enabled: false}, nil, logger.Discard())
	c.Set("x", models.SentimentPositive)
	if _, ok := c.Get("x"); ok {
		t.Fatalf("disabled cache must not return entries")
	}

	var nilCache *SentimentCache
	if _, ok := nilCache.Get("x"); ok {
		t.Fatalf("nil cache must miss")
	}
}

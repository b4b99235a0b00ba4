// Package cache stores generated product summaries keyed by product code and
// a hash of the request parameters that shaped the answer. It supports both
// in-memory (single instance) and Redis (distributed) backends. A hit lets
// the handler replay a stored answer instead of calling the language model.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store defines the interface for summary storage backends. Get reports
// absence via the bool; the error is reserved for backend failures so each
// call site can decide whether a failure is recoverable.
type Store interface {
	Get(ctx context.Context, productCode, key string) (string, bool, error)
	Put(ctx context.Context, productCode, key, summary string) error
}

// Key derives the cache key for a summary request from the product code, the
// active allergy and preference key names, and the output language. The key
// lists are sorted before joining so that two requests with the same active
// sets always map to the same key regardless of construction order. Free-text
// fields (health goal, religion) are deliberately not part of the key.
func Key(productCode string, allergies, preferences []string, language string) string {
	a := append([]string(nil), allergies...)
	p := append([]string(nil), preferences...)
	sort.Strings(a)
	sort.Strings(p)

	var b strings.Builder
	b.WriteString(productCode)
	b.WriteString(strings.Join(a, ","))
	b.WriteString(strings.Join(p, ","))
	b.WriteString(language)

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// InMemoryStore keeps summaries in a map. Suitable for tests and
// single-instance deployments without Redis.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]*storedSummary
	ttl   time.Duration
}

type storedSummary struct {
	summary   string
	expiresAt time.Time
}

// NewInMemoryStore creates an in-memory summary store. A ttl of zero keeps
// entries forever.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	s := &InMemoryStore{
		items: make(map[string]*storedSummary),
		ttl:   ttl,
	}
	if ttl > 0 {
		go s.cleanup()
	}
	return s
}

func (s *InMemoryStore) Get(ctx context.Context, productCode, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[storeKey(productCode, key)]
	if !ok {
		return "", false, nil
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		return "", false, nil
	}
	return item.summary, true, nil
}

func (s *InMemoryStore) Put(ctx context.Context, productCode, key, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := &storedSummary{summary: summary}
	if s.ttl > 0 {
		item.expiresAt = time.Now().Add(s.ttl)
	}
	s.items[storeKey(productCode, key)] = item
	return nil
}

func (s *InMemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for k, item := range s.items {
			if !item.expiresAt.IsZero() && now.After(item.expiresAt) {
				delete(s.items, k)
			}
		}
		s.mu.Unlock()
	}
}

// RedisStore persists summaries in Redis so that all instances share one
// answer cache.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, productCode, key string) (string, bool, error) {
	summary, err := s.client.Get(ctx, storeKey(productCode, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return summary, true, nil
}

func (s *RedisStore) Put(ctx context.Context, productCode, key, summary string) error {
	return s.client.Set(ctx, storeKey(productCode, key), summary, s.ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func storeKey(productCode, key string) string {
	return "summary:" + productCode + ":" + key
}

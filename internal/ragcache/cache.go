package ragcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/clients/redis"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/pkg/ctxutil"
)

// DefaultTTL matches the answer relevance window of the knowledge base.
const DefaultTTL = time.Hour

// Cache memoizes generated answers keyed by normalized query and language.
// When Redis is reachable entries live there and survive restarts; otherwise
// they live in an in-process map. The backend is chosen per call, so a Redis
// outage degrades to memory without restarts and recovery picks Redis back up.
type Cache interface {
	Get(ctx context.Context, query, lang string) (string, bool)
	Set(ctx context.Context, query, lang, response string)
	InvalidateAll(ctx context.Context) int
	Backend() string
}

type memoryEntry struct {
	response  string
	expiresAt time.Time
}

type cache struct {
	log   *logger.Logger
	redis redis.Client
	ttl   time.Duration
	now   func() time.Time

	mu     sync.Mutex
	memory map[string]memoryEntry
}

type Option func(*cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *cache) { c.ttl = ttl }
}

// WithNow overrides the clock, used by tests to step time.
func WithNow(now func() time.Time) Option {
	return func(c *cache) { c.now = now }
}

func New(log *logger.Logger, rc redis.Client, opts ...Option) Cache {
	c := &cache{
		log:    log.With("service", "ResponseCache"),
		redis:  rc,
		ttl:    DefaultTTL,
		now:    time.Now,
		memory: make(map[string]memoryEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives the cache key from the query and language. Queries differing
// only in case or surrounding whitespace share an entry.
func Key(query, lang string) string {
	normalized := strings.ToLower(strings.TrimSpace(query)) + ":" + lang
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (c *cache) Get(ctx context.Context, query, lang string) (string, bool) {
	ctx = ctxutil.Default(ctx)
	key := Key(query, lang)
	if c.redis != nil && c.redis.IsConnected(ctx) {
		response, ok, err := c.redis.CacheGet(ctx, key)
		if err != nil {
			c.log.Warn("cache get failed", "error", err)
			return "", false
		}
		return response, ok
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.memory[key]
	if !ok {
		return "", false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.memory, key)
		return "", false
	}
	return entry.response, true
}

func (c *cache) Set(ctx context.Context, query, lang, response string) {
	ctx = ctxutil.Default(ctx)
	key := Key(query, lang)
	if c.redis != nil && c.redis.IsConnected(ctx) {
		if err := c.redis.CacheSet(ctx, key, response, c.ttl); err != nil {
			c.log.Warn("cache set failed", "error", err)
		}
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory[key] = memoryEntry{response: response, expiresAt: c.now().Add(c.ttl)}
}

// InvalidateAll drops every cached response and returns how many were
// removed. Called when the knowledge base changes.
func (c *cache) InvalidateAll(ctx context.Context) int {
	ctx = ctxutil.Default(ctx)
	removed := 0
	if c.redis != nil && c.redis.IsConnected(ctx) {
		n, err := c.redis.CacheInvalidate(ctx)
		if err != nil {
			c.log.Warn("cache invalidate failed", "error", err)
		}
		removed += n
	}
	c.mu.Lock()
	removed += len(c.memory)
	c.memory = make(map[string]memoryEntry)
	c.mu.Unlock()
	c.log.Info("response cache invalidated", "removed", removed)
	return removed
}

func (c *cache) Backend() string {
	if c.redis != nil && c.redis.IsConnected(ctxutil.Default(nil)) {
		return "redis"
	}
	return "memory"
}

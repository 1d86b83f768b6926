package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/pkg/ctxutil"
	apperr "github.com/yungbote/helpdesk-backend/internal/pkg/errors"
	"github.com/yungbote/helpdesk-backend/internal/types"
	"github.com/yungbote/helpdesk-backend/internal/utils"
)

const (
	escalationKeyPrefix = "escalation:"
	escalationListKey   = "escalations:list"
	cacheKeyPrefix      = "rag:cache:"

	pingTimeout = 2 * time.Second
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		Addr:     utils.GetEnv("REDIS_ADDR", "localhost:6379", log),
		Password: utils.GetEnv("REDIS_PASSWORD", "", log),
		DB:       utils.GetEnvAsInt("REDIS_DB", 0, log),
	}
}

// Client wraps the Redis connection with the key layout used for escalations
// and the response cache. All methods tolerate a dead connection by returning
// an error; callers check IsConnected up front and route the whole operation
// to their memory backend instead.
type Client interface {
	IsConnected(ctx context.Context) bool

	SaveEscalation(ctx context.Context, esc *types.Escalation) error
	GetEscalation(ctx context.Context, number string) (*types.Escalation, error)
	AllEscalations(ctx context.Context) ([]*types.Escalation, error)
	DeleteEscalation(ctx context.Context, number string) error

	CacheGet(ctx context.Context, key string) (string, bool, error)
	CacheSet(ctx context.Context, key, value string, ttl time.Duration) error
	CacheInvalidate(ctx context.Context) (int, error)

	Close() error
}

type client struct {
	log *logger.Logger
	rdb *goredis.Client
}

// New connects and pings. A ping failure is returned as an error so the
// caller can run without Redis instead of crashing.
func New(log *logger.Logger, cfg Config) (Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	log.Info("redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return &client{log: log.With("service", "RedisClient"), rdb: rdb}, nil
}

func (c *client) IsConnected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), pingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err() == nil
}

func (c *client) SaveEscalation(ctx context.Context, esc *types.Escalation) error {
	ctx = ctxutil.Default(ctx)
	payload, err := json.Marshal(esc)
	if err != nil {
		return fmt.Errorf("marshal escalation %s: %w", esc.EscalationNumber, err)
	}
	key := escalationKeyPrefix + esc.EscalationNumber
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, payload, 0)
	pipe.SAdd(ctx, escalationListKey, esc.EscalationNumber)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save escalation %s: %w", esc.EscalationNumber, err)
	}
	return nil
}

func (c *client) GetEscalation(ctx context.Context, number string) (*types.Escalation, error) {
	ctx = ctxutil.Default(ctx)
	payload, err := c.rdb.Get(ctx, escalationKeyPrefix+number).Bytes()
	if err == goredis.Nil {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get escalation %s: %w", number, err)
	}
	var esc types.Escalation
	if err := json.Unmarshal(payload, &esc); err != nil {
		return nil, fmt.Errorf("decode escalation %s: %w", number, err)
	}
	return &esc, nil
}

func (c *client) AllEscalations(ctx context.Context) ([]*types.Escalation, error) {
	ctx = ctxutil.Default(ctx)
	numbers, err := c.rdb.SMembers(ctx, escalationListKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	out := make([]*types.Escalation, 0, len(numbers))
	for _, n := range numbers {
		esc, err := c.GetEscalation(ctx, n)
		if errors.Is(err, apperr.ErrNotFound) {
			// Stale list member, drop it.
			c.rdb.SRem(ctx, escalationListKey, n)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, esc)
	}
	return out, nil
}

func (c *client) DeleteEscalation(ctx context.Context, number string) error {
	ctx = ctxutil.Default(ctx)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, escalationKeyPrefix+number)
	pipe.SRem(ctx, escalationListKey, number)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete escalation %s: %w", number, err)
	}
	return nil
}

func (c *client) CacheGet(ctx context.Context, key string) (string, bool, error) {
	ctx = ctxutil.Default(ctx)
	value, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return value, true, nil
}

func (c *client) CacheSet(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx = ctxutil.Default(ctx)
	if err := c.rdb.Set(ctx, cacheKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// CacheInvalidate removes every response-cache key via a cursor scan and
// returns how many keys were deleted.
func (c *client) CacheInvalidate(ctx context.Context) (int, error) {
	ctx = ctxutil.Default(ctx)
	removed := 0
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, cacheKeyPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("cache del: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (c *client) Close() error {
	return c.rdb.Close()
}

package cache

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/locvowork/employee_directory/internal/logger"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "directory:http:"

// Store is the byte cache behind the response middleware.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Purge drops every cached response.
	Purge(ctx context.Context) error
}

type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore parses a redis:// URL and returns a store backed by it.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{redis: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.redis.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.redis.Set(ctx, keyPrefix+key, value, ttl).Err()
}

func (s *RedisStore) Purge(ctx context.Context) error {
	iter := s.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.redis.Del(ctx, keys...).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.redis.Close()
}

// NopStore never hits. Used when no redis URL is configured.
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, bool, error)          { return nil, false, nil }
func (NopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NopStore) Purge(context.Context) error                              { return nil }

type bodyRecorder struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// Middleware serves successful JSON GET responses from the store for ttl.
// Store failures are logged and the request falls through to the handler.
func Middleware(store Store, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet || ttl <= 0 {
				return next(c)
			}
			ctx := req.Context()
			key := req.URL.RequestURI()

			cached, ok, err := store.Get(ctx, key)
			if err != nil {
				logger.WarnLog(ctx, "Cache lookup failed for %s: %v", key, err)
			} else if ok {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(http.StatusOK, cached)
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				return err
			}

			res := c.Response()
			if res.Status != http.StatusOK || !strings.HasPrefix(res.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
				return nil
			}
			if err := store.Set(ctx, key, rec.buf.Bytes(), ttl); err != nil {
				logger.WarnLog(ctx, "Cache store failed for %s: %v", key, err)
			}
			return nil
		}
	}
}

package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"quickblog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
	// FailLocal falls back to an in-process per-key token bucket.
	FailLocal
)

var errNoRedis = errors.New("redis client is nil")

// CheckRateLimit counts a hit for resource/id in a fixed Redis window.
// Returns true if allowed, false if limit exceeded.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// RateLimitOptions tunes a RateLimit middleware instance.
type RateLimitOptions struct {
	// Name identifies the limited resource; defaults to the request path.
	Name string
	// Policy applies when Redis is nil or failing.
	Policy FailPolicy
	// Bypass disables limiting entirely (test and development environments).
	Bypass bool
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window` keyed by client IP.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, opts RateLimitOptions) fiber.Handler {
	local := newLocalLimiter(rate.Every(window/time.Duration(max(limit, 1))), limit)

	return func(c *fiber.Ctx) error {
		if opts.Bypass {
			return c.Next()
		}

		resource := opts.Name
		if resource == "" {
			resource = c.Path()
		}
		id := "ip:" + c.IP()

		allowed, err := CheckRateLimit(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil {
			switch opts.Policy {
			case FailClosed:
				Logger.WarnContext(c.UserContext(), "rate limit fail-closed",
					slog.String("resource", resource), slog.String("error", err.Error()))
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Message: "Rate limit unavailable",
				})
			case FailLocal:
				allowed = local.allow(resource + "|" + id)
			default:
				return c.Next()
			}
		}

		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Message: "Too many requests, please try again later",
			})
		}
		return c.Next()
	}
}

type localClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter is the in-process fallback used when Redis is unreachable.
type localLimiter struct {
	mu      sync.Mutex
	clients map[string]*localClient
	rate    rate.Limit
	burst   int
}

func newLocalLimiter(r rate.Limit, burst int) *localLimiter {
	return &localLimiter{
		clients: make(map[string]*localClient),
		rate:    r,
		burst:   max(burst, 1),
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	c, ok := l.clients[key]
	if !ok {
		c = &localClient{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.Allow()
}

// sweep drops idle entries; caller holds mu.
func (l *localLimiter) sweep(now time.Time) {
	const idle = 10 * time.Minute
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > idle {
			delete(l.clients, k)
		}
	}
}

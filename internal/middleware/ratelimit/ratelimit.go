package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type window struct {
	count int
	reset time.Time
}

// RateLimiter enforces a fixed-window per-client request budget, keyed by
// remote IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*window

	maxRequests int
	interval    time.Duration
	logger      *zap.Logger
}

type Config struct {
	MaxRequestsPerMinute int
	Logger               *zap.Logger
}

func New(cfg Config) *RateLimiter {
	if cfg.MaxRequestsPerMinute == 0 {
		cfg.MaxRequestsPerMinute = 60
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rl := &RateLimiter{
		clients:     make(map[string]*window),
		maxRequests: cfg.MaxRequestsPerMinute,
		interval:    time.Minute,
		logger:      cfg.Logger,
	}

	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rl.allow(c.IP()) {
			rl.logger.Warn("rate limit exceeded", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded",
			})
		}
		return c.Next()
	}
}

func (rl *RateLimiter) allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.clients[key]
	if w == nil || now.After(w.reset) {
		rl.clients[key] = &window{count: 1, reset: now.Add(rl.interval)}
		return true
	}

	if w.count >= rl.maxRequests {
		return false
	}
	w.count++
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		rl.mu.Lock()
		for key, w := range rl.clients {
			if now.After(w.reset) {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}

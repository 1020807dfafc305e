// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ============================================================================
// Request Logging
// ============================================================================

// requestLogger logs one line per request with timing.
func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		switch {
		case status >= 500:
			log.Warn("request", append(fields, zap.Error(err))...)
		default:
			log.Info("request", fields...)
		}
		return err
	}
}

// ============================================================================
// Auth
// ============================================================================

// requireAuth rejects requests without a live session cookie.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	if !s.auth.Validate(c.Cookies(TokenCookie)) {
		return sendText(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return c.Next()
}

// noStore marks API responses uncacheable.
func noStore(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Next()
}

// ============================================================================
// Login Rate Limiting
// ============================================================================

// Login attempts allowed per IP.
const (
	loginRatePerMinute = 5
	loginBurst         = 5
)

// ipLimiter hands out one token bucket per client IP. Idle buckets expire.
type ipLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

func newIPLimiter(perMinute, burst int) *ipLimiter {
	return &ipLimiter{
		limiters: cache.New(10*time.Minute, 10*time.Minute),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.limiters.Get(ip); ok {
		l.limiters.SetDefault(ip, v)
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters.SetDefault(ip, limiter)
	return limiter
}

// middleware answers 429 once an IP exhausts its bucket.
func (l *ipLimiter) middleware(c *fiber.Ctx) error {
	if !l.get(c.IP()).Allow() {
		return sendText(c, fiber.StatusTooManyRequests, "too many login attempts")
	}
	return c.Next()
}

// ============================================================================
// Helpers
// ============================================================================

// sendText writes a text/plain response.
func sendText(c *fiber.Ctx, status int, body string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(status).SendString(body)
}

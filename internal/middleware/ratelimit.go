package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Kosench/shortlink/internal/cache"
	"github.com/gin-gonic/gin"
)

const rateLimitMessage = "Too many requests. Please try again later."

// RedisRateLimit - rate limiter с использованием Redis, общий для всех инстансов
func RedisRateLimit(limiter cache.RateLimiter, keys *cache.KeyBuilder, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keys.RateLimit(c.ClientIP())

		count, err := limiter.IncrementRateLimit(c.Request.Context(), key, window)
		if err != nil {
			log.Printf("Rate limit error: %v", err)
			// При ошибке Redis пропускаем запрос
			c.Next()
			return
		}

		if count > int64(maxRequests) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": rateLimitMessage})
			return
		}

		c.Next()
	}
}

// InMemoryRateLimit - fallback rate limiter без Redis, скользящее окно на IP
func InMemoryRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return newMemoryLimiter(maxRequests, window, time.Now).handle
}

type memoryLimiter struct {
	mu          sync.Mutex
	requests    map[string][]time.Time
	maxRequests int
	window      time.Duration
	now         func() time.Time
	lastSweep   time.Time
}

func newMemoryLimiter(maxRequests int, window time.Duration, now func() time.Time) *memoryLimiter {
	return &memoryLimiter{
		requests:    make(map[string][]time.Time),
		maxRequests: maxRequests,
		window:      window,
		now:         now,
		lastSweep:   now(),
	}
}

func (l *memoryLimiter) allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.window {
		l.sweep(now)
	}

	// Очищаем старые записи
	times := l.requests[clientIP]
	valid := times[:0]
	for _, t := range times {
		if now.Sub(t) < l.window {
			valid = append(valid, t)
		}
	}

	if len(valid) >= l.maxRequests {
		l.requests[clientIP] = valid
		return false
	}

	l.requests[clientIP] = append(valid, now)
	return true
}

// sweep drops clients with no requests inside the window.
func (l *memoryLimiter) sweep(now time.Time) {
	for ip, times := range l.requests {
		if len(times) == 0 || now.Sub(times[len(times)-1]) >= l.window {
			delete(l.requests, ip)
		}
	}
	l.lastSweep = now
}

func (l *memoryLimiter) handle(c *gin.Context) {
	if !l.allow(c.ClientIP()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": rateLimitMessage})
		return
	}
	c.Next()
}

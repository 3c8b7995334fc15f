package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mediapipe/config"
)

// keyedLimiter is a per-client-IP sliding window, approximated with a
// golang.org/x/time/rate token bucket per key: burst == max requests, refill
// rate == max/window so a key that has been idle for the full window has a
// fresh full bucket again.
type keyedLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	lastSeen map[string]time.Time
	every    rate.Limit
	burst    int
	max      int
	window   time.Duration
}

func newKeyedLimiter(window time.Duration, max int) *keyedLimiter {
	k := &keyedLimiter{
		buckets:  make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		every:    rate.Every(window / time.Duration(max)),
		burst:    max,
		max:      max,
		window:   window,
	}
	go k.gcLoop()
	return k
}

func (k *keyedLimiter) limiterFor(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.buckets[key]
	if !ok {
		l = rate.NewLimiter(k.every, k.burst)
		k.buckets[key] = l
	}
	k.lastSeen[key] = time.Now()
	return l
}

func (k *keyedLimiter) gcLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-k.window * 2)
		k.mu.Lock()
		for key, seen := range k.lastSeen {
			if seen.Before(cutoff) {
				delete(k.buckets, key)
				delete(k.lastSeen, key)
			}
		}
		k.mu.Unlock()
	}
}

// resetSeconds reports how long, in whole seconds, until limiter refills
// from its current token count back to a full bucket.
func (k *keyedLimiter) resetSeconds(limiter *rate.Limiter) int {
	interval := k.window / time.Duration(k.max)
	deficit := k.max - int(limiter.Tokens())
	if deficit < 0 {
		deficit = 0
	}
	return int(time.Duration(deficit) * interval / time.Second)
}

// middleware returns a gin.HandlerFunc that rejects requests exceeding the
// bucket's rate with 429 and RateLimit-* response headers.
func (k *keyedLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := k.limiterFor(c.ClientIP())

		c.Header("RateLimit-Limit", strconv.Itoa(k.max))
		if !limiter.Allow() {
			c.Header("RateLimit-Remaining", "0")
			c.Header("RateLimit-Reset", strconv.Itoa(k.resetSeconds(limiter)))
			c.Header("Retry-After", strconv.Itoa(int(k.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"message": "rate limit exceeded"},
			})
			return
		}
		c.Header("RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		c.Header("RateLimit-Reset", strconv.Itoa(k.resetSeconds(limiter)))
		c.Next()
	}
}

var (
	analyzeLimiter     = newKeyedLimiter(15*time.Minute, config.AnalyzeRateLimitMax())
	downloadLimiter    = newKeyedLimiter(time.Hour, config.DownloadRateLimitMax())
	convertLimiter     = newKeyedLimiter(time.Hour, config.ConvertRateLimitMax())
	queueStatusLimiter = newKeyedLimiter(time.Minute, config.QueueStatusRateLimitMax())
	globalLimiter      = newKeyedLimiter(15*time.Minute, config.RateLimitMax())
)

// AnalyzeRateLimit applies the analyze-endpoint bucket (default 30/15min).
func AnalyzeRateLimit() gin.HandlerFunc { return analyzeLimiter.middleware() }

// DownloadRateLimit applies the download-endpoint bucket (default 10/h).
func DownloadRateLimit() gin.HandlerFunc { return downloadLimiter.middleware() }

// ConvertRateLimit applies the convert-endpoint bucket (default 5/h).
func ConvertRateLimit() gin.HandlerFunc { return convertLimiter.middleware() }

// QueueStatusRateLimit applies the queue-status bucket (default 300/min).
func QueueStatusRateLimit() gin.HandlerFunc { return queueStatusLimiter.middleware() }

// exemptPrefixes are paths the global limiter never applies to: the
// progress push stream, the queue endpoints (which have their own bucket),
// and health checks.
var exemptPrefixes = []string{"/progress/", "/queue", "/health"}

// GlobalRateLimit applies the catch-all bucket (default 100/15min), skipping
// /progress/*, /queue/*, and health checks.
func GlobalRateLimit() gin.HandlerFunc {
	inner := globalLimiter.middleware()
	return func(c *gin.Context) {
		for _, prefix := range exemptPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		inner(c)
	}
}

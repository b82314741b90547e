package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/ArionMiles/pocketledger/pkg/session"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	ownerKey        = "owner_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(requestIDKey),
			"client_ip", c.ClientIP(),
		}
		if owner, ok := c.Get(ownerKey); ok {
			attrs = append(attrs, "owner_id", owner)
		}
		logger.Log(c.Request.Context(), level, "http request", attrs...)
	}
}

func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic serving request",
			"panic", recovered,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
	})
}

// authenticate resolves the bearer token to a user id and stores it in the
// request context.
func authenticate(verifier *session.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "authorization header is required"})
			return
		}
		owner, err := verifier.Verify(header)
		if err != nil {
			msg := "invalid session token"
			if errors.Is(err, session.ErrInvalidToken) {
				msg = "session is invalid or expired, please sign in again"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: msg})
			return
		}
		c.Set(ownerKey, owner)
		c.Request = c.Request.WithContext(session.WithOwner(c.Request.Context(), owner))
		c.Next()
	}
}

// bucketIdleTTL is how long a client's bucket survives without requests.
const bucketIdleTTL = 10 * time.Minute

// limiter hands out one token bucket per client address. Every request
// extends its bucket's lifetime, so only idle buckets expire.
type limiter struct {
	rps     rate.Limit
	burst   int
	buckets *cache.Cache
}

func newLimiter(rps float64, burst int) *limiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &limiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: cache.New(bucketIdleTTL, 2*bucketIdleTTL),
	}
}

func (l *limiter) allow(key string) bool {
	if v, ok := l.buckets.Get(key); ok {
		lim := v.(*rate.Limiter)
		l.buckets.Set(key, lim, cache.DefaultExpiration)
		return lim.Allow()
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	// Another request may have created the bucket first.
	if err := l.buckets.Add(key, lim, cache.DefaultExpiration); err != nil {
		if v, ok := l.buckets.Get(key); ok {
			return v.(*rate.Limiter).Allow()
		}
	}
	return lim.Allow()
}

func (l *limiter) middleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			logger.Warn("rate limit exceeded",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: http.StatusText(http.StatusTooManyRequests)})
			return
		}
		c.Next()
	}
}

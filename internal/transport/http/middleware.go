package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/wallet-ledger/internal/auth"
	"github.com/richardliu001/wallet-ledger/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	apiKeyHeader = "x-api-key"
	principalKey = "principal"
)

// LoggingMiddleware prints one line per request.
func LoggingMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

// MetricsMiddleware records request counts and latency per route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RateLimitMiddleware simple token bucket per IP.
func RateLimitMiddleware(rps, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*rate.Limiter)
	newLimiter := func() *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), burst) }
	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}
		mu.Lock()
		lim, ok := buckets[ip]
		if !ok {
			lim = newLimiter()
			buckets[ip] = lim
		}
		mu.Unlock()
		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Status: "error", Code: "rate_limited", Message: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// AuthMiddleware resolves the request credential to a Principal. It does not
// check permissions; every engine authorizes its own operation.
func AuthMiddleware(authn auth.Authenticator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := authn.Authenticate(c.Request.Context(), credentialFrom(c.Request))
		if err != nil {
			writeError(c, log, err)
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func credentialFrom(r *http.Request) auth.Credential {
	cred := auth.Credential{APIKey: strings.TrimSpace(r.Header.Get(apiKeyHeader))}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		cred.BearerToken = strings.TrimSpace(h[7:])
	}
	return cred
}

func principalFrom(c *gin.Context) auth.Principal {
	p, _ := c.Get(principalKey)
	principal, _ := p.(auth.Principal)
	return principal
}

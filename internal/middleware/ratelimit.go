package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seenlim/docchat/internal/pkg/errcode"
	"github.com/seenlim/docchat/internal/pkg/response"
)

type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// RateLimit bounds requests per client IP with a token bucket.
// ratePerMin <= 0 disables the limit.
func RateLimit(ratePerMin int) gin.HandlerFunc {
	if ratePerMin <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	l := &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(ratePerMin) / 60.0),
		burst:    ratePerMin,
	}
	return l.handle
}

func (l *ipLimiter) handle(c *gin.Context) {
	ip := c.ClientIP()
	l.mu.Lock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	l.mu.Unlock()
	if !limiter.Allow() {
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("ip", ip),
			zap.String("path", c.Request.URL.Path))
		response.Error(c, errcode.ErrTooMany, "too many requests")
		c.Abort()
		return
	}
	c.Next()
}

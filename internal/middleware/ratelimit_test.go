package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handle := RateLimit(2)

	run := func() *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/api/v1/documents/upload", nil)
		c.Request.RemoteAddr = "10.0.0.1:5000"
		handle(c)
		return c
	}

	require.False(t, run().IsAborted())
	require.False(t, run().IsAborted())
	require.True(t, run().IsAborted())
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handle := RateLimit(0)
	for i := 0; i < 10; i++ {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/api/v1/documents/upload", nil)
		handle(c)
		require.False(t, c.IsAborted())
	}
}

func TestRateLimitPerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handle := RateLimit(1)

	run := func(addr string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/api/v1/documents/upload", nil)
		c.Request.RemoteAddr = addr
		handle(c)
		return c
	}

	require.False(t, run("10.0.0.1:5000").IsAborted())
	require.True(t, run("10.0.0.1:5001").IsAborted())
	// A different client has its own bucket.
	require.False(t, run("10.0.0.2:5000").IsAborted())
}

package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRateLimitedRouter(maxAttempts int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(LoginRateLimit(maxAttempts, window))
	router.POST("/auth/login", func(c *gin.Context) {
		c.String(200, "ok")
	})
	return router
}

func attemptLogin(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("X-Real-IP", ip)
	req.RemoteAddr = ip + ":40022"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoginRateLimit_BlocksOverLimit(t *testing.T) {
	router := newRateLimitedRouter(3, 500*time.Millisecond)

	// 窗口内第 4 次起被拒
	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, attemptLogin(router, "10.3.7.21").Code, "第 %d 次", i+1)
	}
	blocked := attemptLogin(router, "10.3.7.21")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Contains(t, blocked.Body.String(), "频繁")
}

func TestLoginRateLimit_PerIPCounters(t *testing.T) {
	router := newRateLimitedRouter(1, 500*time.Millisecond)

	// 一个 IP 被限不影响其它 IP
	assert.Equal(t, 200, attemptLogin(router, "10.3.7.21").Code)
	assert.Equal(t, http.StatusTooManyRequests, attemptLogin(router, "10.3.7.21").Code)
	for i := 0; i < 4; i++ {
		ip := fmt.Sprintf("172.20.0.%d", i+10)
		assert.Equal(t, 200, attemptLogin(router, ip).Code)
	}
}

func TestLoginRateLimit_WindowSlides(t *testing.T) {
	router := newRateLimitedRouter(2, 80*time.Millisecond)

	assert.Equal(t, 200, attemptLogin(router, "10.9.0.5").Code)
	assert.Equal(t, 200, attemptLogin(router, "10.9.0.5").Code)
	assert.Equal(t, http.StatusTooManyRequests, attemptLogin(router, "10.9.0.5").Code)

	// 旧记录滑出窗口后恢复放行
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 200, attemptLogin(router, "10.9.0.5").Code)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedEngine(cfg RateLimiterConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(NewRateLimiter(cfg).Middleware())
	engine.GET("/api/emergencies", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func hit(engine *gin.Engine, path string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:12345"
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w.Code
}

func TestPerRouteRateOverride(t *testing.T) {
	engine := newLimitedEngine(RateLimiterConfig{
		Rate: "100-M",
		PerRouteRates: map[string]string{
			"/api/emergencies": "2-M",
		},
	})

	require.Equal(t, http.StatusOK, hit(engine, "/api/emergencies"))
	require.Equal(t, http.StatusOK, hit(engine, "/api/emergencies"))
	assert.Equal(t, http.StatusTooManyRequests, hit(engine, "/api/emergencies"))
}

func TestSkipPathsBypassLimiter(t *testing.T) {
	engine := newLimitedEngine(RateLimiterConfig{
		Rate:      "1-M",
		SkipPaths: []string{"/api/health"},
	})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(engine, "/api/health"))
	}
}

func TestBadRateFallsBack(t *testing.T) {
	engine := newLimitedEngine(RateLimiterConfig{Rate: "not-a-rate"})
	// 配置写错时回落到默认速率，请求不会被全拒
	assert.Equal(t, http.StatusOK, hit(engine, "/api/emergencies"))
}

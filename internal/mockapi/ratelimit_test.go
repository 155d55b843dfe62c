package mockapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := newRateLimiter(1, 2)
	defer rl.stop()

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(rl.middleware())
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	status := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		engine.ServeHTTP(w, req)
		return w.Code
	}

	// The burst allows two immediate requests; the third is rejected.
	for i := 0; i < 2; i++ {
		if got := status(); got != http.StatusOK {
			t.Fatalf("Request %d status = %d, want 200", i+1, got)
		}
	}
	if got := status(); got != http.StatusTooManyRequests {
		t.Errorf("Expected 429 beyond the burst, got %d", got)
	}
}

func TestRateLimiter_StopIdempotent(t *testing.T) {
	rl := newRateLimiter(10, 10)
	rl.stop()
	rl.stop()
}

func TestServer_CloseStopsLimiter(t *testing.T) {
	s, err := New(Config{JWTSecret: "test-secret", UploadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Close()
	s.Close()

	select {
	case <-s.limiter.done:
	default:
		t.Error("Close should stop the limiter's eviction loop")
	}
}

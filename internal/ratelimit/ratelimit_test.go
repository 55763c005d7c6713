package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLimiter_BurstThenReject(t *testing.T) {
	l := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("client-a") {
			t.Fatalf("Expected request %d within burst allowed", i+1)
		}
	}
	if l.Allow("client-a") {
		t.Error("Expected request beyond burst rejected")
	}

	// Other clients have their own bucket.
	if !l.Allow("client-b") {
		t.Error("Expected a fresh client allowed")
	}
}

func TestLimiter_Refills(t *testing.T) {
	l := New(Config{
		RequestsPerMinute: 6000, // 100/sec so the test stays fast
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer l.Stop()

	if !l.Allow("client-a") {
		t.Fatal("Expected first request allowed")
	}
	if l.Allow("client-a") {
		t.Fatal("Expected second immediate request rejected")
	}

	time.Sleep(50 * time.Millisecond)
	if !l.Allow("client-a") {
		t.Error("Expected request allowed after refill")
	}
}

func TestMiddleware_Returns429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer l.Stop()

	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do(); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", code)
	}
}

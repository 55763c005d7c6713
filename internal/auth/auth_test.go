package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

const testAddr = "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"

func TestManager_CreateAndValidate(t *testing.T) {
	m := NewManager(NewMemoryStore())
	ctx := context.Background()

	raw, err := m.CreateKey(ctx, testAddr)
	if err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}
	if !strings.HasPrefix(raw, "sk_") {
		t.Errorf("Expected sk_ prefix, got %s", raw)
	}

	key, err := m.ValidateKey(ctx, raw)
	if err != nil {
		t.Fatalf("ValidateKey failed: %v", err)
	}
	if key.Address != strings.ToLower(testAddr) {
		t.Errorf("Expected lowercased address, got %s", key.Address)
	}

	// Bearer prefix is accepted.
	key, err = m.ValidateKey(ctx, "Bearer "+raw)
	if err != nil {
		t.Fatalf("ValidateKey with Bearer failed: %v", err)
	}
	if key.LastUsed == nil {
		t.Error("Expected LastUsed recorded after validation")
	}
}

func TestManager_ValidateRejectsBadKeys(t *testing.T) {
	m := NewManager(NewMemoryStore())
	ctx := context.Background()

	for _, raw := range []string{"", "sk_unknown", "pk_something", "Bearer "} {
		if _, err := m.ValidateKey(ctx, raw); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateKey(%q): expected ErrInvalidKey, got %v", raw, err)
		}
	}
}

func TestMiddleware_ResolvesCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := NewManager(NewMemoryStore())
	raw, err := m.CreateKey(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": CallerAddress(c)})
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp struct {
		Caller string `json:"caller"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Caller != strings.ToLower(testAddr) {
		t.Errorf("Expected caller %s, got %s", strings.ToLower(testAddr), resp.Caller)
	}
}

func TestRequireAuth_RejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := NewManager(NewMemoryStore())
	r := gin.New()
	r.Use(Middleware(m))
	protected := r.Group("/", RequireAuth())
	protected.GET("/secret", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a key, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/secret", nil)
	req.Header.Set("X-API-Key", "sk_bogus")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with an unknown key, got %d", w.Code)
	}
}

package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status want 200 got %d", i, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("expected handler response body, got %s", w.Body.String())
		}
	}
}

func TestParseRateLimitResult(t *testing.T) {
	cases := []struct {
		name      string
		input     interface{}
		wantCount int64
		wantTTL   int64
		ok        bool
	}{
		{name: "int64 pair", input: []interface{}{int64(3), int64(42)}, wantCount: 3, wantTTL: 42, ok: true},
		{name: "int pair", input: []interface{}{2, 10}, wantCount: 2, wantTTL: 10, ok: true},
		{name: "short", input: []interface{}{int64(1)}, ok: false},
		{name: "not a list", input: "bad", ok: false},
		{name: "bad count", input: []interface{}{"x", int64(1)}, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			count, ttl, ok := parseRateLimitResult(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok want %v got %v", tc.ok, ok)
			}
			if ok && (count != tc.wantCount || ttl != tc.wantTTL) {
				t.Fatalf("want %d/%d got %d/%d", tc.wantCount, tc.wantTTL, count, ttl)
			}
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, getClientIP(c))
	})
	return r
}

func get(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestClientIP(t *testing.T) {
	r := newEngine()
	tests := []struct {
		headers map[string]string
		want    string
	}{
		{nil, "10.0.0.9"},
		{map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
		{map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1", "X-Real-IP": "203.0.113.7"}, "198.51.100.1"},
	}
	for _, tt := range tests {
		if got := get(r, tt.headers).Body.String(); got != tt.want {
			t.Fatalf("headers %v: ip = %q, want %q", tt.headers, got, tt.want)
		}
	}
}

func TestRateLimitPerClient(t *testing.T) {
	r := newEngine(RateLimitMiddleware(2))
	a := map[string]string{"X-Real-IP": "203.0.113.1"}
	for i := 0; i < 2; i++ {
		if w := get(r, a); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	if w := get(r, a); w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d", w.Code)
	}
	if w := get(r, map[string]string{"X-Real-IP": "203.0.113.2"}); w.Code != http.StatusOK {
		t.Fatalf("other client: status = %d", w.Code)
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := newEngine(RequestLogger(zap.NewNop()))
	if w := get(r, map[string]string{"X-Request-ID": "req-1"}); w.Header().Get("X-Request-ID") != "req-1" {
		t.Fatalf("request id = %q", w.Header().Get("X-Request-ID"))
	}
	if w := get(r, nil); w.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id not generated")
	}
}

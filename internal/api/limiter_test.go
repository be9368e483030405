package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hvacbook/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/book", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	assert.Equal(t, "203.0.113.7", clientIP(r))

	r.RemoteAddr = "203.0.113.7"
	assert.Equal(t, "203.0.113.7", clientIP(r))

	r.RemoteAddr = ""
	assert.Equal(t, "unknown", clientIP(r))
}

func TestRateLimiter_PerClient(t *testing.T) {
	l := newRateLimiter(config.HTTPRateLimitConfig{RPS: 0.001, Burst: 1})
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := l.Wrap(next)

	call := func(addr string) int {
		r := httptest.NewRequest(http.MethodPost, "/book", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("198.51.100.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, call("198.51.100.1:2000"))
	assert.Equal(t, http.StatusOK, call("198.51.100.2:1000"))
	assert.Same(t, l.getLimiter("198.51.100.1"), l.getLimiter("198.51.100.1"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := newRateLimiter(config.HTTPRateLimitConfig{})
	h := l.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/book", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

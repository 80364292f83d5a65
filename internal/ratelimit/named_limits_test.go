package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hushh-labs/consent-core/internal/ratelimit"
)

func TestDefaultKeyFuncPrefersUserHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(ratelimit.UserIDHeader, "u1")
	require.Equal(t, "user:u1", ratelimit.DefaultKeyFunc(r))
}

func TestDefaultKeyFuncFallsBackToIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.5:54321"
	require.Equal(t, "ip:203.0.113.5", ratelimit.DefaultKeyFunc(r))
}

func TestLimitersAllowWithinBudget(t *testing.T) {
	l := ratelimit.NewLimiters()
	for i := 0; i < 10; i++ {
		require.True(t, l.Allow(ratelimit.ClassConsentRequest, "user:u1"))
	}
	require.False(t, l.Allow(ratelimit.ClassConsentRequest, "user:u1"))
}

func TestLimitersIsolateKeys(t *testing.T) {
	l := ratelimit.NewLimiters()
	for i := 0; i < 10; i++ {
		require.True(t, l.Allow(ratelimit.ClassConsentRequest, "user:u1"))
	}
	require.True(t, l.Allow(ratelimit.ClassConsentRequest, "user:u2"))
}

func TestMiddlewareRejectsOverBudget(t *testing.T) {
	l := ratelimit.NewLimiters()
	handler := l.Middleware(ratelimit.ClassTokenValidation, ratelimit.DefaultKeyFunc)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	for i := 0; i < 60; i++ {
		req := httptest.NewRequest(http.MethodPost, "/validate", nil)
		req.RemoteAddr = "10.0.0.1:1111"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/validate", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

package ratelimit

import (
	"net/http"
	"strings"
)

// UserIDHeader is the header an authenticated gateway is expected to set
// once it has resolved the caller's identity. The core itself never
// authenticates requests; it only derives a rate-limit key from whatever
// the caller supplies, per spec §6's "exposed contract" note.
const UserIDHeader = "X-Hushh-User-Id"

// KeyFunc derives a rate-limit bucket key from an inbound request.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc implements the core's rate-limit key contract: "user:<id>"
// when an authenticated user id is present, otherwise the remote address
// derived via standard proxy header precedence (X-Forwarded-For, then
// X-Real-IP, then RemoteAddr).
func DefaultKeyFunc(r *http.Request) string {
	if uid := r.Header.Get(UserIDHeader); uid != "" {
		return "user:" + uid
	}
	return "ip:" + clientIP(r)
}

// UserKeyFunc always buckets by the given user id, for callers that already
// know it (the consent-action routes carry user_id in their JSON body; the
// router itself keys every class with DefaultKeyFunc).
func UserKeyFunc(userID string) KeyFunc {
	return func(*http.Request) string {
		return "user:" + userID
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

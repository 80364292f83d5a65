package ratelimit

import (
	"net/http"
	"time"
)

// Class names a named rate-limit bucket by route category, per spec §6.
type Class string

const (
	ClassConsentRequest  Class = "consent-request"
	ClassConsentAction   Class = "consent-action"
	ClassTokenValidation Class = "token-validation"
	ClassGlobalPerIP     Class = "global-per-ip"
)

// defaultLimits is the requests-per-minute table from spec §6.
var defaultLimits = map[Class]int{
	ClassConsentRequest:  10,
	ClassConsentAction:   20,
	ClassTokenValidation: 60,
	ClassGlobalPerIP:     100,
}

// Limiters bundles one ClientRateLimiter per named route class.
type Limiters struct {
	byClass map[Class]*ClientRateLimiter
}

// NewLimiters builds a Limiters with the spec's default per-minute limits.
// Callers that need a different table can construct ClientRateLimiters
// directly and assemble their own Limiters via NewLimitersWithTable.
func NewLimiters() *Limiters {
	return NewLimitersWithTable(defaultLimits)
}

func NewLimitersWithTable(table map[Class]int) *Limiters {
	l := &Limiters{byClass: make(map[Class]*ClientRateLimiter, len(table))}
	for class, limit := range table {
		l.byClass[class] = NewClientRateLimiter(time.Minute, limit)
	}
	return l
}

// Allow reports whether a request keyed by key is within the named class's
// budget. An unrecognized class is always allowed — classes are defined by
// this package, not by the caller.
func (l *Limiters) Allow(class Class, key string) bool {
	rl, ok := l.byClass[class]
	if !ok {
		return true
	}
	return rl.IsAllowed(key)
}

// Middleware returns net/http middleware enforcing a class's limit, keyed
// by keyFn, with standard X-RateLimit-* response headers on success and a
// 429 with Retry-After on rejection (mirrors HTTPRateLimitHandler).
func (l *Limiters) Middleware(class Class, keyFn KeyFunc) func(http.Handler) http.Handler {
	rl, ok := l.byClass[class]
	if !ok {
		return func(next http.Handler) http.Handler { return next }
	}
	if keyFn == nil {
		keyFn = DefaultKeyFunc
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if !rl.IsAllowed(key) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Package ratelimit throttles write endpoints per register.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/pos-engine/internal/common"
	"github.com/noah-isme/pos-engine/internal/obs"
)

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter *Limiter
	Key     func(*http.Request) string
	OnError func(error)
	Now     func() time.Time
}

// RegisterKey keys requests by register header, falling back to the client
// address, and scopes the key to the route.
func RegisterKey(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(obs.RegisterHeader))
	if id == "" {
		id = r.RemoteAddr
		if i := strings.LastIndex(id, ":"); i > 0 {
			id = id[:i]
		}
	}
	return r.Method + ":" + r.URL.Path + ":" + id
}

// Middleware implements the http.Handler middleware interface. Limiter
// failures let the request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		keyFn := h.Key
		if keyFn == nil {
			keyFn = RegisterKey
		}
		d, err := h.Limiter.Allow(r.Context(), keyFn(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.ResetAt.IsZero() {
			headers.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}

		if !d.Allowed {
			now := time.Now
			if h.Now != nil {
				now = h.Now
			}
			retryAfter := int(d.ResetAt.Sub(now()).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

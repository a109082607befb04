package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter keeps a token bucket per caller. Behind JWTMiddleware the
// caller is the token subject; otherwise it is the client IP.
type IPRateLimiter struct {
	callers map[string]*rate.Limiter
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
}

// NewIPRateLimiter creates a per-caller rate limiter. limit is events per
// second (e.g. rate.Every(time.Minute)); burst is max tokens per bucket.
func NewIPRateLimiter(limit rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		callers: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

func (l *IPRateLimiter) getLimiter(caller string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.callers[caller]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.callers[caller] = lim
	}
	return lim
}

// callerKey prefers the authenticated subject, then the forwarded client IP.
func callerKey(r *http.Request) string {
	if sub := Subject(r.Context()); sub != "" {
		return "sub:" + sub
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return "ip:" + strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ip:" + strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return "ip:" + host
	}
	return "ip:" + r.RemoteAddr
}

// Middleware answers 429 with a Retry-After estimate when the caller is over its rate.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := l.getLimiter(callerKey(r))
		res := lim.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprint(int(math.Ceil(delay.Seconds()))))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TriggerRateLimiter returns the limiter for manual sign-in triggers: a run
// takes minutes, so allow a burst of 2 and then one every 5 minutes.
func TriggerRateLimiter() *IPRateLimiter {
	return NewIPRateLimiter(rate.Every(5*time.Minute), 2)
}

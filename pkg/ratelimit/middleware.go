package ratelimit

import (
	"math"
	"net/http"
	"strconv"
)

// KeyFunc extracts the bucket key from a request. An empty key skips
// limiting.
type KeyFunc func(*http.Request) string

// Middleware limits requests per key. onLimit writes the rejection; when nil
// a plain 429 is sent. Storage errors let the request through.
func Middleware(l Limiter, keyFunc KeyFunc, onLimit func(http.ResponseWriter, *http.Request, *Result)) func(http.Handler) http.Handler {
	if keyFunc == nil {
		panic("ratelimit.Middleware: keyFunc is required")
	}
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, _ *http.Request, _ *Result) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), key)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				secs := max(int(math.Ceil(res.RetryAfter.Seconds())), 1)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				onLimit(w, r, res)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

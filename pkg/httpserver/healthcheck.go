package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

// Check is a named readiness check.
type Check struct {
	Name string
	Func func(context.Context) error
}

// HealthReport is the body written by HealthHandler.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthHandler runs all checks concurrently, each bounded by timeout, and
// responds 200 when every check passes or 503 otherwise. With no checks it
// acts as a liveness check.
func HealthHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		report := HealthReport{Status: StatusOK}
		if len(checks) > 0 {
			report.Checks = make(map[string]string, len(checks))
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			var (
				mu sync.Mutex
				wg sync.WaitGroup
			)
			for _, c := range checks {
				wg.Add(1)
				go func() {
					defer wg.Done()
					state := StatusOK
					if err := c.Func(ctx); err != nil {
						state = "error: " + err.Error()
						log.LogAttrs(ctx, slog.LevelWarn, "readiness check failed",
							logger.Component("httpserver"),
							slog.String("check", c.Name),
							logger.Error(err))
					}
					mu.Lock()
					report.Checks[c.Name] = state
					if state != StatusOK {
						report.Status = StatusDegraded
					}
					mu.Unlock()
				}()
			}
			wg.Wait()
		}

		code := http.StatusOK
		if report.Status != StatusOK {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}

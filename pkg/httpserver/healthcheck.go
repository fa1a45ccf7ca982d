package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// HealthHandler reports {"status":"ok"} when every check passes and 503 with the
// failing check names otherwise. Checks run with a 3s budget.
func HealthHandler(log *slog.Logger, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{}
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", slog.String("check", c.Name), slog.Any("error", err))
				result[c.Name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			result[c.Name] = "up"
		}

		body := map[string]any{"status": "ok", "checks": result}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

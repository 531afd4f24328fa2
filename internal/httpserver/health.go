package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type ReadyzCheck func(ctx context.Context) error

func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func Readyz(timeout time.Duration, checks ...ReadyzCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		for _, check := range checks {
			if err := check(ctx); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Identity serves the static bot info used for liveness checks.
func Identity(botName, version, providerName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":   "ok",
			"bot":      botName,
			"version":  version,
			"provider": providerName,
		})
	}
}

// Index is the landing page listing the service's endpoints.
func Index(botName, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":    botName,
			"version": version,
			"github":  "https://github.com/SoCloseSociety",
			"endpoints": map[string]string{
				"health":         "/health",
				"webhook_meta":   "/webhook",
				"webhook_twilio": "/twilio-webhook",
				"twilio_status":  "/twilio-status",
				"metrics":        "/metrics",
			},
		})
	}
}

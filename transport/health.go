package transport

import (
	"encoding/json"
	"net/http"
)

// HealthPath is the liveness endpoint served next to the upgrade path.
const HealthPath = "/health"

// HealthStatus is the body of a health response.
type HealthStatus struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	Connections int    `json:"connections"`
}

// HealthSource reports live transport state.
type HealthSource interface {
	Sessions() int
	Draining() bool
}

// HealthHandler answers GET with 200 and status "healthy", or 503 and
// "draining" once shutdown has begun.
func HealthHandler(version string, src HealthSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := HealthStatus{Status: "healthy", Version: version, Connections: src.Sessions()}
		code := http.StatusOK
		if src.Draining() {
			status.Status = "draining"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}

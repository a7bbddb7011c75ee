package health

import (
	"encoding/json"
	"net/http"
)

// Handler exposes the registry over HTTP. Healthy and degraded results
// return 200 so load balancers keep routing to fallback-mode instances;
// unhealthy returns 503.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		result := r.Check(req.Context())

		status := http.StatusOK
		if result.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(result)
	})
}

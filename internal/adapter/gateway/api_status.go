package gateway

import (
	"net/http"
	"sync/atomic"
	"time"

	"canvas-copilot/internal/domain"
)

// Metrics tracks counters surfaced by GET /api/v1/status.
type Metrics struct {
	CommandsTotal  atomic.Int64
	CommandErrors  atomic.Int64
	ToolCallsTotal atomic.Int64
	AuthFailures   atomic.Int64
}

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	Service  ServiceStatus  `json:"service"`
	Commands CommandStatus  `json:"commands"`
	Tools    ToolStatus     `json:"tools"`
	Provider ProviderStatus `json:"provider"`
}

// ServiceStatus holds service overview info.
type ServiceStatus struct {
	Name          string `json:"name"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// CommandStatus holds command throughput counters.
type CommandStatus struct {
	Total        int64 `json:"total"`
	Errors       int64 `json:"errors"`
	AuthFailures int64 `json:"auth_failures"`
}

// ToolStatus holds tool usage stats.
type ToolStatus struct {
	Registered int   `json:"registered"`
	CallsTotal int64 `json:"calls_total"`
}

// ProviderStatus identifies the active model provider.
type ProviderStatus struct {
	Name string `json:"name"`
}

// statusHandler returns an HTTP handler for GET /api/v1/status.
func statusHandler(startTime time.Time, metrics *Metrics, tools domain.ToolExecutor, provider domain.LLMProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		writeJSON(w, http.StatusOK, StatusResponse{
			Service: ServiceStatus{
				Name:          "canvas-copilot",
				UptimeSeconds: int64(time.Since(startTime).Seconds()),
			},
			Commands: CommandStatus{
				Total:        metrics.CommandsTotal.Load(),
				Errors:       metrics.CommandErrors.Load(),
				AuthFailures: metrics.AuthFailures.Load(),
			},
			Tools: ToolStatus{
				Registered: len(tools.Schemas()),
				CallsTotal: metrics.ToolCallsTotal.Load(),
			},
			Provider: ProviderStatus{Name: provider.Name()},
		})
	}
}

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"canvas-copilot/internal/domain"
	"canvas-copilot/internal/usecase"
)

const maxRequestBody = 1 << 20 // 1 MiB

// commandRequest is the JSON body of POST /api/v1/command.
type commandRequest struct {
	Messages      []domain.Message       `json:"messages"`
	CanvasID      string                 `json:"canvasId,omitempty"`
	CanvasContext *usecase.CanvasContext `json:"canvasContext,omitempty"`
}

// commandResponse is the JSON body returned on success.
type commandResponse struct {
	Message        string `json:"message"`
	ToolsExecuted  int    `json:"toolsExecuted"`
	ResponseTimeMs int64  `json:"responseTime"`
	TokenUsage     int    `json:"tokenUsage"`
	OperationID    string `json:"operationId,omitempty"`
}

// errorResponse is the JSON body returned on failure. Details is omitted
// in production so internal error text never reaches clients.
type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// CommandHandler serves the natural-language command endpoint.
type CommandHandler struct {
	orchestrator *usecase.Orchestrator
	auth         Authenticator
	metrics      *Metrics
	logger       *slog.Logger
	origins      []string
	production   bool
	now          func() time.Time
}

// NewCommandHandler wires the command endpoint.
func NewCommandHandler(orch *usecase.Orchestrator, auth Authenticator, metrics *Metrics, origins []string, production bool, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{
		orchestrator: orch,
		auth:         auth,
		metrics:      metrics,
		logger:       logger,
		origins:      origins,
		production:   production,
		now:          time.Now,
	}
}

func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w, r)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	userID, err := h.authenticate(r)
	if err != nil {
		h.metrics.AuthFailures.Add(1)
		h.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req commandRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Messages) == 0 {
		h.writeError(w, http.StatusBadRequest, "messages must not be empty", nil)
		return
	}

	start := h.now()
	ctx := domain.ContextWithUserID(r.Context(), userID)
	result, err := h.orchestrator.Execute(ctx, usecase.CommandInput{
		Messages:      req.Messages,
		CanvasID:      req.CanvasID,
		CanvasContext: req.CanvasContext,
	})
	elapsed := h.now().Sub(start)

	h.metrics.CommandsTotal.Add(1)
	if err != nil {
		h.metrics.CommandErrors.Add(1)
		h.logger.Error("command failed",
			"user", userID,
			"code", string(domain.ErrorCodeOf(err)),
			"error", err,
		)
		switch {
		case errors.Is(err, domain.ErrRateLimit):
			h.writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again shortly", err)
		case errors.Is(err, domain.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, "invalid request", err)
		case errors.Is(err, domain.ErrAuthInvalid):
			h.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		default:
			h.writeError(w, http.StatusInternalServerError, "command processing failed", err)
		}
		return
	}

	h.metrics.ToolCallsTotal.Add(int64(result.ToolsExecuted))
	h.logger.Info("command served",
		"user", userID,
		"tools", result.ToolsExecuted,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	writeJSON(w, http.StatusOK, commandResponse{
		Message:        result.Message,
		ToolsExecuted:  result.ToolsExecuted,
		ResponseTimeMs: elapsed.Milliseconds(),
		TokenUsage:     result.TokenUsage,
		OperationID:    result.OperationID,
	})
}

// authenticate extracts and verifies the Bearer token.
func (h *CommandHandler) authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", domain.ErrAuthInvalid
	}
	return h.auth.Authenticate(strings.TrimPrefix(header, prefix))
}

// setCORS mirrors the request origin when it is on the allow list. A "*"
// entry allows any origin.
func (h *CommandHandler) setCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := ""
	for _, o := range h.origins {
		if o == "*" {
			allowed = "*"
			break
		}
		if o == origin {
			allowed = origin
			break
		}
	}
	if allowed == "" {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", allowed)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Max-Age", "600")
}

func (h *CommandHandler) writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Code = string(domain.ErrorCodeOf(err))
		if !h.production {
			resp.Details = err.Error()
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

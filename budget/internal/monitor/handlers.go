package monitor

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crnapay/crnapay-stack/budget/internal/policy"
	"github.com/crnapay/crnapay-stack/common/httputil"
	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/common/middleware"
)

type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
}

// Router serves Pub/Sub push deliveries of budget notifications along with
// health, status and metrics endpoints.
func (m *Monitor) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/budget/push", m.handlePush)
	mux.HandleFunc("GET /api/v1/budget/status", m.handleStatus)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return middleware.RequestID(mux)
}

// handlePush acks malformed deliveries with 400 and asks for redelivery with
// 503 when the guard is unreachable.
func (m *Monitor) handlePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, httputil.MaxBodyBytes+1))
	if err != nil || len(body) > httputil.MaxBodyBytes {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Message.Data == "" {
		httputil.WriteError(w, http.StatusBadRequest, "invalid push envelope")
		return
	}
	data, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "message data must be base64 encoded")
		return
	}
	obj, err := httputil.DecodeObject(data)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "message data must be a JSON object")
		return
	}

	d, err := m.Handle(r.Context(), policy.ParseNotification(obj))
	if err != nil {
		m.logger.ErrorContext(r.Context(), "failed to apply budget policy",
			"message_id", env.Message.MessageID,
			logging.Error(err))
		httputil.WriteError(w, http.StatusServiceUnavailable, "failed to apply budget policy")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"level":   d.Level,
		"paused":  d.Pause,
		"summary": d.Summary,
	})
}

func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	states, err := m.Status(r.Context())
	if err != nil {
		m.logger.WarnContext(r.Context(), "budget status failed", logging.Error(err))
		httputil.WriteError(w, http.StatusServiceUnavailable, "budget guard unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, states)
}

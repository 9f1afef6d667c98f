// Package handlers serves the public submission API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/httputil"
	"github.com/crnapay/crnapay-stack/common/intakestats"
	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/core/pkg/coerce"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
	"github.com/crnapay/crnapay-stack/ingest/internal/metrics"
	"github.com/crnapay/crnapay-stack/ingest/internal/ratelimit"
	"github.com/crnapay/crnapay-stack/ingest/internal/service"
)

// SubmittedMessage is returned with every accepted submission.
const SubmittedMessage = "Compensation data submitted successfully"

// SubmitResponse is the body of a 202 answer.
type SubmitResponse struct {
	Message      string `json:"message"`
	SubmissionID string `json:"submission_id"`
}

// ReadyFunc reports whether downstream dependencies are reachable.
type ReadyFunc func() bool

type SubmissionHandler struct {
	service *service.IntakeService
	limiter ratelimit.RateLimiter
	stats   *intakestats.Collector
	ready   ReadyFunc
	logger  *logging.Logger
}

// NewSubmissionHandler wires the handler. limiter, stats and ready may be nil.
func NewSubmissionHandler(svc *service.IntakeService, limiter ratelimit.RateLimiter, stats *intakestats.Collector, ready ReadyFunc, logger *logging.Logger) *SubmissionHandler {
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SubmissionHandler{
		service: svc,
		limiter: limiter,
		stats:   stats,
		ready:   ready,
		logger:  logger,
	}
}

// Submit handles POST /submit-crna-compensation and POST /api/v1/submissions.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Path
	clientIP := httputil.GetClientIP(r)

	allowed, err := h.limiter.Allow(r.Context(), clientIP)
	if err != nil {
		h.logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request", logging.Error(err))
		allowed = true
	}
	if !allowed {
		metrics.SubmissionsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		w.Header().Set("Retry-After", "60")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many submissions, try again later")
		return
	}

	obj, err := httputil.DecodeJSONObject(r)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(endpoint, "malformed").Inc()
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "No valid JSON object provided")
		return
	}
	size := int(r.ContentLength)
	if size > 0 {
		metrics.SubmissionBytesTotal.Add(float64(size))
	}

	raw := submission.Raw(obj)
	receipt, err := h.service.Submit(r.Context(), raw, size)

	var verr *service.ValidationError
	switch {
	case err == nil:
		metrics.SubmissionsTotal.WithLabelValues(endpoint, "accepted").Inc()
		h.record(raw, true, clientIP)
		httputil.WriteJSON(w, http.StatusAccepted, SubmitResponse{
			Message:      SubmittedMessage,
			SubmissionID: receipt.SubmissionID,
		})
	case errors.As(err, &verr):
		metrics.SubmissionsTotal.WithLabelValues(endpoint, "rejected").Inc()
		h.record(raw, false, clientIP)
		httputil.WriteErrors(w, http.StatusBadRequest, "Submission failed validation", verr.Errors)
	case errors.Is(err, budgetguard.ErrPaused):
		metrics.SubmissionsTotal.WithLabelValues(endpoint, "paused").Inc()
		w.Header().Set("Retry-After", "3600")
		httputil.WriteError(w, http.StatusServiceUnavailable, "Submissions are temporarily paused")
	default:
		metrics.SubmissionsTotal.WithLabelValues(endpoint, "publish_failed").Inc()
		h.logger.ErrorContext(r.Context(), "failed to queue submission", logging.Error(err))
		httputil.WriteError(w, http.StatusServiceUnavailable, "Failed to queue submission")
	}
}

func (h *SubmissionHandler) record(raw submission.Raw, accepted bool, clientIP string) {
	if h.stats == nil {
		return
	}
	h.stats.Record(coerce.Text(raw.Get(submission.FieldDataSource)), accepted, clientIP)
}

// Health handles GET /healthz.
func (h *SubmissionHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"stats":  h.service.GetStats(),
	})
}

// Ready handles GET /readyz.
func (h *SubmissionHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready() {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

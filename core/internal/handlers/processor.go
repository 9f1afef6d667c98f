// Package handlers exposes the core processor over HTTP.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/httputil"
	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/core/internal/pipeline"
	"github.com/crnapay/crnapay-stack/core/internal/service"
)

// ProcessorHandler manages the processing HTTP endpoints.
type ProcessorHandler struct {
	processor *service.Processor
	logger    *logging.Logger
}

// NewProcessorHandler constructs a new handler.
func NewProcessorHandler(p *service.Processor, logger *logging.Logger) *ProcessorHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ProcessorHandler{processor: p, logger: logger}
}

// Process handles POST /api/v1/process. The body is one submission object.
// Stored submissions answer 201 and rejections 422, both with the outcome.
func (h *ProcessorHandler) Process(w http.ResponseWriter, r *http.Request) {
	obj, err := httputil.DecodeJSONObject(r)
	if err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.processor.Process(r.Context(), service.SourceHTTP, obj)
	if err != nil {
		h.writeProcessError(w, r, err)
		return
	}

	status := http.StatusCreated
	if out.Status == pipeline.StatusRejected {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, out)
}

// Push handles POST /api/v1/pubsub/push. Any 2xx acknowledges the delivery,
// so rejections answer 200 and only retryable failures answer 5xx.
func (h *ProcessorHandler) Push(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, httputil.MaxBodyBytes+1))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > httputil.MaxBodyBytes {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, httputil.ErrBodyTooLarge.Error())
		return
	}

	raw, env, err := pipeline.DecodePush(body)
	if err != nil {
		attrs := []any{logging.Error(err)}
		if env != nil {
			attrs = append(attrs, "message_id", env.Message.MessageID)
		}
		h.logger.WarnContext(r.Context(), "malformed push delivery", attrs...)
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.processor.Process(r.Context(), service.SourcePubSub, raw)
	if err != nil {
		if attempt := env.Attempt(); attempt != nil {
			h.logger.WarnContext(r.Context(), "push delivery will be retried",
				"message_id", env.Message.MessageID,
				"delivery_attempt", *attempt)
		}
		h.writeProcessError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// Health handles GET /healthz.
func (h *ProcessorHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.processor.Health())
}

func (h *ProcessorHandler) writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, budgetguard.ErrPaused) {
		w.Header().Set("Retry-After", "300")
		httputil.WriteError(w, http.StatusServiceUnavailable, "processing is paused")
		return
	}
	h.logger.ErrorContext(r.Context(), "submission processing failed", logging.Error(err))
	httputil.WriteError(w, http.StatusBadGateway, "failed to store submission")
}

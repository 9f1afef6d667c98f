package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/common/messaging"
	"github.com/crnapay/crnapay-stack/common/middleware"
	"github.com/crnapay/crnapay-stack/ingest/internal/handlers"
	"github.com/crnapay/crnapay-stack/ingest/internal/service"
)

type nopPublisher struct{}

func (nopPublisher) PublishMsg(context.Context, *messaging.Message) error { return nil }

func newTestRouter() http.Handler {
	svc := service.NewIntakeService(nopPublisher{}, "user_submission", logging.Discard())
	h := handlers.NewSubmissionHandler(svc, nil, nil, nil, logging.Discard())
	return NewRouter(h, middleware.DefaultCORSConfig())
}

func TestRouter_Routes(t *testing.T) {
	body := `{"years_experience": 2, "location_zip_code": "60601", "employment_type": "Other", "work_setting": "ASC"}`

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/submit-crna-compensation", body, http.StatusAccepted},
		{http.MethodPost, "/api/v1/submissions", body, http.StatusAccepted},
		{http.MethodGet, "/submit-crna-compensation", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	router := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/submit-crna-compensation", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

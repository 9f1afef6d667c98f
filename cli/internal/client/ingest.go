package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrRejected is returned when ingest refuses a submission as invalid.
var ErrRejected = errors.New("submission rejected")

// SubmitPath is the JSON submission endpoint on the ingest service.
const SubmitPath = "/api/v1/submissions"

// Receipt is the ingest response for a queued submission.
type Receipt struct {
	Message      string `json:"message" yaml:"message"`
	SubmissionID string `json:"submission_id" yaml:"submission_id"`
}

// APIError is a non-2xx ingest response.
type APIError struct {
	StatusCode int           `json:"status_code" yaml:"status_code"`
	Message    string        `json:"error" yaml:"error"`
	Details    []string      `json:"details,omitempty" yaml:"details,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty" yaml:"retry_after,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ingest returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("ingest returned status %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets callers test a 400 with details against ErrRejected.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusBadRequest && len(e.Details) > 0 {
		return ErrRejected
	}
	return nil
}

type IngestClient struct {
	baseURL string
	client  *http.Client
}

func NewIngestClient(baseURL string) *IngestClient {
	return &IngestClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Submit posts one JSON submission object.
func (c *IngestClient) Submit(ctx context.Context, payload []byte) (*Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SubmitPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read ingest response: %w", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return nil, apiErr
	}

	var receipt Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, fmt.Errorf("decode ingest response: %w", err)
	}
	return &receipt, nil
}

// SubmitJSON marshals v and submits it.
func (c *IngestClient) SubmitJSON(ctx context.Context, v any) (*Receipt, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, payload)
}

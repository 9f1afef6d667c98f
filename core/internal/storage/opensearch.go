package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/crnapay/crnapay-stack/common/database"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

// OpenSearchConfig holds connection settings for OpenSearchWriter.
type OpenSearchConfig struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
}

// OpenSearchWriter indexes each row as a document. The table identifier is
// used as the index name.
type OpenSearchWriter struct {
	client *opensearch.Client
}

// NewOpenSearchWriter creates a writer and checks the cluster responds.
func NewOpenSearchWriter(cfg OpenSearchConfig) (*OpenSearchWriter, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify}, //nolint:gosec // opt-in for dev clusters
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &OpenSearchWriter{client: client}, nil
}

type opensearchErrorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// InsertRow indexes row into the index named by table. Document IDs are
// assigned by OpenSearch, so redelivered submissions produce new documents.
func (w *OpenSearchWriter) InsertRow(ctx context.Context, table string, row submission.Row) error {
	body, err := json.Marshal(row)
	if err != nil {
		return newInsertError(table, err.Error())
	}

	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	index := strings.ToLower(table)
	res, err := w.client.Index(index, bytes.NewReader(body), w.client.Index.WithContext(ctx))
	if err != nil {
		return newInsertError(table, err.Error())
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		var e opensearchErrorBody
		if json.Unmarshal(data, &e) == nil && e.Error.Reason != "" {
			return newInsertError(table, fmt.Sprintf("%s: %s", e.Error.Type, e.Error.Reason))
		}
		return newInsertError(table, fmt.Sprintf("opensearch returned %s", res.Status()))
	}
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	"github.com/crnapay/crnapay-stack/common/database"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

// BigQueryWriter streams rows into BigQuery with the insertAll API.
type BigQueryWriter struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewBigQueryWriter creates a writer for project. Table identifiers without a
// dataset resolve against dataset.
func NewBigQueryWriter(ctx context.Context, project, dataset string, opts ...option.ClientOption) (*BigQueryWriter, error) {
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}
	return &BigQueryWriter{client: client, project: project, dataset: dataset}, nil
}

// InsertRow streams one row. Rows carry no insert ID, so BigQuery performs no
// best-effort de-duplication.
func (w *BigQueryWriter) InsertRow(ctx context.Context, table string, row submission.Row) error {
	project, dataset, name, err := w.resolve(table)
	if err != nil {
		return newInsertError(table, err.Error())
	}

	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	inserter := w.client.DatasetInProject(project, dataset).Table(name).Inserter()
	if err := inserter.Put(ctx, rowSaver{row: row}); err != nil {
		var multi bigquery.PutMultiError
		if errors.As(err, &multi) {
			var msgs []string
			for _, rowErr := range multi {
				for _, e := range rowErr.Errors {
					msgs = append(msgs, e.Error())
				}
			}
			return newInsertError(table, msgs...)
		}
		return newInsertError(table, err.Error())
	}
	return nil
}

// Close releases the client.
func (w *BigQueryWriter) Close() error {
	return w.client.Close()
}

// resolve splits table into project, dataset and table name. Accepted forms
// are table, dataset.table and project.dataset.table.
func (w *BigQueryWriter) resolve(table string) (string, string, string, error) {
	parts := strings.Split(table, ".")
	switch len(parts) {
	case 1:
		if w.dataset == "" {
			return "", "", "", fmt.Errorf("table %q has no dataset and no default dataset is configured", table)
		}
		return w.project, w.dataset, parts[0], nil
	case 2:
		return w.project, parts[0], parts[1], nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	default:
		return "", "", "", fmt.Errorf("invalid table identifier %q", table)
	}
}

type rowSaver struct {
	row submission.Row
}

func (s rowSaver) Save() (map[string]bigquery.Value, string, error) {
	values := s.row.Values()
	out := make(map[string]bigquery.Value, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out, bigquery.NoDedupeID, nil
}

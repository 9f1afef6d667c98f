package pipeline_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/core/internal/pipeline"
	"github.com/crnapay/crnapay-stack/core/pkg/geocode"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

type insert struct {
	table string
	row   submission.Row
}

type fakeWriter struct {
	mu      sync.Mutex
	inserts []insert
	err     error
}

func (w *fakeWriter) InsertRow(_ context.Context, table string, row submission.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.inserts = append(w.inserts, insert{table: table, row: row})
	return nil
}

func testGeocoder() geocode.Geocoder {
	return geocode.NewTable(map[string]geocode.Place{
		"02134": {StateCode: "MA", PlaceName: "Allston", CountyName: "Suffolk"},
	})
}

const validJSON = `{
	"submission_id_server": "0192a6a4-7c1e-7c3a-9f7e-2d3c4b5a6f70",
	"submission_timestamp_server": "2025-05-20T14:03:11.123456Z",
	"years_experience": 7,
	"location_zip_code": "02134",
	"employment_type": "W2",
	"work_setting": "Hospital - Academic",
	"base_salary_annual": 150000,
	"sign_on_bonus": "10000",
	"favorite_color": "teal"
}`

func TestPipeline_ProcessMessage_Stored(t *testing.T) {
	writer := &fakeWriter{}
	p := pipeline.New(testGeocoder(), writer, "crna_compensation", logging.Discard())

	out, err := p.ProcessMessage(context.Background(), []byte(validJSON))
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusStored, out.Status)
	assert.Equal(t, "0192a6a4-7c1e-7c3a-9f7e-2d3c4b5a6f70", out.SubmissionID)
	assert.Empty(t, out.Errors)

	require.Len(t, writer.inserts, 1)
	assert.Equal(t, "crna_compensation", writer.inserts[0].table)

	values := writer.inserts[0].row.Values()
	assert.Len(t, values, len(submission.Columns))
	assert.Equal(t, "MA", values[submission.ColDerivedLocationState])
	assert.Equal(t, "Allston", values[submission.ColDerivedLocationCity])
	assert.Equal(t, "Northeast", values[submission.ColLocationRegion])
	assert.Equal(t, "6-10 yrs", values[submission.ColExperienceBucket])
	assert.InDelta(t, 160000.0, values[submission.ColTotalEstimatedAnnualCompensation], 1e-9)
	assert.NotContains(t, values, "favorite_color")
}

func TestPipeline_Process_Rejected(t *testing.T) {
	writer := &fakeWriter{}
	p := pipeline.New(testGeocoder(), writer, "crna_compensation", logging.Discard())

	out, err := p.Process(context.Background(), submission.Raw{
		"submission_id_server":        "sub-1",
		"submission_timestamp_server": "2025-05-20T14:03:11Z",
		"years_experience":            json.Number("75"),
		"location_zip_code":           "2134",
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusRejected, out.Status)
	assert.Equal(t, "sub-1", out.SubmissionID)
	assert.GreaterOrEqual(t, len(out.Errors), 3)
	assert.Nil(t, out.Row)
	assert.Empty(t, writer.inserts, "rejected submissions are never written")
}

type failingGeocoder struct{}

func (failingGeocoder) Lookup(context.Context, string) (geocode.Place, error) {
	return geocode.Place{}, errors.New("geocoder unavailable")
}

func intPtr(n int) *int { return &n }

func TestPipeline_Process_GeocoderFailureStillStores(t *testing.T) {
	writer := &fakeWriter{}
	p := pipeline.New(failingGeocoder{}, writer, "crna_compensation", logging.Discard())

	out, err := p.ProcessMessage(context.Background(), []byte(validJSON))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusStored, out.Status)

	require.Len(t, writer.inserts, 1)
	values := writer.inserts[0].row.Values()
	for _, col := range []string{
		submission.ColDerivedLocationState,
		submission.ColDerivedLocationCity,
		submission.ColDerivedLocationCounty,
		submission.ColLocationRegion,
	} {
		assert.Nil(t, values[col], col)
	}
	assert.Equal(t, "02134", values[submission.ColLocationZipCode])
	assert.InDelta(t, 160000.0, values[submission.ColTotalEstimatedAnnualCompensation], 1e-9)
	assert.Len(t, values, len(submission.Columns))
}

func TestPipeline_Process_NumericSubmissionID(t *testing.T) {
	writer := &fakeWriter{}
	p := pipeline.New(testGeocoder(), writer, "crna_compensation", logging.Discard())

	raw, err := pipeline.Decode([]byte(validJSON))
	require.NoError(t, err)
	raw[submission.FieldSubmissionID] = json.Number("123")

	out, err := p.Process(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "123", out.SubmissionID)
	require.Len(t, writer.inserts, 1)
	assert.Equal(t, "123", writer.inserts[0].row.SubmissionID)
}

func TestPipeline_Process_InsertFailure(t *testing.T) {
	insertErr := errors.New("quota exceeded")
	p := pipeline.New(nil, &fakeWriter{err: insertErr}, "crna_compensation", logging.Discard())

	_, err := p.ProcessMessage(context.Background(), []byte(validJSON))
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)
	assert.NotErrorIs(t, err, pipeline.ErrMalformedEnvelope)
}

func TestPipeline_Process_NoWriter(t *testing.T) {
	p := pipeline.New(nil, nil, "crna_compensation", logging.Discard())

	_, err := p.ProcessMessage(context.Background(), []byte(validJSON))
	assert.Error(t, err)
}

func TestPipeline_ProcessMessage_Malformed(t *testing.T) {
	writer := &fakeWriter{}
	p := pipeline.New(nil, writer, "crna_compensation", logging.Discard())

	for _, body := range []string{`not json`, `[1,2,3]`, `"string"`, ``} {
		_, err := p.ProcessMessage(context.Background(), []byte(body))
		assert.ErrorIs(t, err, pipeline.ErrMalformedEnvelope, "body %q", body)
	}
	assert.Empty(t, writer.inserts)
}

func TestPipeline_Evaluate_DoesNotWrite(t *testing.T) {
	writer := &fakeWriter{}
	p := pipeline.New(testGeocoder(), writer, "crna_compensation", logging.Discard())

	raw, err := pipeline.Decode([]byte(validJSON))
	require.NoError(t, err)

	out := p.Evaluate(context.Background(), raw)
	assert.Equal(t, pipeline.StatusAccepted, out.Status)
	require.NotNil(t, out.Row)
	assert.Equal(t, "Suffolk", out.Row.Values()[submission.ColDerivedLocationCounty])
	assert.Empty(t, writer.inserts)
}

func TestPipeline_ReprocessingIsDeterministic(t *testing.T) {
	writer := &fakeWriter{}
	p := pipeline.New(testGeocoder(), writer, "crna_compensation", logging.Discard())

	for range 2 {
		_, err := p.ProcessMessage(context.Background(), []byte(validJSON))
		require.NoError(t, err)
	}

	require.Len(t, writer.inserts, 2, "duplicates are inserted twice")
	assert.Equal(t, writer.inserts[0].row.Values(), writer.inserts[1].row.Values())
}

func TestPipeline_ConcurrentUse(t *testing.T) {
	writer := &fakeWriter{}
	p := pipeline.New(testGeocoder(), writer, "crna_compensation", logging.Discard())

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ProcessMessage(context.Background(), []byte(validJSON))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, writer.inserts, 16)
}

func TestDecodePush(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(validJSON))

	tests := []struct {
		name        string
		body        string
		malformed   bool
		wantAttempt *int
	}{
		{
			name: "valid",
			body: `{"message":{"data":"` + encoded + `","messageId":"123"},"subscription":"projects/p/subscriptions/s"}`,
		},
		{
			name:        "with delivery attempt",
			body:        `{"message":{"data":"` + encoded + `","messageId":"123"},"deliveryAttempt":3}`,
			wantAttempt: intPtr(3),
		},
		{
			name: "unparsable delivery attempt",
			body: `{"message":{"data":"` + encoded + `","messageId":"123"},"deliveryAttempt":"third"}`,
		},
		{name: "not json", body: `{`, malformed: true},
		{name: "no data", body: `{"message":{"messageId":"123"}}`, malformed: true},
		{name: "bad base64", body: `{"message":{"data":"%%%"}}`, malformed: true},
		{
			name:      "data not an object",
			body:      `{"message":{"data":"` + base64.StdEncoding.EncodeToString([]byte(`[1]`)) + `"}}`,
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, env, err := pipeline.DecodePush([]byte(tt.body))
			if tt.malformed {
				assert.ErrorIs(t, err, pipeline.ErrMalformedEnvelope)
				assert.Nil(t, raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "123", env.Message.MessageID)
			assert.Equal(t, json.Number("7"), raw["years_experience"])
			assert.Equal(t, tt.wantAttempt, env.Attempt())
		})
	}
}

func TestOutcome_JSON(t *testing.T) {
	p := pipeline.New(nil, &fakeWriter{}, "crna_compensation", logging.Discard())
	out, err := p.ProcessMessage(context.Background(), []byte(validJSON))
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err)

	var decoded struct {
		Status string         `json:"status"`
		Row    map[string]any `json:"row"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "stored", decoded.Status)
	assert.Contains(t, decoded.Row, submission.ColSubmissionID)
}

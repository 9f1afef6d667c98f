package coerce

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBlank(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"whitespace", "  \t ", true},
		{"zero number", json.Number("0"), false},
		{"false", false, false},
		{"text", "W2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlank(tt.value))
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "2134", Text(2134.0))
	assert.Equal(t, "12.5", Text(12.5))
	assert.Equal(t, "02134", Text(json.Number("02134")))
	assert.Equal(t, "true", Text(true))
	assert.Equal(t, "", Text(nil))
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    *float64
		wantErr error
	}{
		{"absent", nil, nil, nil},
		{"blank", "   ", nil, nil},
		{"padded string", " 150000 ", ptr(150000.0), nil},
		{"json number", json.Number("72.5"), ptr(72.5), nil},
		{"float", 10.25, ptr(10.25), nil},
		{"int", 7, ptr(7.0), nil},
		{"garbage", "abc", nil, ErrNotNumber},
		{"nan string", "NaN", nil, ErrNotNumber},
		{"infinity", math.Inf(1), nil, ErrNotNumber},
		{"bool", true, nil, ErrNotNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Float(tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    *int
		wantErr error
	}{
		{"absent", nil, nil, nil},
		{"padded string", " 30 ", ptr(30), nil},
		{"negative string", "-1", ptr(-1), nil},
		{"json integer", json.Number("60"), ptr(60), nil},
		{"json whole float", json.Number("5.0"), ptr(5), nil},
		{"whole float", 12.0, ptr(12), nil},
		{"fractional float", 12.5, nil, ErrNotInteger},
		{"decimal string", "5.0", nil, ErrNotInteger},
		{"garbage", "abc", nil, ErrNotInteger},
		{"huge", 1e300, nil, ErrNotInteger},
		{"bool", false, nil, ErrNotInteger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Int(tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestString(t *testing.T) {
	assert.Nil(t, String(" "))
	require.NotNil(t, String("four weeks"))
	assert.Equal(t, "four weeks", *String("four weeks"))
	assert.Equal(t, "3", *String(json.Number("3")))
}

func TestLenientFormsLogWarning(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	assert.Nil(t, FloatOrNil("sign_on_bonus", "lots"))
	assert.Nil(t, IntOrNil("pto_weeks", "four"))
	assert.Equal(t, ptr(4), IntOrNil("pto_weeks", "4"))
	assert.Nil(t, FloatOrNil("sign_on_bonus", ""))

	out := buf.String()
	assert.Contains(t, out, `"field":"sign_on_bonus"`)
	assert.Contains(t, out, `"field":"pto_weeks"`)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("could not convert value")))
}

func ptr[T any](v T) *T {
	return &v
}

// Package coerce converts loosely-typed submission values into typed numbers
// and strings. These helpers are the only place untyped values cross into
// typed fields; they never panic.
package coerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNotNumber reports a value that does not parse as a finite number.
	ErrNotNumber = errors.New("not a valid number")
	// ErrNotInteger reports a value that does not parse as a whole number.
	ErrNotInteger = errors.New("not a valid integer")
)

// maxExactInt bounds integers converted from float64 to the range where
// float64 still represents every whole number.
const maxExactInt = 1 << 53

// IsBlank reports whether v is absent: nil, or a value whose text form is
// empty after trimming whitespace.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	return strings.TrimSpace(Text(v)) == ""
}

// Text renders v the way it would have been typed into a form field.
// Whole floats render without a fractional part.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// String returns the text form of v, or nil when v is blank.
func String(v any) *string {
	if IsBlank(v) {
		return nil
	}
	s := Text(v)
	return &s
}

// Float parses v as a finite float64. Blank input yields (nil, nil).
func Float(v any) (*float64, error) {
	if IsBlank(v) {
		return nil, nil
	}

	var f float64
	switch val := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, ErrNotNumber
		}
		f = parsed
	case json.Number:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val.String()), 64)
		if err != nil {
			return nil, ErrNotNumber
		}
		f = parsed
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case int32:
		f = float64(val)
	default:
		return nil, ErrNotNumber
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, ErrNotNumber
	}
	return &f, nil
}

// Int parses v as a whole number. Strings must be integer literals; numeric
// values must have no fractional part. Blank input yields (nil, nil).
func Int(v any) (*int, error) {
	if IsBlank(v) {
		return nil, nil
	}

	switch val := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, ErrNotInteger
		}
		return &n, nil
	case json.Number:
		if n, err := strconv.Atoi(strings.TrimSpace(val.String())); err == nil {
			return &n, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val.String()), 64)
		if err != nil {
			return nil, ErrNotInteger
		}
		return wholeFloat(f)
	case float64:
		return wholeFloat(val)
	case float32:
		return wholeFloat(float64(val))
	case int:
		return &val, nil
	case int64:
		n := int(val)
		return &n, nil
	case int32:
		n := int(val)
		return &n, nil
	default:
		return nil, ErrNotInteger
	}
}

func wholeFloat(f float64) (*int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return nil, ErrNotInteger
	}
	n := int(f)
	return &n, nil
}

// FloatOrNil is the lenient form of Float: an unparsable value is logged as a
// data-quality warning and treated as absent.
func FloatOrNil(field string, v any) *float64 {
	f, err := Float(v)
	if err != nil {
		warn(field, v, "float")
		return nil
	}
	return f
}

// IntOrNil is the lenient form of Int.
func IntOrNil(field string, v any) *int {
	n, err := Int(v)
	if err != nil {
		warn(field, v, "int")
		return nil
	}
	return n
}

func warn(field string, v any, target string) {
	slog.Warn("could not convert value, treating as absent",
		slog.String("field", field),
		slog.String("value", Text(v)),
		slog.String("target", target),
	)
}

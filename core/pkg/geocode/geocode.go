// Package geocode resolves US postal codes to state, place and county names.
//
// Lookups are read-only and safe for concurrent use. A Place may be partially
// populated; callers treat each empty field as unavailable on its own.
package geocode

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a postal code is not in the reference data.
var ErrNotFound = errors.New("postal code not found")

// Place holds the administrative attributes of a postal code. Empty fields
// are unknown.
type Place struct {
	StateCode  string `json:"state_code,omitempty"`
	PlaceName  string `json:"place_name,omitempty"`
	CountyName string `json:"county_name,omitempty"`
}

// IsZero reports whether no attribute is known.
func (p Place) IsZero() bool {
	return p.StateCode == "" && p.PlaceName == "" && p.CountyName == ""
}

// Geocoder looks up a postal code.
type Geocoder interface {
	Lookup(ctx context.Context, postalCode string) (Place, error)
}

// NormalizePostalCode returns the 5-digit ZIP used as the lookup key; ZIP+4
// codes resolve by their first five digits.
func NormalizePostalCode(postalCode string) string {
	code := strings.TrimSpace(postalCode)
	if len(code) > 5 {
		code = code[:5]
	}
	return code
}

// Chain tries each geocoder in order and returns the first non-empty match.
// A miss everywhere is ErrNotFound; backend failures are joined so the caller
// can log them.
type Chain []Geocoder

// Lookup implements Geocoder.
func (c Chain) Lookup(ctx context.Context, postalCode string) (Place, error) {
	var errs []error
	for _, g := range c {
		if g == nil {
			continue
		}
		place, err := g.Lookup(ctx, postalCode)
		if err == nil && !place.IsZero() {
			return place, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			return Place{}, ctx.Err()
		}
	}
	if len(errs) > 0 {
		return Place{}, errors.Join(errs...)
	}
	return Place{}, ErrNotFound
}

// Package enrichment derives geography, experience band, census region and an
// estimated total annual compensation for an accepted submission.
//
// Enrichment never fails: any derivation that cannot be made is left nil and
// logged as a warning.
package enrichment

import (
	"context"

	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/core/pkg/geocode"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

// Engine enriches accepted submissions. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	geocoder geocode.Geocoder
	logger   *logging.Logger
}

// New creates an Engine. A nil geocoder disables geography derivation.
func New(geocoder geocode.Geocoder, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{geocoder: geocoder, logger: logger}
}

// Enrich returns a new Enriched value for s. s is not modified.
func (e *Engine) Enrich(ctx context.Context, s *submission.Submission) *submission.Enriched {
	out := &submission.Enriched{Submission: s}

	place := e.locate(ctx, s)
	out.DerivedLocationState = nonEmpty(place.StateCode)
	out.DerivedLocationCity = nonEmpty(place.PlaceName)
	out.DerivedLocationCounty = nonEmpty(place.CountyName)

	if out.DerivedLocationState != nil {
		if region, ok := Region(*out.DerivedLocationState); ok {
			out.LocationRegion = &region
		}
	}

	bucket := ExperienceBucket(s.YearsExperience)
	out.ExperienceBucket = &bucket

	out.TotalEstimatedAnnualCompensation = TotalCompensation(s)

	return out
}

// locate resolves the submission's postal code, degrading to an empty Place.
func (e *Engine) locate(ctx context.Context, s *submission.Submission) geocode.Place {
	if s.ZipCode == "" {
		return geocode.Place{}
	}
	if e.geocoder == nil {
		e.logger.WarnContext(ctx, "geocoder not configured, skipping geography",
			logging.SubmissionID(s.SubmissionID),
			logging.ZipCode(s.ZipCode))
		return geocode.Place{}
	}

	place, err := e.geocoder.Lookup(ctx, s.ZipCode)
	if err != nil {
		e.logger.WarnContext(ctx, "geocode lookup failed",
			logging.SubmissionID(s.SubmissionID),
			logging.ZipCode(s.ZipCode),
			logging.Error(err))
		return geocode.Place{}
	}

	for _, f := range [...]struct{ name, value string }{
		{"state_code", place.StateCode},
		{"place_name", place.PlaceName},
		{"county_name", place.CountyName},
	} {
		if f.value == "" {
			e.logger.WarnContext(ctx, "geocode field unavailable",
				logging.SubmissionID(s.SubmissionID),
				logging.ZipCode(s.ZipCode),
				"field", f.name)
		}
	}
	return place
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

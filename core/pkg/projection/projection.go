// Package projection shapes an enriched submission into the persisted row.
package projection

import (
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

// Project maps e onto the closed column set. Raw keys outside the schema are
// dropped, absent values become NULL, and the two scoring columns are fixed:
// is_validated is false and anomaly_score is NULL until a downstream scorer
// fills them.
func Project(e *submission.Enriched) submission.Row {
	s := e.Submission

	dataSource := s.DataSource
	if dataSource == "" {
		dataSource = submission.DefaultDataSource
	}
	years := s.YearsExperience

	return submission.Row{
		SubmissionID:                     s.SubmissionID,
		SubmissionTimestamp:              s.SubmissionTimestamp,
		YearsExperience:                  &years,
		LocationZipCode:                  s.ZipCode,
		DerivedLocationState:             e.DerivedLocationState,
		DerivedLocationCity:              e.DerivedLocationCity,
		DerivedLocationCounty:            e.DerivedLocationCounty,
		LocationRegion:                   e.LocationRegion,
		ExperienceBucket:                 e.ExperienceBucket,
		TotalEstimatedAnnualCompensation: e.TotalEstimatedAnnualCompensation,
		EmploymentType:                   s.EmploymentType,
		WorkSetting:                      s.WorkSetting,
		PrimaryStateOfLicensure:          s.PrimaryStateOfLicensure,
		BaseSalaryAnnual:                 s.BaseSalaryAnnual,
		HourlyRateW2:                     s.HourlyRateW2,
		GuaranteedHoursW2:                s.GuaranteedHoursW2,
		HourlyRate1099:                   s.HourlyRate1099,
		OTRateMultiplier:                 s.OTRateMultiplier,
		CallStipendType:                  s.CallStipendType,
		CallStipendAmount:                s.CallStipendAmount,
		BonusPotentialAnnual:             s.BonusPotentialAnnual,
		SignOnBonus:                      s.SignOnBonus,
		RetentionBonusTerms:              s.RetentionBonusTerms,
		PTOWeeks:                         s.PTOWeeks,
		RetirementMatchPercentage:        s.RetirementMatchPercentage,
		CMEAllowanceAnnual:               s.CMEAllowanceAnnual,
		MalpracticeCoverageType:          s.MalpracticeCoverageType,
		Comments:                         s.Comments,
		DataSource:                       dataSource,
		IsValidated:                      false,
		AnomalyScore:                     nil,
	}
}


package submission

import "encoding/json"

// Column names of the persisted compensation table, in schema order.
const (
	ColSubmissionID                     = "submission_id"
	ColSubmissionTimestamp              = "submission_timestamp"
	ColYearsExperience                  = "years_experience"
	ColLocationZipCode                  = "location_zip_code"
	ColDerivedLocationState             = "derived_location_state"
	ColDerivedLocationCity              = "derived_location_city"
	ColDerivedLocationCounty            = "derived_location_county"
	ColLocationRegion                   = "location_region"
	ColExperienceBucket                 = "experience_bucket"
	ColTotalEstimatedAnnualCompensation = "total_estimated_annual_compensation"
	ColEmploymentType                   = "employment_type"
	ColWorkSetting                      = "work_setting"
	ColPrimaryStateOfLicensure          = "primary_state_of_licensure"
	ColBaseSalaryAnnual                 = "base_salary_annual"
	ColHourlyRateW2                     = "hourly_rate_w2"
	ColGuaranteedHoursW2                = "guaranteed_hours_w2"
	ColHourlyRate1099                   = "hourly_rate_1099"
	ColOTRateMultiplier                 = "ot_rate_multiplier"
	ColCallStipendType                  = "call_stipend_type"
	ColCallStipendAmount                = "call_stipend_amount"
	ColBonusPotentialAnnual             = "bonus_potential_annual"
	ColSignOnBonus                      = "sign_on_bonus"
	ColRetentionBonusTerms              = "retention_bonus_terms"
	ColPTOWeeks                         = "pto_weeks"
	ColRetirementMatchPercentage        = "retirement_match_percentage"
	ColCMEAllowanceAnnual               = "cme_allowance_annual"
	ColMalpracticeCoverageType          = "malpractice_coverage_type"
	ColComments                         = "comments"
	ColDataSource                       = "data_source"
	ColIsValidated                      = "is_validated"
	ColAnomalyScore                     = "anomaly_score"
)

// Columns is the closed column set of the compensation table. Every insert
// carries exactly these keys.
var Columns = []string{
	ColSubmissionID,
	ColSubmissionTimestamp,
	ColYearsExperience,
	ColLocationZipCode,
	ColDerivedLocationState,
	ColDerivedLocationCity,
	ColDerivedLocationCounty,
	ColLocationRegion,
	ColExperienceBucket,
	ColTotalEstimatedAnnualCompensation,
	ColEmploymentType,
	ColWorkSetting,
	ColPrimaryStateOfLicensure,
	ColBaseSalaryAnnual,
	ColHourlyRateW2,
	ColGuaranteedHoursW2,
	ColHourlyRate1099,
	ColOTRateMultiplier,
	ColCallStipendType,
	ColCallStipendAmount,
	ColBonusPotentialAnnual,
	ColSignOnBonus,
	ColRetentionBonusTerms,
	ColPTOWeeks,
	ColRetirementMatchPercentage,
	ColCMEAllowanceAnnual,
	ColMalpracticeCoverageType,
	ColComments,
	ColDataSource,
	ColIsValidated,
	ColAnomalyScore,
}

// Row is one persisted compensation record. Nil pointers are stored as NULL.
type Row struct {
	SubmissionID                     string
	SubmissionTimestamp              string
	YearsExperience                  *int
	LocationZipCode                  string
	DerivedLocationState             *string
	DerivedLocationCity              *string
	DerivedLocationCounty            *string
	LocationRegion                   *string
	ExperienceBucket                 *string
	TotalEstimatedAnnualCompensation *float64
	EmploymentType                   string
	WorkSetting                      string
	PrimaryStateOfLicensure          *string
	BaseSalaryAnnual                 *float64
	HourlyRateW2                     *float64
	GuaranteedHoursW2                *int
	HourlyRate1099                   *float64
	OTRateMultiplier                 *float64
	CallStipendType                  *string
	CallStipendAmount                *float64
	BonusPotentialAnnual             *float64
	SignOnBonus                      *float64
	RetentionBonusTerms              *string
	PTOWeeks                         *int
	RetirementMatchPercentage        *float64
	CMEAllowanceAnnual               *float64
	MalpracticeCoverageType          *string
	Comments                         *string
	DataSource                       string
	IsValidated                      bool
	AnomalyScore                     *float64
}

// Values returns the row keyed by column name. The key set is always exactly
// Columns; absent values are untyped nil rather than typed nil pointers.
func (r Row) Values() map[string]any {
	return map[string]any{
		ColSubmissionID:                     r.SubmissionID,
		ColSubmissionTimestamp:              r.SubmissionTimestamp,
		ColYearsExperience:                  deref(r.YearsExperience),
		ColLocationZipCode:                  r.LocationZipCode,
		ColDerivedLocationState:             deref(r.DerivedLocationState),
		ColDerivedLocationCity:              deref(r.DerivedLocationCity),
		ColDerivedLocationCounty:            deref(r.DerivedLocationCounty),
		ColLocationRegion:                   deref(r.LocationRegion),
		ColExperienceBucket:                 deref(r.ExperienceBucket),
		ColTotalEstimatedAnnualCompensation: deref(r.TotalEstimatedAnnualCompensation),
		ColEmploymentType:                   r.EmploymentType,
		ColWorkSetting:                      r.WorkSetting,
		ColPrimaryStateOfLicensure:          deref(r.PrimaryStateOfLicensure),
		ColBaseSalaryAnnual:                 deref(r.BaseSalaryAnnual),
		ColHourlyRateW2:                     deref(r.HourlyRateW2),
		ColGuaranteedHoursW2:                deref(r.GuaranteedHoursW2),
		ColHourlyRate1099:                   deref(r.HourlyRate1099),
		ColOTRateMultiplier:                 deref(r.OTRateMultiplier),
		ColCallStipendType:                  deref(r.CallStipendType),
		ColCallStipendAmount:                deref(r.CallStipendAmount),
		ColBonusPotentialAnnual:             deref(r.BonusPotentialAnnual),
		ColSignOnBonus:                      deref(r.SignOnBonus),
		ColRetentionBonusTerms:              deref(r.RetentionBonusTerms),
		ColPTOWeeks:                         deref(r.PTOWeeks),
		ColRetirementMatchPercentage:        deref(r.RetirementMatchPercentage),
		ColCMEAllowanceAnnual:               deref(r.CMEAllowanceAnnual),
		ColMalpracticeCoverageType:          deref(r.MalpracticeCoverageType),
		ColComments:                         deref(r.Comments),
		ColDataSource:                       r.DataSource,
		ColIsValidated:                      r.IsValidated,
		ColAnomalyScore:                     deref(r.AnomalyScore),
	}
}

// Ordered returns the row values in Columns order, for positional inserts.
func (r Row) Ordered() []any {
	values := r.Values()
	out := make([]any, len(Columns))
	for i, col := range Columns {
		out[i] = values[col]
	}
	return out
}

// MarshalJSON encodes the row as an object keyed by column name.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Values())
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

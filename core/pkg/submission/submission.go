// Package submission defines the compensation submission artifacts that flow
// through the processing pipeline: the untyped raw record, the typed accepted
// submission, its enriched form, and the persisted row.
package submission

// Raw field names as stamped by the ingest service and sent by clients.
const (
	FieldSubmissionID              = "submission_id_server"
	FieldSubmissionTimestamp       = "submission_timestamp_server"
	FieldYearsExperience           = "years_experience"
	FieldZipCode                   = "location_zip_code"
	FieldEmploymentType            = "employment_type"
	FieldWorkSetting               = "work_setting"
	FieldPrimaryStateOfLicensure   = "primary_state_of_licensure"
	FieldBaseSalaryAnnual          = "base_salary_annual"
	FieldHourlyRateW2              = "hourly_rate_w2"
	FieldGuaranteedHoursW2         = "guaranteed_hours_w2"
	FieldHourlyRate1099            = "hourly_rate_1099"
	FieldOTRateMultiplier          = "ot_rate_multiplier"
	FieldCallStipendType           = "call_stipend_type"
	FieldCallStipendAmount         = "call_stipend_amount"
	FieldBonusPotentialAnnual      = "bonus_potential_annual"
	FieldSignOnBonus               = "sign_on_bonus"
	FieldRetentionBonusTerms       = "retention_bonus_terms"
	FieldPTOWeeks                  = "pto_weeks"
	FieldRetirementMatchPercentage = "retirement_match_percentage"
	FieldCMEAllowanceAnnual        = "cme_allowance_annual"
	FieldMalpracticeCoverageType   = "malpractice_coverage_type"
	FieldComments                  = "comments"
	FieldDataSource                = "data_source"
)

// Employment types.
const (
	EmploymentW2         = "W2"
	EmploymentContractor = "1099/Contractor"
	EmploymentPartTimeW2 = "Part-time W2"
	EmploymentOther      = "Other"
)

// Call stipend types. StipendNone is an explicit "no stipend" answer.
const (
	StipendPerDiem        = "Per Diem"
	StipendHourlyOnCall   = "Hourly On Call"
	StipendActivationOnly = "Activation Only"
	StipendNone           = "None"
)

// DefaultDataSource is recorded when the submission does not name its origin.
const DefaultDataSource = "user_submission_pubsub"

// EmploymentTypes lists the accepted employment_type values.
var EmploymentTypes = []string{EmploymentW2, EmploymentContractor, EmploymentPartTimeW2, EmploymentOther}

// WorkSettings lists the accepted work_setting values.
var WorkSettings = []string{
	"Hospital - Academic",
	"Hospital - Community",
	"ASC",
	"Office-Based",
	"VA/Military",
	"Locums",
	"Other",
}

// CallStipendTypes lists the accepted non-blank call_stipend_type values.
var CallStipendTypes = []string{StipendPerDiem, StipendHourlyOnCall, StipendActivationOnly, StipendNone}

// MalpracticeCoverageTypes lists the accepted non-blank malpractice_coverage_type values.
var MalpracticeCoverageTypes = []string{"Occurrence", "Claims-Made", "Claims-Made with Tail", "None"}

// Raw is a submission exactly as received: arbitrary keys, untyped values.
// Numbers decoded with json.Decoder.UseNumber arrive as json.Number.
type Raw map[string]any

// Get returns the value stored under key, or nil.
func (r Raw) Get(key string) any {
	if r == nil {
		return nil
	}
	return r[key]
}

// Clone returns a shallow copy so callers can stamp fields without touching
// the original record.
func (r Raw) Clone() Raw {
	out := make(Raw, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Submission is an accepted submission. Every value has passed field-level
// validation; optional fields are nil when omitted.
type Submission struct {
	SubmissionID        string `json:"submission_id"`
	SubmissionTimestamp string `json:"submission_timestamp"`

	YearsExperience         int     `json:"years_experience"`
	ZipCode                 string  `json:"location_zip_code"`
	EmploymentType          string  `json:"employment_type"`
	WorkSetting             string  `json:"work_setting"`
	PrimaryStateOfLicensure *string `json:"primary_state_of_licensure,omitempty"`

	BaseSalaryAnnual          *float64 `json:"base_salary_annual,omitempty"`
	HourlyRateW2              *float64 `json:"hourly_rate_w2,omitempty"`
	GuaranteedHoursW2         *int     `json:"guaranteed_hours_w2,omitempty"`
	HourlyRate1099            *float64 `json:"hourly_rate_1099,omitempty"`
	OTRateMultiplier          *float64 `json:"ot_rate_multiplier,omitempty"`
	CallStipendType           *string  `json:"call_stipend_type,omitempty"`
	CallStipendAmount         *float64 `json:"call_stipend_amount,omitempty"`
	BonusPotentialAnnual      *float64 `json:"bonus_potential_annual,omitempty"`
	SignOnBonus               *float64 `json:"sign_on_bonus,omitempty"`
	RetentionBonusTerms       *string  `json:"retention_bonus_terms,omitempty"`
	PTOWeeks                  *int     `json:"pto_weeks,omitempty"`
	RetirementMatchPercentage *float64 `json:"retirement_match_percentage,omitempty"`
	CMEAllowanceAnnual        *float64 `json:"cme_allowance_annual,omitempty"`
	MalpracticeCoverageType   *string  `json:"malpractice_coverage_type,omitempty"`
	Comments                  *string  `json:"comments,omitempty"`
	DataSource                string   `json:"data_source"`

	// Raw is the record the submission was parsed from. Keys outside the
	// persisted schema survive here and are dropped at projection.
	Raw Raw `json:"-"`
}

// Enriched is an accepted submission plus derived attributes. Each derived
// field is nil when it could not be determined.
type Enriched struct {
	*Submission

	DerivedLocationState             *string  `json:"derived_location_state,omitempty"`
	DerivedLocationCity              *string  `json:"derived_location_city,omitempty"`
	DerivedLocationCounty            *string  `json:"derived_location_county,omitempty"`
	LocationRegion                   *string  `json:"location_region,omitempty"`
	ExperienceBucket                 *string  `json:"experience_bucket,omitempty"`
	TotalEstimatedAnnualCompensation *float64 `json:"total_estimated_annual_compensation,omitempty"`
}

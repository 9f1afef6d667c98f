package enrichment

import "github.com/crnapay/crnapay-stack/core/pkg/submission"

// Annualization assumptions.
const (
	WeeksPerYear           = 52
	ContractorHoursPerYear = 1800
	PerDiemCallDaysPerYear = 60
	OnCallHoursPerYear     = 500
)

// TotalCompensation estimates annual compensation from the submitted pay
// components. Terms are added in a fixed order: base pay by employment type,
// bonus potential, sign-on bonus, then the annualized call stipend. A total
// that is not positive carries no information and is reported as nil.
func TotalCompensation(s *submission.Submission) *float64 {
	total := 0.0

	switch s.EmploymentType {
	case submission.EmploymentW2:
		switch {
		case positive(s.BaseSalaryAnnual):
			total += *s.BaseSalaryAnnual
		case positive(s.HourlyRateW2) && s.GuaranteedHoursW2 != nil && *s.GuaranteedHoursW2 > 0:
			total += *s.HourlyRateW2 * float64(*s.GuaranteedHoursW2) * WeeksPerYear
		}
	case submission.EmploymentContractor:
		if positive(s.HourlyRate1099) {
			total += *s.HourlyRate1099 * ContractorHoursPerYear
		}
	}

	total += valueOrZero(s.BonusPotentialAnnual)
	total += valueOrZero(s.SignOnBonus)

	if s.CallStipendType != nil && positive(s.CallStipendAmount) {
		switch *s.CallStipendType {
		case submission.StipendPerDiem:
			total += *s.CallStipendAmount * PerDiemCallDaysPerYear
		case submission.StipendHourlyOnCall:
			total += *s.CallStipendAmount * OnCallHoursPerYear
		}
	}

	if total <= 0 {
		return nil
	}
	return &total
}

func positive(f *float64) bool {
	return f != nil && *f > 0
}

func valueOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

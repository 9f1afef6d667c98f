// Package validation classifies a raw compensation submission as accepted,
// with every field parsed into its typed form, or rejected with the complete
// ordered list of rule violations. Every rule runs on every record.
package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/crnapay/crnapay-stack/core/pkg/coerce"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

var (
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	statePattern = regexp.MustCompile(`^[A-Z]{2}$`)
)

// Bounds for years_experience.
const (
	MinYearsExperience = 0
	MaxYearsExperience = 60
)

// serverFields are stamped by the ingest service before a submission is queued.
var serverFields = []string{submission.FieldSubmissionID, submission.FieldSubmissionTimestamp}

// requiredFields must be supplied by the submitter.
var requiredFields = []string{
	submission.FieldYearsExperience,
	submission.FieldZipCode,
	submission.FieldEmploymentType,
	submission.FieldWorkSetting,
}

type numberKind int

const (
	kindFloat numberKind = iota
	kindInt
)

// NumericRange bounds an optional numeric field.
type NumericRange struct {
	Field string
	Min   float64
	Max   float64
	// Label is the range as it appears in messages.
	Label string
	kind  numberKind
}

// NumericRanges lists the optional numeric fields in the order they are checked.
var NumericRanges = []NumericRange{
	{Field: submission.FieldBaseSalaryAnnual, Min: 0, Max: 2_000_000, Label: "0-2,000,000", kind: kindFloat},
	{Field: submission.FieldHourlyRateW2, Min: 0, Max: 1_000, Label: "0-1,000", kind: kindFloat},
	{Field: submission.FieldGuaranteedHoursW2, Min: 0, Max: 168, Label: "0-168", kind: kindInt},
	{Field: submission.FieldHourlyRate1099, Min: 0, Max: 1_000, Label: "0-1,000", kind: kindFloat},
	{Field: submission.FieldOTRateMultiplier, Min: 0, Max: 5, Label: "0-5", kind: kindFloat},
	{Field: submission.FieldCallStipendAmount, Min: 0, Max: 100_000, Label: "0-100,000", kind: kindFloat},
	{Field: submission.FieldBonusPotentialAnnual, Min: 0, Max: 1_000_000, Label: "0-1,000,000", kind: kindFloat},
	{Field: submission.FieldSignOnBonus, Min: 0, Max: 1_000_000, Label: "0-1,000,000", kind: kindFloat},
	{Field: submission.FieldPTOWeeks, Min: 0, Max: 52, Label: "0-52", kind: kindInt},
	{Field: submission.FieldRetirementMatchPercentage, Min: 0, Max: 100, Label: "0-100", kind: kindFloat},
	{Field: submission.FieldCMEAllowanceAnnual, Min: 0, Max: 100_000, Label: "0-100,000", kind: kindFloat},
}

// Result is the outcome of validating one raw submission. Exactly one of
// Submission and Errors is set.
type Result struct {
	Submission *submission.Submission
	Errors     []string
}

// Accepted reports whether the submission passed every rule.
func (r Result) Accepted() bool {
	return len(r.Errors) == 0 && r.Submission != nil
}

// Validate runs every rule against raw and returns the accepted submission or
// the collected violations in rule order. It never fails for any input.
func Validate(raw submission.Raw) Result {
	c := &checker{
		raw:    raw,
		floats: make(map[string]*float64),
		ints:   make(map[string]*int),
	}

	c.checkServerFields()
	c.checkRequiredFields()
	c.checkYearsExperience()
	c.checkZipCode()
	c.checkEnum(submission.FieldEmploymentType, submission.EmploymentTypes)
	c.checkEnum(submission.FieldWorkSetting, submission.WorkSettings)
	c.checkStateOfLicensure()
	for _, nr := range NumericRanges {
		c.checkNumeric(nr)
	}
	c.callStipendType = c.checkOptionalEnum(submission.FieldCallStipendType, submission.CallStipendTypes)
	c.malpracticeType = c.checkOptionalEnum(submission.FieldMalpracticeCoverageType, submission.MalpracticeCoverageTypes)
	c.checkW2Completeness()
	c.checkStipendAmount()

	if len(c.errs) > 0 {
		return Result{Errors: c.errs}
	}
	return Result{Submission: c.build()}
}

// checker accumulates violations and the values that parsed cleanly.
type checker struct {
	raw  submission.Raw
	errs []string

	yearsExperience *int
	state           *string
	callStipendType *string
	malpracticeType *string
	floats          map[string]*float64
	ints            map[string]*int
}

func (c *checker) fail(format string, args ...any) {
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

func (c *checker) blank(field string) bool {
	return coerce.IsBlank(c.raw.Get(field))
}

func (c *checker) text(field string) string {
	return coerce.Text(c.raw.Get(field))
}

func (c *checker) checkServerFields() {
	for _, field := range serverFields {
		if c.blank(field) {
			c.fail("Missing critical server-generated field: %s.", field)
		}
	}
}

func (c *checker) checkRequiredFields() {
	for _, field := range requiredFields {
		if c.blank(field) {
			c.fail("Missing or empty required user field: %s.", field)
		}
	}
}

func (c *checker) checkYearsExperience() {
	field := submission.FieldYearsExperience
	if c.blank(field) {
		return
	}
	n, err := coerce.Int(c.raw.Get(field))
	if err != nil {
		c.fail("%s ('%s') must be a valid integer.", field, c.text(field))
		return
	}
	if *n < MinYearsExperience || *n > MaxYearsExperience {
		c.fail("%s (%d) out of range (%d-%d).", field, *n, MinYearsExperience, MaxYearsExperience)
		return
	}
	c.yearsExperience = n
}

func (c *checker) checkZipCode() {
	field := submission.FieldZipCode
	if c.blank(field) {
		return
	}
	if !zipPattern.MatchString(c.text(field)) {
		c.fail("%s ('%s') has an invalid format.", field, c.text(field))
	}
}

func (c *checker) checkEnum(field string, allowed []string) {
	if c.blank(field) {
		return
	}
	if !slices.Contains(allowed, c.text(field)) {
		c.fail("%s ('%s') is not a valid option.", field, c.text(field))
	}
}

func (c *checker) checkStateOfLicensure() {
	field := submission.FieldPrimaryStateOfLicensure
	if c.blank(field) {
		return
	}
	normalized := strings.ToUpper(strings.TrimSpace(c.text(field)))
	if !statePattern.MatchString(normalized) {
		c.fail("%s ('%s') if provided, must be a 2-letter state code.", field, c.text(field))
		return
	}
	c.state = &normalized
}

func (c *checker) checkNumeric(nr NumericRange) {
	if c.blank(nr.Field) {
		return
	}
	v := c.raw.Get(nr.Field)

	switch nr.kind {
	case kindInt:
		n, err := coerce.Int(v)
		if err != nil {
			c.fail("%s ('%s') is not a valid integer.", nr.Field, coerce.Text(v))
			return
		}
		if float64(*n) < nr.Min || float64(*n) > nr.Max {
			c.fail("%s (%d) is out of a reasonable range (%s).", nr.Field, *n, nr.Label)
			return
		}
		c.ints[nr.Field] = n
	default:
		f, err := coerce.Float(v)
		if err != nil {
			c.fail("%s ('%s') is not a valid number.", nr.Field, coerce.Text(v))
			return
		}
		if *f < nr.Min || *f > nr.Max {
			c.fail("%s (%s) is out of a reasonable range (%s).", nr.Field, strconv.FormatFloat(*f, 'f', -1, 64), nr.Label)
			return
		}
		c.floats[nr.Field] = f
	}
}

// checkOptionalEnum validates a field whose blank value means omitted. The
// returned pointer is the accepted value, or nil.
func (c *checker) checkOptionalEnum(field string, allowed []string) *string {
	if c.blank(field) {
		return nil
	}
	value := c.text(field)
	if !slices.Contains(allowed, value) {
		c.fail("%s ('%s') is not valid. Allowed: %s.", field, value, strings.Join(allowed, ", "))
		return nil
	}
	return &value
}

func (c *checker) checkW2Completeness() {
	if c.text(submission.FieldEmploymentType) != submission.EmploymentW2 {
		return
	}
	hasSalary := !c.blank(submission.FieldBaseSalaryAnnual)
	hasHourly := !c.blank(submission.FieldHourlyRateW2) && !c.blank(submission.FieldGuaranteedHoursW2)
	if !hasSalary && !hasHourly {
		c.fail("For W2 employment, please provide Annual Base Salary OR both W2 Hourly Rate and Guaranteed Hours.")
	}
}

func (c *checker) checkStipendAmount() {
	if c.callStipendType == nil || *c.callStipendType == submission.StipendNone {
		return
	}
	if c.blank(submission.FieldCallStipendAmount) {
		c.fail("call_stipend_amount is required when call_stipend_type is '%s'.", *c.callStipendType)
	}
}

func (c *checker) build() *submission.Submission {
	s := &submission.Submission{
		SubmissionID:              c.text(submission.FieldSubmissionID),
		SubmissionTimestamp:       c.text(submission.FieldSubmissionTimestamp),
		YearsExperience:           *c.yearsExperience,
		ZipCode:                   c.text(submission.FieldZipCode),
		EmploymentType:            c.text(submission.FieldEmploymentType),
		WorkSetting:               c.text(submission.FieldWorkSetting),
		PrimaryStateOfLicensure:   c.state,
		BaseSalaryAnnual:          c.floats[submission.FieldBaseSalaryAnnual],
		HourlyRateW2:              c.floats[submission.FieldHourlyRateW2],
		GuaranteedHoursW2:         c.ints[submission.FieldGuaranteedHoursW2],
		HourlyRate1099:            c.floats[submission.FieldHourlyRate1099],
		OTRateMultiplier:          c.floats[submission.FieldOTRateMultiplier],
		CallStipendType:           c.callStipendType,
		CallStipendAmount:         c.floats[submission.FieldCallStipendAmount],
		BonusPotentialAnnual:      c.floats[submission.FieldBonusPotentialAnnual],
		SignOnBonus:               c.floats[submission.FieldSignOnBonus],
		RetentionBonusTerms:       coerce.String(c.raw.Get(submission.FieldRetentionBonusTerms)),
		PTOWeeks:                  c.ints[submission.FieldPTOWeeks],
		RetirementMatchPercentage: c.floats[submission.FieldRetirementMatchPercentage],
		CMEAllowanceAnnual:        c.floats[submission.FieldCMEAllowanceAnnual],
		MalpracticeCoverageType:   c.malpracticeType,
		Comments:                  coerce.String(c.raw.Get(submission.FieldComments)),
		Raw:                       c.raw.Clone(),
	}
	if ds := coerce.String(c.raw.Get(submission.FieldDataSource)); ds != nil {
		s.DataSource = *ds
	}
	return s
}

package seeder

import (
	"maps"
	"math"
	"slices"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

// Generator produces realistic compensation submissions as clients would
// send them: no server-stamped fields, numbers as JSON numbers.
type Generator struct {
	faker        *gofakeit.Faker
	dataSource   string
	invalidRatio float64
	employment   []string
	weights      []float64
}

// NewGenerator creates a generator. A zero seed picks a random one. mix
// weights employment types; an empty mix weights them evenly.
func NewGenerator(seed int64, mix map[string]float64, invalidRatio float64, dataSource string) *Generator {
	g := &Generator{
		faker:        gofakeit.New(seed),
		dataSource:   dataSource,
		invalidRatio: invalidRatio,
	}
	if len(mix) == 0 {
		g.employment = slices.Clone(submission.EmploymentTypes)
	} else {
		g.employment = slices.Sorted(maps.Keys(mix))
	}
	for _, e := range g.employment {
		w := 1.0
		if len(mix) > 0 {
			w = mix[e]
		}
		g.weights = append(g.weights, w)
	}
	return g
}

// Next returns the next submission and whether it was deliberately made
// invalid.
func (g *Generator) Next() (map[string]any, bool) {
	sub := g.Valid()
	if g.invalidRatio > 0 && g.faker.Float64Range(0, 1) < g.invalidRatio {
		g.Corrupt(sub)
		return sub, true
	}
	return sub, false
}

// Valid returns a submission that passes validation once server fields
// are stamped.
func (g *Generator) Valid() map[string]any {
	f := g.faker
	employment := g.pickEmployment()

	sub := map[string]any{
		submission.FieldYearsExperience: f.Number(0, 40),
		submission.FieldZipCode:         f.Numerify("#####"),
		submission.FieldEmploymentType:  employment,
		submission.FieldWorkSetting:     f.RandomString(submission.WorkSettings),
	}
	if f.Bool() {
		sub[submission.FieldPrimaryStateOfLicensure] = f.StateAbr()
	}
	if g.dataSource != "" {
		sub[submission.FieldDataSource] = g.dataSource
	}

	switch employment {
	case submission.EmploymentW2, submission.EmploymentPartTimeW2:
		if f.Number(0, 2) > 0 {
			sub[submission.FieldBaseSalaryAnnual] = money(f.Float64Range(150_000, 320_000))
		} else {
			sub[submission.FieldHourlyRateW2] = money(f.Float64Range(90, 220))
			sub[submission.FieldGuaranteedHoursW2] = f.Number(24, 60)
		}
		sub[submission.FieldPTOWeeks] = f.Number(3, 8)
		sub[submission.FieldRetirementMatchPercentage] = float64(f.Number(0, 10))
		sub[submission.FieldCMEAllowanceAnnual] = float64(f.Number(10, 50) * 100)
		if f.Bool() {
			sub[submission.FieldBonusPotentialAnnual] = float64(f.Number(0, 40) * 1000)
		}
	default:
		sub[submission.FieldHourlyRate1099] = money(f.Float64Range(120, 300))
		if f.Bool() {
			sub[submission.FieldOTRateMultiplier] = float64(f.Number(4, 8)) / 4
		}
	}

	stipend := f.RandomString(submission.CallStipendTypes)
	sub[submission.FieldCallStipendType] = stipend
	if stipend != submission.StipendNone {
		sub[submission.FieldCallStipendAmount] = float64(f.Number(5, 150) * 10)
	}

	if f.Number(0, 4) == 0 {
		sub[submission.FieldSignOnBonus] = float64(f.Number(5, 50) * 1000)
	}
	if f.Number(0, 5) == 0 {
		sub[submission.FieldRetentionBonusTerms] = f.Sentence(8)
	}
	if f.Bool() {
		sub[submission.FieldMalpracticeCoverageType] = f.RandomString(submission.MalpracticeCoverageTypes)
	}
	if f.Number(0, 3) == 0 {
		sub[submission.FieldComments] = f.Sentence(12)
	}

	return sub
}

// corruptions each break exactly one validation rule.
var corruptions = []func(f *gofakeit.Faker, sub map[string]any){
	func(f *gofakeit.Faker, sub map[string]any) {
		sub[submission.FieldYearsExperience] = f.Number(61, 90)
	},
	func(f *gofakeit.Faker, sub map[string]any) {
		sub[submission.FieldZipCode] = f.LetterN(5)
	},
	func(_ *gofakeit.Faker, sub map[string]any) {
		sub[submission.FieldEmploymentType] = "Volunteer"
	},
	func(_ *gofakeit.Faker, sub map[string]any) {
		delete(sub, submission.FieldWorkSetting)
	},
	func(f *gofakeit.Faker, sub map[string]any) {
		sub[submission.FieldPTOWeeks] = f.Number(53, 80)
	},
	func(_ *gofakeit.Faker, sub map[string]any) {
		sub[submission.FieldCallStipendType] = submission.StipendPerDiem
		delete(sub, submission.FieldCallStipendAmount)
	},
}

// Corrupt makes sub fail validation.
func (g *Generator) Corrupt(sub map[string]any) {
	corruptions[g.faker.Number(0, len(corruptions)-1)](g.faker, sub)
}

func (g *Generator) pickEmployment() string {
	var total float64
	for _, w := range g.weights {
		total += w
	}
	r := g.faker.Float64Range(0, total)
	for i, w := range g.weights {
		if r < w {
			return g.employment[i]
		}
		r -= w
	}
	return g.employment[len(g.employment)-1]
}

func money(v float64) float64 {
	return math.Round(v*100) / 100
}

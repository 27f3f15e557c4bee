package models

import (
	"fmt"
	"strings"
)

// Domain enumerates the three record collections fed into the forecaster.
type Domain string

const (
	DomainVaccinations Domain = "vaccinations"
	DomainCaseGrowth   Domain = "cases"
	DomainTests        Domain = "tests"
)

// Domains lists every domain in feature-selection order.
var Domains = []Domain{DomainVaccinations, DomainCaseGrowth, DomainTests}

// Field is a domain-qualified numeric column.
type Field struct {
	Domain Domain
	Name   string
}

// Key returns the domain-qualified identifier used by correlation matrices.
func (f Field) Key() string {
	return string(f.Domain) + "." + f.Name
}

func (f Field) String() string { return f.Key() }

// Vaccination fields.
var (
	TotalVaccinations         = Field{DomainVaccinations, "total_vaccinations"}
	PeopleVaccinated          = Field{DomainVaccinations, "people_vaccinated"}
	PeopleFullyVaccinated     = Field{DomainVaccinations, "people_fully_vaccinated"}
	DailyVaccinations         = Field{DomainVaccinations, "daily_vaccinations"}
	VaccinationsPerHundred    = Field{DomainVaccinations, "total_vaccinations_per_hundred"}
	FullyVaccinatedPerHundred = Field{DomainVaccinations, "people_fully_vaccinated_per_hundred"}
)

// Case-growth fields.
var (
	NewDailyCases   = Field{DomainCaseGrowth, "new_daily_cases"}
	TotalCases      = Field{DomainCaseGrowth, "total_cases"}
	ActiveCases     = Field{DomainCaseGrowth, "active_cases"}
	NewDailyDeaths  = Field{DomainCaseGrowth, "new_daily_deaths"}
	TotalDeaths     = Field{DomainCaseGrowth, "total_deaths"}
	NewRecoveries   = Field{DomainCaseGrowth, "new_recoveries"}
	ReproductionNum = Field{DomainCaseGrowth, "reproduction_rate"}
)

// Test fields.
var (
	DailyTests       = Field{DomainTests, "daily_tests"}
	TotalTests       = Field{DomainTests, "total_tests"}
	PositiveTests    = Field{DomainTests, "positive_tests"}
	PositiveRate     = Field{DomainTests, "positive_rate"}
	TestsPerThousand = Field{DomainTests, "tests_per_thousand"}
	TestsPerCase     = Field{DomainTests, "tests_per_case"}
)

var catalog = map[Domain][]Field{
	DomainVaccinations: {
		TotalVaccinations,
		PeopleVaccinated,
		PeopleFullyVaccinated,
		DailyVaccinations,
		VaccinationsPerHundred,
		FullyVaccinatedPerHundred,
	},
	DomainCaseGrowth: {
		NewDailyCases,
		TotalCases,
		ActiveCases,
		NewDailyDeaths,
		TotalDeaths,
		NewRecoveries,
		ReproductionNum,
	},
	DomainTests: {
		DailyTests,
		TotalTests,
		PositiveTests,
		PositiveRate,
		TestsPerThousand,
		TestsPerCase,
	},
}

// Catalog returns the fields of a domain in enumeration order. The returned slice is a copy.
func Catalog(domain Domain) []Field {
	return append([]Field(nil), catalog[domain]...)
}

// AllFields returns every catalog field, vaccinations first, then case growth, then tests.
func AllFields() []Field {
	out := make([]Field, 0, 24)
	for _, d := range Domains {
		out = append(out, catalog[d]...)
	}
	return out
}

// Known reports whether f belongs to its domain's catalog.
func Known(f Field) bool {
	for _, c := range catalog[f.Domain] {
		if c == f {
			return true
		}
	}
	return false
}

// LookupField resolves a domain-qualified key such as "cases.new_daily_cases".
func LookupField(key string) (Field, error) {
	domain, name, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok {
		return Field{}, fmt.Errorf("field %q is not domain-qualified", key)
	}
	f := Field{Domain: Domain(strings.ToLower(domain)), Name: strings.ToLower(name)}
	if !Known(f) {
		return Field{}, fmt.Errorf("unknown field %q", key)
	}
	return f, nil
}

// LookupColumn resolves a bare column name within one domain.
func LookupColumn(domain Domain, name string) (Field, bool) {
	f := Field{Domain: domain, Name: strings.ToLower(strings.TrimSpace(name))}
	return f, Known(f)
}

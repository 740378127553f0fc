package domain

import (
	"time"
)

// NullFloat is a float64 that distinguishes a missing CSV cell from a
// reported zero. Cleaning decides how missing values are filled; until
// then the two must not be conflated.
type NullFloat struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Float returns a NullFloat holding v.
func Float(v float64) NullFloat {
	return NullFloat{Value: v, Valid: true}
}

// Float64 returns the value, or 0 when the cell was missing.
func (n NullFloat) Float64() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

// Or returns the value, or fallback when the cell was missing.
func (n NullFloat) Or(fallback float64) float64 {
	if !n.Valid {
		return fallback
	}
	return n.Value
}

// Record represents a single location's reported metrics for one day.
// This is the primary data structure for OWID dataset rows.
type Record struct {
	ISOCode   string    `json:"iso_code" validate:"required"`
	Continent string    `json:"continent"`
	Location  string    `json:"location" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`

	TotalCases       NullFloat `json:"total_cases"`
	NewCases         NullFloat `json:"new_cases"`
	NewCasesSmoothed NullFloat `json:"new_cases_smoothed"`

	TotalDeaths       NullFloat `json:"total_deaths"`
	NewDeaths         NullFloat `json:"new_deaths"`
	NewDeathsSmoothed NullFloat `json:"new_deaths_smoothed"`

	TotalVaccinations     NullFloat `json:"total_vaccinations"`
	PeopleVaccinated      NullFloat `json:"people_vaccinated"`
	PeopleFullyVaccinated NullFloat `json:"people_fully_vaccinated"`

	StringencyIndex NullFloat `json:"stringency_index"`
	Population      NullFloat `json:"population"`
	MedianAge       NullFloat `json:"median_age"`

	// Derived metrics, populated by the cleaner after fills.
	CaseFatalityRate          float64 `json:"case_fatality_rate"`
	VaccinationRatePerHundred float64 `json:"vaccination_rate_per_hundred"`
	FullyVaccinatedPerHundred float64 `json:"fully_vaccinated_per_hundred"`
	TotalCasesPerMillion      float64 `json:"total_cases_per_million"`
	TotalDeathsPerMillion     float64 `json:"total_deaths_per_million"`
}

// IsAggregate reports whether the row is an OWID aggregate (World,
// continents, income groups). Aggregates carry no continent value.
func (r *Record) IsAggregate() bool {
	return r.Continent == ""
}

// Dataset holds every parsed record, sorted by (location, date).
type Dataset struct {
	Records []Record `json:"records"`
	Source  string   `json:"source,omitempty"`
}

// Countries returns the rows belonging to specific countries, in input
// order. OWID aggregate rows are excluded.
func (d *Dataset) Countries() []Record {
	out := make([]Record, 0, len(d.Records))
	for _, r := range d.Records {
		if !r.IsAggregate() {
			out = append(out, r)
		}
	}
	return out
}

// LocationRows returns the rows for one location, in date order.
func (d *Dataset) LocationRows(location string) []Record {
	var out []Record
	for _, r := range d.Records {
		if r.Location == location {
			out = append(out, r)
		}
	}
	return out
}

// Locations returns the distinct location names in first-seen order.
func (d *Dataset) Locations() []string {
	seen := make(map[string]struct{}, 256)
	var out []string
	for _, r := range d.Records {
		if _, ok := seen[r.Location]; ok {
			continue
		}
		seen[r.Location] = struct{}{}
		out = append(out, r.Location)
	}
	return out
}

// DateRange returns the earliest and latest observation dates. The
// second return is false for an empty dataset.
func (d *Dataset) DateRange() (time.Time, time.Time, bool) {
	if len(d.Records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	min, max := d.Records[0].Date, d.Records[0].Date
	for _, r := range d.Records[1:] {
		if r.Date.Before(min) {
			min = r.Date
		}
		if r.Date.After(max) {
			max = r.Date
		}
	}
	return min, max, true
}

package dataset

import (
	"math"

	"covidcli/pkg/contracts/domain"
)

// CleanStats counts the work one Clean call performed.
type CleanStats struct {
	RowsIn                int
	CountryRows           int
	AggregateRows         int
	DailyCellsFilled      int
	CumulativeCellsFilled int
}

// CleanResult is the filled country view plus the untouched aggregate
// rows. Aggregates (World, continents, income groups) keep their raw
// NULLs so the trend extraction can tell reported from filled values.
type CleanResult struct {
	Countries  []domain.Record
	Aggregates []domain.Record
	Stats      CleanStats
}

// Cleaner applies the fill and derivation rules to a parsed dataset.
type Cleaner struct{}

// NewCleaner creates a cleaner.
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// Clean splits the dataset into the country view and the aggregates,
// fills missing values in the country view and computes the derived
// rates.
//
// Daily metrics fill NULL with zero. Cumulative metrics carry the last
// known value per location forward, then zero what is left (leading
// gaps). Derived rates divide after the fills, with NaN and infinities
// coerced to 0.
func (c *Cleaner) Clean(ds *domain.Dataset) *CleanResult {
	res := &CleanResult{}
	if ds == nil {
		return res
	}
	res.Stats.RowsIn = len(ds.Records)

	// Fills depend on (location, date) order; sort a copy so the raw
	// dataset keeps its parse-time state for profiling.
	records := make([]domain.Record, len(ds.Records))
	copy(records, ds.Records)
	sortRecords(records)

	countries := make([]domain.Record, 0, len(records))
	aggregates := make([]domain.Record, 0, 64)
	for _, r := range records {
		if r.IsAggregate() {
			aggregates = append(aggregates, r)
			continue
		}
		countries = append(countries, r)
	}

	c.fillDaily(countries, &res.Stats)
	c.fillCumulative(countries, &res.Stats)
	c.derive(countries)

	res.Countries = countries
	res.Aggregates = aggregates
	res.Stats.CountryRows = len(countries)
	res.Stats.AggregateRows = len(aggregates)
	return res
}

// fillDaily zero-fills the daily metrics. A country that reported
// nothing on a day is treated as having reported zero.
func (c *Cleaner) fillDaily(records []domain.Record, stats *CleanStats) {
	for i := range records {
		for _, cell := range []*domain.NullFloat{
			&records[i].NewCases,
			&records[i].NewDeaths,
			&records[i].NewCasesSmoothed,
			&records[i].NewDeathsSmoothed,
		} {
			if !cell.Valid {
				*cell = domain.Float(0)
				stats.DailyCellsFilled++
			}
		}
	}
}

// cumulativeCells returns the cumulative metric cells of a record, in a
// fixed order so the forward-fill state can be tracked positionally.
func cumulativeCells(r *domain.Record) [5]*domain.NullFloat {
	return [5]*domain.NullFloat{
		&r.TotalCases,
		&r.TotalDeaths,
		&r.TotalVaccinations,
		&r.PeopleVaccinated,
		&r.PeopleFullyVaccinated,
	}
}

// fillCumulative forward-fills the cumulative metrics per location and
// zeroes the leading gaps. Records must be sorted by (location, date).
func (c *Cleaner) fillCumulative(records []domain.Record, stats *CleanStats) {
	var location string
	var last [5]domain.NullFloat

	for i := range records {
		if records[i].Location != location {
			location = records[i].Location
			last = [5]domain.NullFloat{}
		}

		for j, cell := range cumulativeCells(&records[i]) {
			if cell.Valid {
				last[j] = *cell
				continue
			}
			if last[j].Valid {
				*cell = last[j]
			} else {
				*cell = domain.Float(0)
			}
			stats.CumulativeCellsFilled++
		}
	}
}

// derive computes the rate metrics from the filled cells.
func (c *Cleaner) derive(records []domain.Record) {
	for i := range records {
		r := &records[i]
		r.CaseFatalityRate = safeRate(r.TotalDeaths.Float64(), r.TotalCases.Float64(), 100)
		r.VaccinationRatePerHundred = safeRate(r.PeopleVaccinated.Float64(), r.Population.Float64(), 100)
		r.FullyVaccinatedPerHundred = safeRate(r.PeopleFullyVaccinated.Float64(), r.Population.Float64(), 100)
		r.TotalCasesPerMillion = safeRate(r.TotalCases.Float64(), r.Population.Float64(), 1e6)
		r.TotalDeathsPerMillion = safeRate(r.TotalDeaths.Float64(), r.Population.Float64(), 1e6)
	}
}

// safeRate computes num/den*scale with NaN and infinities coerced to 0,
// so zero totals and missing populations never poison the artifacts.
func safeRate(num, den, scale float64) float64 {
	v := num / den * scale
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

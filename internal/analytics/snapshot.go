package analytics

import (
	"sort"

	"covidcli/pkg/contracts/domain"
)

// LatestSnapshot reduces the country view to one row per location, the
// row with the maximum date, sorted by location name.
func LatestSnapshot(countries []domain.Record) []domain.LocationSnapshot {
	latest := make(map[string]domain.Record, 256)
	for _, r := range countries {
		cur, seen := latest[r.Location]
		if !seen || r.Date.After(cur.Date) {
			latest[r.Location] = r
		}
	}

	out := make([]domain.LocationSnapshot, 0, len(latest))
	for _, r := range latest {
		out = append(out, snapshotOf(r))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Location < out[j].Location
	})
	return out
}

func snapshotOf(r domain.Record) domain.LocationSnapshot {
	return domain.LocationSnapshot{
		ISOCode:   r.ISOCode,
		Continent: r.Continent,
		Location:  r.Location,
		Date:      r.Date,

		TotalCases:            r.TotalCases.Float64(),
		TotalDeaths:           r.TotalDeaths.Float64(),
		NewCases:              r.NewCases.Float64(),
		NewDeaths:             r.NewDeaths.Float64(),
		NewCasesSmoothed:      r.NewCasesSmoothed.Float64(),
		NewDeathsSmoothed:     r.NewDeathsSmoothed.Float64(),
		TotalVaccinations:     r.TotalVaccinations.Float64(),
		PeopleVaccinated:      r.PeopleVaccinated.Float64(),
		PeopleFullyVaccinated: r.PeopleFullyVaccinated.Float64(),

		CaseFatalityRate:          r.CaseFatalityRate,
		VaccinationRatePerHundred: r.VaccinationRatePerHundred,
		FullyVaccinatedPerHundred: r.FullyVaccinatedPerHundred,
		TotalCasesPerMillion:      r.TotalCasesPerMillion,
		TotalDeathsPerMillion:     r.TotalDeathsPerMillion,

		// Demographics keep their NULL-ness; the correlation filter
		// and chart tooltips need to tell unreported from zero.
		Population: r.Population,
		MedianAge:  r.MedianAge,
	}
}

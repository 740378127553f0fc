package analytics

import (
	"sort"
	"time"

	"covidcli/internal/dataset"
	"covidcli/pkg/contracts/domain"
)

// Profile inventories a raw dataset before cleaning: row and location
// counts, date coverage, and how many values each consumed column is
// missing. Running it on a cleaned view is pointless since the fills
// erase exactly what it measures.
func Profile(ds *domain.Dataset) *domain.DatasetProfile {
	p := &domain.DatasetProfile{GeneratedAt: time.Now().UTC()}
	if ds == nil || len(ds.Records) == 0 {
		return p
	}

	p.RowCount = len(ds.Records)
	p.FirstDate, p.LastDate, _ = ds.DateRange()

	locations := make(map[string]struct{}, 256)
	missing := make(map[string]int, len(nullColumns)+1)

	for i := range ds.Records {
		r := &ds.Records[i]
		locations[r.Location] = struct{}{}
		if r.IsAggregate() {
			p.AggregateRows++
			missing[dataset.ColContinent]++
		}
		for _, col := range nullColumns {
			if !col.value(r).Valid {
				missing[col.name]++
			}
		}
	}
	p.LocationCount = len(locations)

	for name, count := range missing {
		if count == 0 {
			continue
		}
		p.Missing = append(p.Missing, domain.ColumnMissing{Column: name, Missing: count})
	}
	sort.Slice(p.Missing, func(i, j int) bool {
		if p.Missing[i].Missing != p.Missing[j].Missing {
			return p.Missing[i].Missing > p.Missing[j].Missing
		}
		return p.Missing[i].Column < p.Missing[j].Column
	})
	return p
}

var nullColumns = []struct {
	name  string
	value func(*domain.Record) domain.NullFloat
}{
	{dataset.ColTotalCases, func(r *domain.Record) domain.NullFloat { return r.TotalCases }},
	{dataset.ColNewCases, func(r *domain.Record) domain.NullFloat { return r.NewCases }},
	{dataset.ColNewCasesSmoothed, func(r *domain.Record) domain.NullFloat { return r.NewCasesSmoothed }},
	{dataset.ColTotalDeaths, func(r *domain.Record) domain.NullFloat { return r.TotalDeaths }},
	{dataset.ColNewDeaths, func(r *domain.Record) domain.NullFloat { return r.NewDeaths }},
	{dataset.ColNewDeathsSmoothed, func(r *domain.Record) domain.NullFloat { return r.NewDeathsSmoothed }},
	{dataset.ColTotalVaccinations, func(r *domain.Record) domain.NullFloat { return r.TotalVaccinations }},
	{dataset.ColPeopleVaccinated, func(r *domain.Record) domain.NullFloat { return r.PeopleVaccinated }},
	{dataset.ColPeopleFullyVaccinated, func(r *domain.Record) domain.NullFloat { return r.PeopleFullyVaccinated }},
	{dataset.ColStringencyIndex, func(r *domain.Record) domain.NullFloat { return r.StringencyIndex }},
	{dataset.ColPopulation, func(r *domain.Record) domain.NullFloat { return r.Population }},
	{dataset.ColMedianAge, func(r *domain.Record) domain.NullFloat { return r.MedianAge }},
}

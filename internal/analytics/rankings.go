package analytics

import (
	"sort"

	"covidcli/pkg/contracts/domain"
)

// TopN ranks the snapshot by a metric, descending, and keeps the first
// n locations. Ties break alphabetically so the order is stable across
// runs.
func TopN(snapshot []domain.LocationSnapshot, metric domain.Metric, n int) []domain.RankingEntry {
	if n <= 0 || len(snapshot) == 0 {
		return nil
	}

	entries := make([]domain.RankingEntry, 0, len(snapshot))
	for i := range snapshot {
		s := &snapshot[i]
		entries = append(entries, domain.RankingEntry{
			Location: s.Location,
			ISOCode:  s.ISOCode,
			Metric:   metric,
			Value:    s.MetricValue(metric),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Location < entries[j].Location
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Rankings builds the standard top-N tables in one pass: the four the
// report always shows plus any extra metrics the caller asks for.
func Rankings(snapshot []domain.LocationSnapshot, n int, extra ...domain.Metric) map[domain.Metric][]domain.RankingEntry {
	metrics := []domain.Metric{
		domain.MetricTotalCases,
		domain.MetricTotalDeaths,
		domain.MetricTotalCasesPerMillion,
		domain.MetricFullyVaccinatedPerHundred,
	}
	metrics = append(metrics, extra...)

	out := make(map[domain.Metric][]domain.RankingEntry, len(metrics))
	for _, m := range metrics {
		if _, done := out[m]; done {
			continue
		}
		out[m] = TopN(snapshot, m, n)
	}
	return out
}

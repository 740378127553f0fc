package analytics

import (
	"fmt"
	"time"

	"covidcli/pkg/contracts/domain"
)

// furtherWork closes every generated report with the same follow-up
// suggestions.
var furtherWork = []string{
	"Analyzing specific waves or periods of the pandemic.",
	"Investigating the impact of specific policy interventions.",
	"Building predictive models for future trends.",
	"Deeper dives into specific country data and local factors.",
}

// BuildInsights condenses an analysis run into headline numbers and the
// narrative observations of the summary report. Any of the inputs may
// be empty; observations fall back to their generic phrasing when the
// numbers backing them are unavailable.
func BuildInsights(
	trends []domain.GlobalTrendPoint,
	snapshot []domain.LocationSnapshot,
	rankings map[domain.Metric][]domain.RankingEntry,
	corr *domain.CorrelationSnapshot,
) *domain.Insights {
	ins := &domain.Insights{
		GeneratedAt: time.Now().UTC(),
		FurtherWork: append([]string(nil), furtherWork...),
	}

	if len(trends) > 0 {
		last := trends[len(trends)-1]
		ins.GlobalTotalCases = last.TotalCases
		ins.GlobalTotalDeaths = last.TotalDeaths
		ins.GlobalTotalVaccinations = last.TotalVaccinations
		if last.TotalCases > 0 {
			ins.GlobalCaseFatalityRate = last.TotalDeaths / last.TotalCases * 100
		}
		for _, pt := range trends {
			if pt.NewCases > ins.PeakDailyCases {
				ins.PeakDailyCases = pt.NewCases
				ins.PeakDailyCasesDate = pt.Date
			}
		}
	}

	for _, s := range snapshot {
		if s.Date.After(ins.SnapshotDate) {
			ins.SnapshotDate = s.Date
		}
	}

	ins.MostCases = firstRanked(rankings, domain.MetricTotalCases)
	ins.MostDeaths = firstRanked(rankings, domain.MetricTotalDeaths)
	ins.MostVaccinated = firstRanked(rankings, domain.MetricFullyVaccinatedPerHundred)

	ins.Observations = []string{
		globalTrendsObservation(ins),
		countryComparisonObservation(ins),
		"Geographical impact: the choropleth maps highlight the uneven distribution of cases, deaths, and vaccination progress across the globe.",
		correlationObservation(corr),
	}
	return ins
}

func firstRanked(rankings map[domain.Metric][]domain.RankingEntry, m domain.Metric) *domain.RankingEntry {
	entries := rankings[m]
	if len(entries) == 0 {
		return nil
	}
	top := entries[0]
	return &top
}

func globalTrendsObservation(ins *domain.Insights) string {
	if ins.PeakDailyCases <= 0 {
		return "Global trends: observe the peaks and troughs in daily new cases and deaths, and the steady increase in vaccination efforts."
	}
	return fmt.Sprintf(
		"Global trends: daily new cases peaked at %s on %s, while cumulative vaccinations climbed steadily to %s doses.",
		humanizeCount(ins.PeakDailyCases),
		ins.PeakDailyCasesDate.Format("2006-01-02"),
		humanizeCount(ins.GlobalTotalVaccinations),
	)
}

func countryComparisonObservation(ins *domain.Insights) string {
	if ins.MostCases == nil || ins.MostDeaths == nil {
		return "Country comparison: identify countries most affected by total cases and deaths, and compare daily trends in selected regions."
	}
	return fmt.Sprintf(
		"Country comparison: %s reports the most total cases (%s) and %s the most total deaths (%s).",
		ins.MostCases.Location, humanizeCount(ins.MostCases.Value),
		ins.MostDeaths.Location, humanizeCount(ins.MostDeaths.Value),
	)
}

func correlationObservation(corr *domain.CorrelationSnapshot) string {
	if corr == nil || len(corr.Points) < 2 {
		return "Correlations: scatter plots offer initial insights into relationships, such as the expected link between median age and case fatality rate."
	}
	return fmt.Sprintf(
		"Correlations: median age and case fatality rate show the expected link (r=%.2f), while the relationship between government stringency and new cases is less straightforward (r=%.2f).",
		corr.MedianAgeCFRR, corr.StringencyNewCasesR,
	)
}

// humanizeCount renders large counts the way the report narrates them.
func humanizeCount(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1f billion", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1f million", v/1e6)
	case v >= 1e4:
		return fmt.Sprintf("%.1f thousand", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

package charts

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"covidcli/pkg/contracts/domain"
)

const (
	titleTopCases      = "Top 10 Countries by Total Confirmed COVID-19 Cases"
	titleTopDeaths     = "Top 10 Countries by Total COVID-19 Deaths"
	titleTopVaccinated = "Top 10 Countries by Fully Vaccinated Population (%)"
)

// TopTotalCases builds the total-cases ranking bar chart
func (g *Generator) TopTotalCases(rankings map[domain.Metric][]domain.RankingEntry) *charts.Bar {
	return g.rankingBar(titleTopCases, "Total Cases", rankings[domain.MetricTotalCases])
}

// TopTotalDeaths builds the total-deaths ranking bar chart
func (g *Generator) TopTotalDeaths(rankings map[domain.Metric][]domain.RankingEntry) *charts.Bar {
	return g.rankingBar(titleTopDeaths, "Total Deaths", rankings[domain.MetricTotalDeaths])
}

// TopFullyVaccinated builds the vaccination ranking bar chart
func (g *Generator) TopFullyVaccinated(rankings map[domain.Metric][]domain.RankingEntry) *charts.Bar {
	return g.rankingBar(titleTopVaccinated, "% Fully Vaccinated",
		rankings[domain.MetricFullyVaccinatedPerHundred])
}

// rankingBar renders one top-N block as a bar chart, largest first
func (g *Generator) rankingBar(title, series string, entries []domain.RankingEntry) *charts.Bar {
	locations := make([]string, 0, len(entries))
	for _, e := range entries {
		locations = append(locations, e.Location)
	}

	bar := charts.NewBar()
	options := g.itemBase(title)
	options = append(options,
		charts.WithXAxisOpts(opts.XAxis{Name: "Country", AxisLabel: &opts.AxisLabel{Rotate: 30}}),
		charts.WithYAxisOpts(opts.YAxis{Name: series}),
	)
	bar.SetGlobalOptions(options...)
	bar.SetXAxis(locations).AddSeries(series, barData(entries))
	return bar
}

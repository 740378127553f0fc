package charts

import (
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"covidcli/pkg/contracts/domain"
)

const titleContinentShare = "Share of Global Confirmed Cases by Continent"

// ContinentCasesShare builds a pie of each continent's share of the
// worldwide case total, computed from the latest snapshot.
func (g *Generator) ContinentCasesShare(snapshot []domain.LocationSnapshot) *charts.Pie {
	totals := make(map[string]float64)
	for i := range snapshot {
		s := &snapshot[i]
		if s.Continent == "" {
			continue
		}
		totals[s.Continent] += s.TotalCases
	}

	continents := make([]string, 0, len(totals))
	for name := range totals {
		continents = append(continents, name)
	}
	sort.Strings(continents)

	items := make([]opts.PieData, 0, len(continents))
	for _, name := range continents {
		items = append(items, opts.PieData{Name: name, Value: round2(totals[name])})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(g.itemBase(titleContinentShare)...)
	pie.AddSeries("Total Cases", items,
		charts.WithPieChartOpts(opts.PieChart{Radius: []string{"35%", "70%"}}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}),
	)
	return pie
}

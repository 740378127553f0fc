package charts

import (
	"github.com/go-echarts/go-echarts/v2/components"
)

const titleDashboard = "COVID-19 Data Analysis Dashboard"

// Dashboard assembles the full catalogue on a single page, in the
// order the analysis report presents it: global trends, rankings,
// country comparison, distribution, geography, relationships.
func (g *Generator) Dashboard(in *RenderInputs) *components.Page {
	page := components.NewPage()
	page.PageTitle = titleDashboard
	page.SetLayout(components.PageFlexLayout)

	page.AddCharts(
		g.GlobalNewCases(in.Trends),
		g.GlobalNewDeaths(in.Trends),
		g.GlobalVaccinations(in.Trends),
		g.GlobalCumulative(in.Trends),
		g.TopTotalCases(in.Rankings),
		g.TopTotalDeaths(in.Rankings),
		g.TopFullyVaccinated(in.Rankings),
		g.SelectedNewCases(in.Countries),
		g.SelectedNewDeaths(in.Countries),
		g.ContinentCasesShare(in.Snapshot),
		g.MonthlyHeatmap(in.Countries, in.Snapshot),
		g.MapTotalCases(in.Snapshot),
		g.MapTotalDeaths(in.Snapshot),
		g.MapVaccinationRate(in.Snapshot),
		g.ScatterStringency(in.Correlations),
		g.ScatterAgeCFR(in.Correlations),
		g.AnimatedTopCases(in.Countries),
	)
	return page
}

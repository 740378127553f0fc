package charts

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"covidcli/pkg/contracts/domain"
)

// Chart titles follow the published analysis report.
const (
	titleGlobalNewCases     = "Global Daily New Cases (7-Day Rolling Average)"
	titleGlobalNewDeaths    = "Global Daily New Deaths (7-Day Rolling Average)"
	titleGlobalVaccinations = "Global Total Vaccinations Over Time"
	titleGlobalCumulative   = "Global Cumulative Cases and Deaths"
)

// GlobalNewCases plots the smoothed worldwide daily case curve
func (g *Generator) GlobalNewCases(trends []domain.GlobalTrendPoint) *charts.Line {
	values := make([]float64, 0, len(trends))
	for _, pt := range trends {
		values = append(values, pt.NewCasesAvg7)
	}
	return g.trendLine(titleGlobalNewCases, "Number of Cases", "7-Day Avg New Cases", trends, values)
}

// GlobalNewDeaths plots the smoothed worldwide daily death curve
func (g *Generator) GlobalNewDeaths(trends []domain.GlobalTrendPoint) *charts.Line {
	values := make([]float64, 0, len(trends))
	for _, pt := range trends {
		values = append(values, pt.NewDeathsAvg7)
	}
	return g.trendLine(titleGlobalNewDeaths, "Number of Deaths", "7-Day Avg New Deaths", trends, values)
}

// GlobalVaccinations plots cumulative vaccine doses administered
func (g *Generator) GlobalVaccinations(trends []domain.GlobalTrendPoint) *charts.Line {
	values := make([]float64, 0, len(trends))
	for _, pt := range trends {
		values = append(values, pt.TotalVaccinations)
	}
	return g.trendLine(titleGlobalVaccinations, "Total Doses", "Total Vaccine Doses Administered", trends, values)
}

// GlobalCumulative plots total cases against total deaths on separate
// axes; deaths run two orders of magnitude below cases.
func (g *Generator) GlobalCumulative(trends []domain.GlobalTrendPoint) *charts.Line {
	cases := make([]float64, 0, len(trends))
	deaths := make([]float64, 0, len(trends))
	for _, pt := range trends {
		cases = append(cases, pt.TotalCases)
		deaths = append(deaths, pt.TotalDeaths)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(g.lineBase(titleGlobalCumulative, "Total Cases")...)
	line.ExtendYAxis(opts.YAxis{Name: "Total Deaths", Type: "value"})

	line.SetXAxis(dateLabels(trends)).
		AddSeries("Total Cases", lineData(cases)).
		AddSeries("Total Deaths", lineData(deaths),
			charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))
	return line
}

// trendLine builds a single-series worldwide time-series chart
func (g *Generator) trendLine(title, yName, series string, trends []domain.GlobalTrendPoint, values []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(g.lineBase(title, yName)...)
	line.SetXAxis(dateLabels(trends)).
		AddSeries(series, lineData(values),
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	return line
}

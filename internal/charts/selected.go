package charts

import (
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"

	"covidcli/pkg/contracts/domain"
)

const (
	titleSelectedCases  = "Daily New Cases (7-Day Smoothed) in Selected Countries"
	titleSelectedDeaths = "Daily New Deaths (7-Day Smoothed) in Selected Countries"
)

// SelectedNewCases compares the smoothed daily case curves of the
// configured countries
func (g *Generator) SelectedNewCases(countries []domain.Record) *charts.Line {
	return g.selectedLine(titleSelectedCases, "7-Day Avg New Cases", countries,
		func(r *domain.Record) float64 { return r.NewCasesSmoothed.Float64() })
}

// SelectedNewDeaths compares the smoothed daily death curves of the
// configured countries
func (g *Generator) SelectedNewDeaths(countries []domain.Record) *charts.Line {
	return g.selectedLine(titleSelectedDeaths, "7-Day Avg New Deaths", countries,
		func(r *domain.Record) float64 { return r.NewDeathsSmoothed.Float64() })
}

// selectedLine builds one multi-series comparison chart. Every series
// shares one category axis: the sorted union of the selected countries'
// reporting dates, with gaps reading as zero.
func (g *Generator) selectedLine(title, yName string, countries []domain.Record, value func(*domain.Record) float64) *charts.Line {
	selected := make(map[string]bool, len(g.cfg.SelectedCountries))
	for _, name := range g.cfg.SelectedCountries {
		selected[name] = true
	}

	// location -> date label -> value
	byLocation := make(map[string]map[string]float64, len(selected))
	dateSet := make(map[string]struct{})
	for i := range countries {
		r := &countries[i]
		if !selected[r.Location] {
			continue
		}
		label := r.Date.Format("2006-01-02")
		dateSet[label] = struct{}{}
		series, ok := byLocation[r.Location]
		if !ok {
			series = make(map[string]float64, 1024)
			byLocation[r.Location] = series
		}
		series[label] = value(r)
	}

	dates := make([]string, 0, len(dateSet))
	for label := range dateSet {
		dates = append(dates, label)
	}
	sort.Strings(dates)

	line := charts.NewLine()
	line.SetGlobalOptions(g.lineBase(title, yName)...)
	line.SetXAxis(dates)

	// Configured order fixes series order and color assignment
	for _, location := range g.cfg.SelectedCountries {
		series, ok := byLocation[location]
		if !ok {
			continue
		}
		values := make([]float64, 0, len(dates))
		for _, label := range dates {
			values = append(values, series[label])
		}
		line.AddSeries(location, lineData(values))
	}
	return line
}

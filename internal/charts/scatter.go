package charts

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"covidcli/pkg/contracts/domain"
)

// Scatter titles follow the published analysis report; the snapshot
// date is the latest date shared by the plotted observations.
const (
	titleScatterStringency = "Stringency Index vs. New Cases (Snapshot: %s)"
	titleScatterAgeCFR     = "Median Age vs. Case Fatality Rate (Snapshot: %s)"
)

// ScatterStringency plots government stringency against daily new
// cases at the snapshot date. New cases spread across five orders of
// magnitude, so the y axis is logarithmic; bubbles are sized by
// population and one series per continent carries the color grouping.
func (g *Generator) ScatterStringency(corr *domain.CorrelationSnapshot) *charts.Scatter {
	title := fmt.Sprintf(titleScatterStringency, corr.Date.Format("2006-01-02"))
	sc := g.scatterBase(title, "Government Stringency Index", "New Cases", "log")
	g.addContinentSeries(sc, corr.Points, func(p *domain.CorrelationPoint) (float64, float64) {
		return p.StringencyIndex, p.NewCases
	})
	return sc
}

// ScatterAgeCFR plots median age against the case fatality rate at the
// snapshot date, bubbles sized by population, colored by continent.
func (g *Generator) ScatterAgeCFR(corr *domain.CorrelationSnapshot) *charts.Scatter {
	title := fmt.Sprintf(titleScatterAgeCFR, corr.Date.Format("2006-01-02"))
	sc := g.scatterBase(title, "Median Age", "Case Fatality Rate (%)", "value")
	g.addContinentSeries(sc, corr.Points, func(p *domain.CorrelationPoint) (float64, float64) {
		return p.MedianAge, p.CaseFatalityRate
	})
	return sc
}

func (g *Generator) scatterBase(title, xName, yName, yType string) *charts.Scatter {
	sc := charts.NewScatter()
	options := g.itemBase(title)
	options = append(options,
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, Type: yType}),
	)
	sc.SetGlobalOptions(options...)
	return sc
}

// addContinentSeries groups points into one scatter series per
// continent so the legend doubles as a continent color key.
func (g *Generator) addContinentSeries(sc *charts.Scatter, points []domain.CorrelationPoint, xy func(*domain.CorrelationPoint) (float64, float64)) {
	byContinent := make(map[string][]opts.ScatterData)
	for i := range points {
		p := &points[i]
		x, y := xy(p)
		byContinent[p.Continent] = append(byContinent[p.Continent], opts.ScatterData{
			Name:       p.Location,
			Value:      []interface{}{round2(x), round2(y)},
			Symbol:     "circle",
			SymbolSize: bubbleSize(p.Population),
		})
	}

	continents := make([]string, 0, len(byContinent))
	for name := range byContinent {
		continents = append(continents, name)
	}
	sort.Strings(continents)

	for _, name := range continents {
		sc.AddSeries(name, byContinent[name])
	}
}

// bubbleSize maps population to a readable marker diameter. Square
// root keeps area proportional to population; the clamp keeps small
// islands visible and giants inside the canvas.
func bubbleSize(population float64) int {
	if population <= 0 {
		return 4
	}
	size := int(math.Sqrt(population) / 600)
	if size < 4 {
		size = 4
	}
	if size > 60 {
		size = 60
	}
	return size
}

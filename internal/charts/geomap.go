package charts

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"covidcli/pkg/contracts/domain"
)

// Choropleth titles follow the published analysis report.
const (
	titleMapTotalCases  = "World Map of Total Confirmed COVID-19 Cases (Latest Data)"
	titleMapTotalDeaths = "World Map of Total COVID-19 Deaths (Latest Data)"
	titleMapVaccinated  = "World Map of People Vaccinated against COVID-19 (%) (Latest Data)"
)

// MapTotalCases shades countries by cumulative confirmed cases.
func (g *Generator) MapTotalCases(snapshot []domain.LocationSnapshot) *charts.Map {
	return g.choropleth(titleMapTotalCases, "Total Cases", snapshot, heatRamp,
		func(s *domain.LocationSnapshot) float64 { return s.TotalCases })
}

// MapTotalDeaths shades countries by cumulative deaths.
func (g *Generator) MapTotalDeaths(snapshot []domain.LocationSnapshot) *charts.Map {
	return g.choropleth(titleMapTotalDeaths, "Total Deaths", snapshot, heatRamp,
		func(s *domain.LocationSnapshot) float64 { return s.TotalDeaths })
}

// MapVaccinationRate shades countries by the share of people with at
// least one vaccine dose.
func (g *Generator) MapVaccinationRate(snapshot []domain.LocationSnapshot) *charts.Map {
	return g.choropleth(titleMapVaccinated, "% Vaccinated", snapshot, greenRamp,
		func(s *domain.LocationSnapshot) float64 { return s.VaccinationRatePerHundred })
}

// choropleth builds one world map. Snapshot rows are country rows by
// construction, so no aggregate can leak onto the map; locations are
// translated to the map asset's country names.
func (g *Generator) choropleth(title, series string, snapshot []domain.LocationSnapshot, ramp []string, value func(*domain.LocationSnapshot) float64) *charts.Map {
	var maxValue float64
	data := make([]opts.MapData, 0, len(snapshot))
	for i := range snapshot {
		s := &snapshot[i]
		v := round2(value(s))
		if v > maxValue {
			maxValue = v
		}
		data = append(data, opts.MapData{Name: mapName(s.Location), Value: v})
	}

	m := charts.NewMap()
	m.RegisterMapType("world")
	options := g.itemBase(title)
	options = append(options,
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxValue),
			Text:       []string{"High", "Low"},
			InRange:    &opts.VisualMapInRange{Color: ramp},
		}),
	)
	m.SetGlobalOptions(options...)
	m.AddSeries(series, data)
	return m
}

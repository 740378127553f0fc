package charts

import (
	"fmt"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"covidcli/pkg/contracts/domain"
)

const titleMonthlyHeatmap = "Monthly New Cases by Country (Top %d by Total Cases)"

func titleHeatmap(n int) string {
	return fmt.Sprintf(titleMonthlyHeatmap, n)
}

// MonthlyHeatmap builds the month-by-country heatmap of new cases. The
// countries shown are the configured number with the highest total
// cases in the snapshot; each cell sums one country's reported daily
// new cases over one calendar month.
func (g *Generator) MonthlyHeatmap(countries []domain.Record, snapshot []domain.LocationSnapshot) *charts.HeatMap {
	top := topLocations(snapshot, g.cfg.HeatmapCountries)
	rank := make(map[string]int, len(top))
	for i, name := range top {
		rank[name] = i
	}

	// month label -> location -> summed new cases
	cells := make(map[string]map[string]float64)
	monthSet := make(map[string]struct{})
	for i := range countries {
		r := &countries[i]
		if _, ok := rank[r.Location]; !ok {
			continue
		}
		month := monthKey(r.Date)
		monthSet[month] = struct{}{}
		byLoc, ok := cells[month]
		if !ok {
			byLoc = make(map[string]float64, len(top))
			cells[month] = byLoc
		}
		byLoc[r.Location] += r.NewCases.Float64()
	}

	months := make([]string, 0, len(monthSet))
	for m := range monthSet {
		months = append(months, m)
	}
	sort.Strings(months)

	var maxCell float64
	data := make([]opts.HeatMapData, 0, len(months)*len(top))
	for x, month := range months {
		for _, location := range top {
			v := round2(cells[month][location])
			if v > maxCell {
				maxCell = v
			}
			data = append(data, opts.HeatMapData{
				Value: [3]interface{}{x, rank[location], v},
			})
		}
	}

	title := titleHeatmap(len(top))
	hm := charts.NewHeatMap()
	options := g.itemBase(title)
	options = append(options,
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			Data:      months,
			AxisLabel: &opts.AxisLabel{Rotate: 45},
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:      "category",
			Data:      top,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxCell),
			InRange:    &opts.VisualMapInRange{Color: heatRamp},
		}),
	)
	hm.SetGlobalOptions(options...)
	hm.SetXAxis(months).AddSeries("New Cases", data)
	return hm
}

// topLocations returns the n snapshot locations with the most total
// cases, highest first.
func topLocations(snapshot []domain.LocationSnapshot, n int) []string {
	entries := make([]domain.LocationSnapshot, len(snapshot))
	copy(entries, snapshot)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalCases != entries[j].TotalCases {
			return entries[i].TotalCases > entries[j].TotalCases
		}
		return entries[i].Location < entries[j].Location
	})
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]string, 0, n)
	for _, e := range entries[:n] {
		out = append(out, e.Location)
	}
	return out
}

package charts

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"covidcli/pkg/contracts/domain"
)

const titleAnimatedTopCases = "Top %d Countries by Total Cases Over Time"

// raceFrame is one month of the animated ranking, locations lowest
// value first so the horizontal bar chart reads top-down.
type raceFrame struct {
	Label     string    `json:"label"`
	Locations []string  `json:"locations"`
	Values    []float64 `json:"values"`
}

// AnimatedTopCases builds the monthly top-N total-cases bar race. The
// chart renders the final month statically; injected script cycles
// through the frames, restyling the chart in place, so the HTML stays
// self-contained.
func (g *Generator) AnimatedTopCases(countries []domain.Record) *charts.Bar {
	frames := monthlyTopFrames(countries, g.cfg.TopN)
	title := fmt.Sprintf(titleAnimatedTopCases, g.cfg.TopN)

	bar := charts.NewBar()
	options := g.itemBase(title)
	options = append(options,
		charts.WithXAxisOpts(opts.XAxis{Name: "Total Cases"}),
		charts.WithYAxisOpts(opts.YAxis{Name: ""}),
	)
	bar.SetGlobalOptions(options...)
	bar.XYReversal()

	if len(frames) > 0 {
		last := frames[len(frames)-1]
		items := make([]opts.BarData, 0, len(last.Values))
		for _, v := range last.Values {
			items = append(items, opts.BarData{Value: v})
		}
		bar.SetXAxis(last.Locations).AddSeries("Total Cases", items)
		bar.AddJSFuncs(raceScript(bar.ChartID, title, frames))
	}
	return bar
}

// monthlyTopFrames reduces the country view to one frame per calendar
// month: each location's last reported cumulative total that month,
// ranked, top n kept.
func monthlyTopFrames(countries []domain.Record, n int) []raceFrame {
	// month -> location -> last total_cases seen that month. Records
	// arrive sorted by (location, date), so a plain overwrite keeps
	// the month's final observation.
	months := make(map[string]map[string]float64)
	for i := range countries {
		r := &countries[i]
		month := monthKey(r.Date)
		byLoc, ok := months[month]
		if !ok {
			byLoc = make(map[string]float64, 256)
			months[month] = byLoc
		}
		byLoc[r.Location] = r.TotalCases.Float64()
	}

	labels := make([]string, 0, len(months))
	for m := range months {
		labels = append(labels, m)
	}
	sort.Strings(labels)

	type ranked struct {
		location string
		value    float64
	}
	frames := make([]raceFrame, 0, len(labels))
	for _, label := range labels {
		byLoc := months[label]
		entries := make([]ranked, 0, len(byLoc))
		for location, value := range byLoc {
			entries = append(entries, ranked{location, value})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].value != entries[j].value {
				return entries[i].value > entries[j].value
			}
			return entries[i].location < entries[j].location
		})
		if len(entries) > n {
			entries = entries[:n]
		}
		// Reverse into ascending order: echarts draws the first
		// category at the bottom of a reversed bar chart.
		frame := raceFrame{Label: label}
		for i := len(entries) - 1; i >= 0; i-- {
			frame.Locations = append(frame.Locations, entries[i].location)
			frame.Values = append(frame.Values, round2(entries[i].value))
		}
		frames = append(frames, frame)
	}
	return frames
}

// raceScript renders the frame player. It references the chart
// instance variable go-echarts declares for this chart ID.
func raceScript(chartID, title string, frames []raceFrame) string {
	payload, err := json.Marshal(frames)
	if err != nil {
		return ""
	}
	titleJSON, _ := json.Marshal(title)
	return fmt.Sprintf(`(function () {
    var frames = %s;
    var chart = goecharts_%s;
    var idx = 0;
    setInterval(function () {
        var f = frames[idx %% frames.length];
        chart.setOption({
            title: {text: %s + " (" + f.label + ")"},
            yAxis: {data: f.locations},
            series: [{data: f.values}]
        });
        idx++;
    }, 1200);
})();`, payload, chartID, titleJSON)
}

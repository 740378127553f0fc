package charts

import (
	"log/slog"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"covidcli/internal/config"
	"covidcli/pkg/contracts/domain"
)

// palette is the shared series color cycle applied to every chart.
var palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// heat ramp for choropleths and the monthly heatmap, low to high
var heatRamp = []string{"#50a3ba", "#eac736", "#d94e5d"}

// vaccination ramp, low to high
var greenRamp = []string{"#f1f7ed", "#a3d9a5", "#0b6e4f"}

// Generator builds the chart catalogue. One Generator serves one run;
// it carries the chart configuration and the output layout.
type Generator struct {
	cfg    config.ChartsConfig
	paths  *config.Paths
	logger *slog.Logger

	progress func(done, total int)
}

// NewGenerator creates a chart generator
func NewGenerator(cfg config.ChartsConfig, paths *config.Paths, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		cfg:    cfg,
		paths:  paths,
		logger: logger,
	}
}

// OnProgress registers a callback invoked after each rendered chart
func (g *Generator) OnProgress(fn func(done, total int)) {
	g.progress = fn
}

// lineBase returns the global options shared by time-series charts:
// sized canvas, titles, axis tooltip, legend, zoom slider, palette.
func (g *Generator) lineBase(title, yName string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     g.cfg.Width,
			Height:    g.cfg.Height,
			Theme:     g.cfg.Theme,
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithColorsOpts(opts.Colors(palette)),
	}
}

// itemBase returns the global options shared by categorical charts
// (bars, pies, maps, scatters): item-triggered tooltip, no zoom.
func (g *Generator) itemBase(title string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     g.cfg.Width,
			Height:    g.cfg.Height,
			Theme:     g.cfg.Theme,
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithColorsOpts(opts.Colors(palette)),
	}
}

// lineData converts a value series to line points, rounded to two
// places to keep the rendered HTML compact
func lineData(values []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(values))
	for _, v := range values {
		items = append(items, opts.LineData{Value: round2(v)})
	}
	return items
}

// barData converts ranking values to bar points
func barData(entries []domain.RankingEntry) []opts.BarData {
	items := make([]opts.BarData, 0, len(entries))
	for _, e := range entries {
		items = append(items, opts.BarData{Value: round2(e.Value)})
	}
	return items
}

// dateLabels renders trend dates as category labels
func dateLabels(trends []domain.GlobalTrendPoint) []string {
	labels := make([]string, 0, len(trends))
	for _, pt := range trends {
		labels = append(labels, pt.Date.Format("2006-01-02"))
	}
	return labels
}

// monthKey renders a date as its heatmap/race frame label
func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package charts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"covidcli/internal/exporter"
	"covidcli/internal/infrastructure"
	"covidcli/pkg/contracts/domain"
)

// RenderInputs carries everything the catalogue draws from. All fields
// are read-only during rendering.
type RenderInputs struct {
	Trends       []domain.GlobalTrendPoint
	Snapshot     []domain.LocationSnapshot
	Rankings     map[domain.Metric][]domain.RankingEntry
	Countries    []domain.Record
	Correlations *domain.CorrelationSnapshot
	DatasetDate  time.Time
}

// renderable is what every go-echarts chart and page gives us back.
type renderable interface {
	Render(w io.Writer) error
}

// catalogueEntry is one chart of the fixed catalogue: its file stem,
// its kind, and the builder producing the chart plus its display title.
type catalogueEntry struct {
	name  string
	kind  domain.ChartKind
	build func(g *Generator, in *RenderInputs) (renderable, string)
}

// catalogue defines every generated chart, in report order. The
// dashboard page goes last so its entry can assume the rest exists.
var catalogue = []catalogueEntry{
	{"global_new_cases", domain.ChartKindLine, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.GlobalNewCases(in.Trends), titleGlobalNewCases
	}},
	{"global_new_deaths", domain.ChartKindLine, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.GlobalNewDeaths(in.Trends), titleGlobalNewDeaths
	}},
	{"global_vaccinations", domain.ChartKindLine, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.GlobalVaccinations(in.Trends), titleGlobalVaccinations
	}},
	{"global_cumulative", domain.ChartKindLine, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.GlobalCumulative(in.Trends), titleGlobalCumulative
	}},
	{"top_total_cases", domain.ChartKindBar, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.TopTotalCases(in.Rankings), titleTopCases
	}},
	{"top_total_deaths", domain.ChartKindBar, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.TopTotalDeaths(in.Rankings), titleTopDeaths
	}},
	{"top_fully_vaccinated", domain.ChartKindBar, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.TopFullyVaccinated(in.Rankings), titleTopVaccinated
	}},
	{"selected_new_cases", domain.ChartKindLine, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.SelectedNewCases(in.Countries), titleSelectedCases
	}},
	{"selected_new_deaths", domain.ChartKindLine, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.SelectedNewDeaths(in.Countries), titleSelectedDeaths
	}},
	{"continent_cases_share", domain.ChartKindPie, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.ContinentCasesShare(in.Snapshot), titleContinentShare
	}},
	{"monthly_heatmap", domain.ChartKindHeatmap, func(g *Generator, in *RenderInputs) (renderable, string) {
		n := g.cfg.HeatmapCountries
		if n > len(in.Snapshot) {
			n = len(in.Snapshot)
		}
		return g.MonthlyHeatmap(in.Countries, in.Snapshot), titleHeatmap(n)
	}},
	{"map_total_cases", domain.ChartKindChoropleth, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.MapTotalCases(in.Snapshot), titleMapTotalCases
	}},
	{"map_total_deaths", domain.ChartKindChoropleth, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.MapTotalDeaths(in.Snapshot), titleMapTotalDeaths
	}},
	{"map_vaccination_rate", domain.ChartKindChoropleth, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.MapVaccinationRate(in.Snapshot), titleMapVaccinated
	}},
	{"scatter_stringency", domain.ChartKindScatter, func(g *Generator, in *RenderInputs) (renderable, string) {
		chart := g.ScatterStringency(in.Correlations)
		return chart, fmt.Sprintf(titleScatterStringency, in.Correlations.Date.Format("2006-01-02"))
	}},
	{"scatter_age_cfr", domain.ChartKindScatter, func(g *Generator, in *RenderInputs) (renderable, string) {
		chart := g.ScatterAgeCFR(in.Correlations)
		return chart, fmt.Sprintf(titleScatterAgeCFR, in.Correlations.Date.Format("2006-01-02"))
	}},
	{"animated_top_cases", domain.ChartKindTimeline, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.AnimatedTopCases(in.Countries), fmt.Sprintf(titleAnimatedTopCases, g.cfg.TopN)
	}},
	{"dashboard", domain.ChartKindPage, func(g *Generator, in *RenderInputs) (renderable, string) {
		return g.Dashboard(in), titleDashboard
	}},
}

// CatalogueSize reports how many charts one full render produces.
func CatalogueSize() int {
	return len(catalogue)
}

// RenderAll renders the full catalogue to the charts directory and
// writes the artifact index. Charts render concurrently under a
// bounded group; each chart is built inside its own goroutine so no
// chart object is shared across goroutines.
func (g *Generator) RenderAll(ctx context.Context, in *RenderInputs, metrics *infrastructure.BusinessMetrics) (*domain.ChartIndex, error) {
	if in.Correlations == nil {
		in.Correlations = &domain.CorrelationSnapshot{Date: in.DatasetDate}
	}
	if err := os.MkdirAll(g.paths.ChartsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create charts directory: %w", err)
	}

	workers := g.cfg.RenderWorkers
	if workers <= 0 {
		workers = 4
	}

	artifacts := make([]domain.ChartArtifact, len(catalogue))
	var done int
	var mu sync.Mutex

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	for i, entry := range catalogue {
		grp.Go(func() error {
			if err := grpCtx.Err(); err != nil {
				return err
			}
			start := time.Now()
			chart, title := entry.build(g, in)
			htmlPath := filepath.Join(g.paths.ChartsDir, entry.name+".html")
			if err := renderToFile(chart, htmlPath); err != nil {
				return fmt.Errorf("failed to render chart %s: %w", entry.name, err)
			}
			infrastructure.RecordChartRender(grpCtx, metrics, string(entry.kind), time.Since(start), false)

			artifacts[i] = domain.ChartArtifact{
				Name:        entry.name,
				Title:       title,
				Kind:        entry.kind,
				HTMLPath:    htmlPath,
				GeneratedAt: time.Now(),
			}

			mu.Lock()
			done++
			current := done
			mu.Unlock()
			g.logger.Info("chart rendered",
				slog.String("chart", entry.name),
				slog.String("kind", string(entry.kind)),
				slog.Duration("duration", time.Since(start)))
			if g.progress != nil {
				g.progress(current, len(catalogue))
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	index := &domain.ChartIndex{
		GeneratedAt: time.Now(),
		DatasetDate: in.DatasetDate,
		Charts:      artifacts,
	}
	if err := exporter.NewJSONWriter().WriteJSON(g.paths.ChartIndexJSON, index); err != nil {
		return nil, err
	}
	return index, nil
}

// renderToFile writes one chart's self-contained HTML.
func renderToFile(chart renderable, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := chart.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadIndex reads the chart artifact index written by a prior render.
func LoadIndex(path string) (*domain.ChartIndex, error) {
	var index domain.ChartIndex
	if err := exporter.ReadJSON(path, &index); err != nil {
		return nil, err
	}
	return &index, nil
}

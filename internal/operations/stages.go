package operations

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"

	"covidcli/internal/analytics"
	"covidcli/internal/charts"
	"covidcli/internal/config"
	"covidcli/internal/dataset"
	"covidcli/internal/exporter"
	"covidcli/internal/infrastructure"
	"covidcli/pkg/contracts/domain"
)

// FetchStage downloads the OWID dataset snapshot into the raw data
// directory. When the upstream fingerprint matches the cached copy the
// download is skipped and the cached file is reused.
type FetchStage struct {
	BaseStage
	fetcher *dataset.Fetcher
	paths   *config.Paths
	logger  *slog.Logger
	options *StageOptions
}

// NewFetchStage creates the dataset download stage
func NewFetchStage(cfg *config.Config, paths *config.Paths, logger *slog.Logger, metrics *infrastructure.BusinessMetrics, options *StageOptions) *FetchStage {
	if options == nil {
		options = &StageOptions{}
	}
	if logger != nil {
		logger = logger.With(slog.String("stage", StageIDFetch))
	}

	return &FetchStage{
		BaseStage: NewBaseStage(StageIDFetch, StageNameFetch, nil),
		fetcher:   dataset.NewFetcher(cfg.Dataset, paths, logger, metrics),
		paths:     paths,
		logger:    logger,
		options:   options,
	}
}

// Execute downloads the dataset and records where it landed
func (s *FetchStage) Execute(ctx context.Context, state *OperationState) error {
	stageState := state.GetStage(s.ID())

	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting dataset fetch",
			slog.String("operation_id", state.ID))
	}

	if configBool(state, ContextKeyForceFetch) {
		// Dropping the manifest discards the fingerprint and the
		// If-Modified-Since date, so the next download runs in full.
		if err := os.Remove(s.paths.FetchManifestJSON); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("discard fetch manifest: %w", err)
		}
		s.updateProgress(state.ID, stageState, 2, "Forcing full download...")
	}

	s.updateProgress(state.ID, stageState, 5, "Contacting data source...")

	result, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("dataset fetch failed: %w", err)
	}

	state.SetContext(ContextKeyDatasetPath, result.Path)
	state.SetContext(ContextKeyDatasetBytes, result.Manifest.SizeBytes)

	stageState.SetMetadata("dataset_path", result.Path)
	stageState.SetMetadata("fingerprint", result.Manifest.Fingerprint)
	stageState.SetMetadata("size_bytes", result.Manifest.SizeBytes)
	stageState.SetMetadata("unchanged", result.Unchanged)

	if result.Unchanged {
		s.updateProgress(state.ID, stageState, 100, "Upstream unchanged, reusing cached dataset")
		return nil
	}

	s.updateProgress(state.ID, stageState, 100,
		fmt.Sprintf("Downloaded %.1f MB in %s",
			float64(result.Bytes)/(1024*1024), result.Duration.Round(time.Millisecond)))
	return nil
}

// updateProgress updates progress through the centralized StatusBroadcaster
func (s *FetchStage) updateProgress(operationID string, stageState *StageState, progress int, message string) {
	stageState.UpdateProgress(float64(progress), message)

	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStageWithMetadata(operationID, s.ID(), progress, message, stageState.Metadata)
	}
}

// RequiredInputs returns empty requirements as fetching needs no inputs
func (s *FetchStage) RequiredInputs() []DataRequirement {
	return []DataRequirement{}
}

// ProducedOutputs returns the raw dataset snapshot produced by fetching
func (s *FetchStage) ProducedOutputs() []DataOutput {
	return []DataOutput{
		{
			Type:     DataTypeRawDataset,
			Location: s.paths.RawDir,
			Pattern:  "*.csv",
		},
	}
}

// CanRun always returns true as fetching has no dependencies
func (s *FetchStage) CanRun(manifest *PipelineManifest) bool {
	return true
}

// ProcessStage parses the raw dataset, applies the optional reporting
// window, fills the gaps the source leaves in daily and cumulative
// series, and writes the clean-data artifact downstream stages load.
type ProcessStage struct {
	BaseStage
	parser   *dataset.Parser
	cleaner  *dataset.Cleaner
	clean    *exporter.CleanExporter
	analysis *exporter.AnalysisExporter
	metrics  *infrastructure.BusinessMetrics
	paths    *config.Paths
	logger   *slog.Logger
	options  *StageOptions
}

// NewProcessStage creates the data cleaning stage
func NewProcessStage(cfg *config.Config, paths *config.Paths, logger *slog.Logger, metrics *infrastructure.BusinessMetrics, options *StageOptions) *ProcessStage {
	if options == nil {
		options = &StageOptions{}
	}
	if logger != nil {
		logger = logger.With(slog.String("stage", StageIDProcess))
	}

	return &ProcessStage{
		BaseStage: NewBaseStage(StageIDProcess, StageNameProcess, []string{StageIDFetch}),
		parser:    dataset.NewParser(cfg.Dataset, logger),
		cleaner:   dataset.NewCleaner(),
		clean:     exporter.NewCleanExporter(paths),
		analysis:  exporter.NewAnalysisExporter(paths),
		metrics:   metrics,
		paths:     paths,
		logger:    logger,
		options:   options,
	}
}

// Execute parses, profiles, cleans and exports the dataset
func (p *ProcessStage) Execute(ctx context.Context, state *OperationState) error {
	stageState := state.GetStage(p.ID())
	inputPath := p.inputPath(state)

	if p.logger != nil {
		p.logger.InfoContext(ctx, "starting dataset processing",
			slog.String("operation_id", state.ID),
			slog.String("input", inputPath))
	}

	from, to, err := reportingWindow(state)
	if err != nil {
		return NewValidationError(p.ID(), err.Error())
	}

	p.updateProgress(state.ID, stageState, 5, "Reading raw dataset...")

	p.parser.OnProgress(func(rows int) {
		progress := minInt(10+rows/50000*4, 45)
		p.updateProgress(state.ID, stageState, progress,
			fmt.Sprintf("Parsed %d rows...", rows))
	})

	ds, err := p.parser.ParseFile(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("parse dataset: %w", err)
	}
	rowsParsed := len(ds.Records)
	state.SetContext(ContextKeyRowsParsed, rowsParsed)
	if _, last, ok := ds.DateRange(); ok {
		state.SetContext(ContextKeyDatasetDate, last.Format("2006-01-02"))
	}

	p.updateProgress(state.ID, stageState, 50, "Profiling raw dataset...")
	if err := p.analysis.ExportProfile(analytics.Profile(ds)); err != nil {
		return fmt.Errorf("export profile: %w", err)
	}

	if !from.IsZero() || !to.IsZero() {
		ds.Records = filterWindow(ds.Records, from, to)
		if p.logger != nil {
			p.logger.InfoContext(ctx, "applied reporting window",
				slog.Int("rows_in", rowsParsed),
				slog.Int("rows_kept", len(ds.Records)))
		}
		if len(ds.Records) == 0 {
			return NewValidationError(p.ID(), "no rows fall inside the requested date window")
		}
	}

	p.updateProgress(state.ID, stageState, 60, "Filling missing values...")

	cleanCtx := ctx
	var span trace.Span
	tracer := GetOperationTracer()
	if tracer != nil {
		cleanCtx, span = tracer.TraceDataProcessing(ctx, "clean", len(ds.Records))
	}
	started := time.Now()

	result := p.cleaner.Clean(ds)
	records := append(result.Countries, result.Aggregates...)

	p.updateProgress(state.ID, stageState, 75, "Writing cleaned dataset...")
	if err := p.clean.ExportCleanData(ctx, records); err != nil {
		if tracer != nil {
			span.End()
		}
		return fmt.Errorf("export clean data: %w", err)
	}

	if tracer != nil {
		tracer.RecordDataProcessingCompletion(cleanCtx, span, "clean",
			int64(len(records)), contextInt64(state, ContextKeyDatasetBytes), time.Since(started))
		span.End()
	}

	filled := result.Stats.DailyCellsFilled + result.Stats.CumulativeCellsFilled
	if p.metrics != nil {
		p.metrics.DatasetRowsParsed.Add(ctx, int64(rowsParsed))
		p.metrics.DatasetCellsFilled.Add(ctx, int64(filled))
	}

	state.SetContext(ContextKeyCountryRows, result.Stats.CountryRows)
	state.SetContext(ContextKeyAggregateRows, result.Stats.AggregateRows)
	state.SetContext(ContextKeyLocations, len(ds.Locations()))

	stageState.SetMetadata("rows_parsed", rowsParsed)
	stageState.SetMetadata("country_rows", result.Stats.CountryRows)
	stageState.SetMetadata("aggregate_rows", result.Stats.AggregateRows)
	stageState.SetMetadata("cells_filled", filled)
	stageState.SetMetadata("output_path", p.paths.CleanDataCSV)

	p.updateProgress(state.ID, stageState, 100,
		fmt.Sprintf("Cleaned %d rows, filled %d cells", len(records), filled))
	return nil
}

// inputPath resolves the raw dataset location, preferring the path the
// fetch stage recorded during this run.
func (p *ProcessStage) inputPath(state *OperationState) string {
	if path, ok := configOrContextString(state, ContextKeyDatasetPath); ok {
		return path
	}
	return p.paths.RawDatasetCSV
}

// Validate checks the raw dataset artifact exists before parsing starts
func (p *ProcessStage) Validate(state *OperationState) error {
	inputPath := p.inputPath(state)
	if !config.FileExists(inputPath) {
		return fmt.Errorf("raw dataset not found at %s, run the fetch stage first", inputPath)
	}
	return nil
}

// updateProgress updates progress through the centralized StatusBroadcaster
func (p *ProcessStage) updateProgress(operationID string, stageState *StageState, progress int, message string) {
	stageState.UpdateProgress(float64(progress), message)

	if p.options.StatusBroadcaster != nil {
		p.options.StatusBroadcaster.UpdateStageProgress(operationID, p.ID(), progress, message)
	}
}

// RequiredInputs returns the raw dataset needed for processing
func (p *ProcessStage) RequiredInputs() []DataRequirement {
	return []DataRequirement{
		{
			Type:     DataTypeRawDataset,
			Location: p.paths.RawDir,
			MinCount: 1,
			Optional: false,
		},
	}
}

// ProducedOutputs returns the clean-data artifact produced by processing
func (p *ProcessStage) ProducedOutputs() []DataOutput {
	return []DataOutput{
		{
			Type:     DataTypeCleanData,
			Location: p.paths.ProcessedDir,
			Pattern:  "*.csv",
		},
	}
}

// CanRun checks whether a raw dataset snapshot is available
func (p *ProcessStage) CanRun(manifest *PipelineManifest) bool {
	if p == nil {
		return false
	}
	if manifest != nil {
		if data, exists := manifest.GetData(DataTypeRawDataset); exists && data.FileCount >= 1 {
			return true
		}
	}
	return config.FileExists(p.paths.RawDatasetCSV)
}

// AnalyzeStage computes the latest per-location snapshot, the global
// trend series, the top-N rankings and the correlation matrix, and
// exports each as a CSV or JSON artifact.
type AnalyzeStage struct {
	BaseStage
	analysis *exporter.AnalysisExporter
	topN     int
	paths    *config.Paths
	logger   *slog.Logger
	options  *StageOptions
}

// NewAnalyzeStage creates the statistical analysis stage
func NewAnalyzeStage(cfg *config.Config, paths *config.Paths, logger *slog.Logger, metrics *infrastructure.BusinessMetrics, options *StageOptions) *AnalyzeStage {
	if options == nil {
		options = &StageOptions{}
	}
	if logger != nil {
		logger = logger.With(slog.String("stage", StageIDAnalyze))
	}

	return &AnalyzeStage{
		BaseStage: NewBaseStage(StageIDAnalyze, StageNameAnalyze, []string{StageIDProcess}),
		analysis:  exporter.NewAnalysisExporter(paths),
		topN:      cfg.Charts.TopN,
		paths:     paths,
		logger:    logger,
		options:   options,
	}
}

// Execute runs every analysis over the cleaned dataset
func (a *AnalyzeStage) Execute(ctx context.Context, state *OperationState) error {
	stageState := state.GetStage(a.ID())

	if a.logger != nil {
		a.logger.InfoContext(ctx, "starting statistical analysis",
			slog.String("operation_id", state.ID))
	}

	a.updateProgress(state.ID, stageState, 10, "Loading cleaned dataset...")
	ds, err := exporter.LoadCleanData(a.paths.CleanDataCSV)
	if err != nil {
		return fmt.Errorf("load clean data: %w", err)
	}
	countries := ds.Countries()
	world := ds.LocationRows(analytics.WorldLocation)

	a.updateProgress(state.ID, stageState, 30, "Computing latest snapshot...")
	snapshot := analytics.LatestSnapshot(countries)
	if err := a.analysis.ExportSnapshot(snapshot); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}

	a.updateProgress(state.ID, stageState, 50, "Computing global trends...")
	trends := analytics.GlobalTrends(world, countries)
	if err := a.analysis.ExportGlobalTrends(trends); err != nil {
		return fmt.Errorf("export global trends: %w", err)
	}

	a.updateProgress(state.ID, stageState, 70, "Ranking locations...")
	rankings := analytics.Rankings(snapshot, a.topN)
	if err := a.analysis.ExportRankings(rankings); err != nil {
		return fmt.Errorf("export rankings: %w", err)
	}

	a.updateProgress(state.ID, stageState, 85, "Correlating metrics...")
	corr := analytics.CorrelationSnapshot(countries)
	if err := a.analysis.ExportCorrelations(corr); err != nil {
		return fmt.Errorf("export correlations: %w", err)
	}

	state.SetContext(ContextKeyLocations, len(snapshot))

	stageState.SetMetadata("locations", len(snapshot))
	stageState.SetMetadata("trend_points", len(trends))
	stageState.SetMetadata("ranked_metrics", len(rankings))
	stageState.SetMetadata("correlation_points", len(corr.Points))

	a.updateProgress(state.ID, stageState, 100,
		fmt.Sprintf("Analyzed %d locations across %d trend days", len(snapshot), len(trends)))
	return nil
}

// Validate checks the clean-data artifact exists before analysis starts
func (a *AnalyzeStage) Validate(state *OperationState) error {
	if !config.FileExists(a.paths.CleanDataCSV) {
		return fmt.Errorf("clean dataset not found at %s, run the process stage first", a.paths.CleanDataCSV)
	}
	return nil
}

// updateProgress updates progress through the centralized StatusBroadcaster
func (a *AnalyzeStage) updateProgress(operationID string, stageState *StageState, progress int, message string) {
	stageState.UpdateProgress(float64(progress), message)

	if a.options.StatusBroadcaster != nil {
		a.options.StatusBroadcaster.UpdateStageProgress(operationID, a.ID(), progress, message)
	}
}

// RequiredInputs returns the clean-data artifact needed for analysis
func (a *AnalyzeStage) RequiredInputs() []DataRequirement {
	return []DataRequirement{
		{
			Type:     DataTypeCleanData,
			Location: a.paths.ProcessedDir,
			MinCount: 1,
			Optional: false,
		},
	}
}

// ProducedOutputs returns the analysis artifacts produced
func (a *AnalyzeStage) ProducedOutputs() []DataOutput {
	return []DataOutput{
		{
			Type:     DataTypeAnalytics,
			Location: a.paths.AnalyticsDir,
			Pattern:  "*.csv",
		},
	}
}

// CanRun checks whether the clean-data artifact is available
func (a *AnalyzeStage) CanRun(manifest *PipelineManifest) bool {
	if a == nil {
		return false
	}
	if manifest != nil {
		if data, exists := manifest.GetData(DataTypeCleanData); exists && data.FileCount >= 1 {
			return true
		}
	}
	return config.FileExists(a.paths.CleanDataCSV)
}

// VisualizeStage renders the chart catalogue from the analysis
// artifacts and, when PNG export is enabled, captures a snapshot of
// each chart through a headless browser.
type VisualizeStage struct {
	BaseStage
	generator   *charts.Generator
	snapshotter *charts.Snapshotter
	renderPNG   bool
	topN        int
	metrics     *infrastructure.BusinessMetrics
	paths       *config.Paths
	logger      *slog.Logger
	options     *StageOptions
}

// NewVisualizeStage creates the chart generation stage
func NewVisualizeStage(cfg *config.Config, paths *config.Paths, logger *slog.Logger, metrics *infrastructure.BusinessMetrics, options *StageOptions) *VisualizeStage {
	if options == nil {
		options = &StageOptions{}
	}
	if logger != nil {
		logger = logger.With(slog.String("stage", StageIDVisualize))
	}

	return &VisualizeStage{
		BaseStage:   NewBaseStage(StageIDVisualize, StageNameVisualize, []string{StageIDAnalyze}),
		generator:   charts.NewGenerator(cfg.Charts, paths, logger),
		snapshotter: charts.NewSnapshotter(cfg.Charts, logger, metrics),
		renderPNG:   cfg.Charts.RenderPNG,
		topN:        cfg.Charts.TopN,
		metrics:     metrics,
		paths:       paths,
		logger:      logger,
		options:     options,
	}
}

// Execute renders the chart catalogue and optional PNG snapshots
func (v *VisualizeStage) Execute(ctx context.Context, state *OperationState) error {
	stageState := state.GetStage(v.ID())

	if v.logger != nil {
		v.logger.InfoContext(ctx, "starting chart generation",
			slog.String("operation_id", state.ID),
			slog.Int("catalogue_size", charts.CatalogueSize()))
	}

	v.updateProgress(state.ID, stageState, 5, "Loading analysis artifacts...")
	in, err := v.loadInputs()
	if err != nil {
		return err
	}

	v.generator.OnProgress(func(done, total int) {
		progress := 10 + done*80/total
		v.updateProgress(state.ID, stageState, progress,
			fmt.Sprintf("Rendered %d/%d charts", done, total))
	})

	index, err := v.generator.RenderAll(ctx, in, v.metrics)
	if err != nil {
		return fmt.Errorf("render charts: %w", err)
	}

	state.SetContext(ContextKeyChartsRendered, len(index.Charts))
	stageState.SetMetadata("charts_rendered", len(index.Charts))
	stageState.SetMetadata("index_path", v.paths.ChartIndexJSON)

	renderPNG := v.renderPNG || configBool(state, ContextKeyRenderPNG)
	if renderPNG {
		v.updateProgress(state.ID, stageState, 92, "Capturing PNG snapshots...")
		if err := v.captureSnapshots(ctx, index); err != nil {
			// HTML charts already exist, keep the run alive
			if v.logger != nil {
				v.logger.WarnContext(ctx, "png snapshot capture failed",
					slog.String("error", err.Error()))
			}
			stageState.SetMetadata("snapshot_error", err.Error())
		} else {
			state.SetContext(ContextKeySnapshots, len(index.Charts))
			stageState.SetMetadata("snapshots", len(index.Charts))
		}
	}

	v.updateProgress(state.ID, stageState, 100,
		fmt.Sprintf("Generated %d charts", len(index.Charts)))
	return nil
}

// loadInputs reassembles the chart inputs from the analysis artifacts
// so a visualize-only run does not need the analyze stage in memory.
func (v *VisualizeStage) loadInputs() (*charts.RenderInputs, error) {
	snapshot, err := exporter.LoadSnapshot(v.paths.SnapshotCSV)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	trends, err := exporter.LoadGlobalTrends(v.paths.GlobalTrendsCSV)
	if err != nil {
		return nil, fmt.Errorf("load global trends: %w", err)
	}
	ds, err := exporter.LoadCleanData(v.paths.CleanDataCSV)
	if err != nil {
		return nil, fmt.Errorf("load clean data: %w", err)
	}
	var corr domain.CorrelationSnapshot
	if err := exporter.ReadJSON(v.paths.CorrelationsJSON, &corr); err != nil {
		return nil, fmt.Errorf("load correlations: %w", err)
	}

	in := &charts.RenderInputs{
		Trends:       trends,
		Snapshot:     snapshot,
		Rankings:     analytics.Rankings(snapshot, v.topN),
		Countries:    ds.Countries(),
		Correlations: &corr,
	}
	if len(trends) > 0 {
		in.DatasetDate = trends[len(trends)-1].Date
	}
	return in, nil
}

// captureSnapshots drives the headless browser over the rendered
// charts and rewrites the index so it carries the PNG paths.
func (v *VisualizeStage) captureSnapshots(ctx context.Context, index *domain.ChartIndex) error {
	snapCtx := ctx
	var span trace.Span
	tracer := GetOperationTracer()
	if tracer != nil {
		snapCtx, span = tracer.TraceChromeOperation(ctx, "chart_snapshots")
	}
	started := time.Now()

	err := v.snapshotter.SnapshotAll(snapCtx, index)

	if tracer != nil {
		tracer.RecordChromeOperationCompletion(snapCtx, span, "chart_snapshots", err == nil, time.Since(started))
		span.End()
	}
	if err != nil {
		return err
	}

	if err := exporter.NewJSONWriter().WriteJSON(v.paths.ChartIndexJSON, index); err != nil {
		return fmt.Errorf("rewrite chart index: %w", err)
	}
	return nil
}

// Validate checks the analysis artifacts exist before rendering starts
func (v *VisualizeStage) Validate(state *OperationState) error {
	for _, path := range []string{v.paths.SnapshotCSV, v.paths.GlobalTrendsCSV, v.paths.CorrelationsJSON, v.paths.CleanDataCSV} {
		if !config.FileExists(path) {
			return fmt.Errorf("chart input missing at %s, run the process and analyze stages first", path)
		}
	}
	return nil
}

// updateProgress updates progress through the centralized StatusBroadcaster
func (v *VisualizeStage) updateProgress(operationID string, stageState *StageState, progress int, message string) {
	stageState.UpdateProgress(float64(progress), message)

	if v.options.StatusBroadcaster != nil {
		v.options.StatusBroadcaster.UpdateStageProgress(operationID, v.ID(), progress, message)
	}
}

// RequiredInputs returns the artifacts needed for chart generation
func (v *VisualizeStage) RequiredInputs() []DataRequirement {
	return []DataRequirement{
		{
			Type:     DataTypeAnalytics,
			Location: v.paths.AnalyticsDir,
			MinCount: 1,
			Optional: false,
		},
		{
			Type:     DataTypeCleanData,
			Location: v.paths.ProcessedDir,
			MinCount: 1,
			Optional: false,
		},
	}
}

// ProducedOutputs returns the chart files produced
func (v *VisualizeStage) ProducedOutputs() []DataOutput {
	return []DataOutput{
		{
			Type:     DataTypeCharts,
			Location: v.paths.ChartsDir,
			Pattern:  "*.html",
		},
	}
}

// CanRun checks whether the analysis artifacts are available
func (v *VisualizeStage) CanRun(manifest *PipelineManifest) bool {
	if v == nil {
		return false
	}
	if manifest != nil {
		if data, exists := manifest.GetData(DataTypeAnalytics); exists && data.FileCount >= 1 {
			return true
		}
	}
	return config.FileExists(v.paths.SnapshotCSV)
}

// ReportStage assembles the human-facing deliverables: the insights
// summary, the Excel workbook, and the pipeline manifest recording
// every artifact the run produced.
type ReportStage struct {
	BaseStage
	analysis *exporter.AnalysisExporter
	workbook *exporter.WorkbookWriter
	topN     int
	paths    *config.Paths
	logger   *slog.Logger
	options  *StageOptions
}

// NewReportStage creates the report export stage
func NewReportStage(cfg *config.Config, paths *config.Paths, logger *slog.Logger, metrics *infrastructure.BusinessMetrics, options *StageOptions) *ReportStage {
	if options == nil {
		options = &StageOptions{}
	}
	if logger != nil {
		logger = logger.With(slog.String("stage", StageIDReport))
	}

	return &ReportStage{
		BaseStage: NewBaseStage(StageIDReport, StageNameReport, []string{StageIDAnalyze, StageIDVisualize}),
		analysis:  exporter.NewAnalysisExporter(paths),
		workbook:  exporter.NewWorkbookWriter(paths),
		topN:      cfg.Charts.TopN,
		paths:     paths,
		logger:    logger,
		options:   options,
	}
}

// Execute writes the insights, the workbook, and the pipeline manifest
func (r *ReportStage) Execute(ctx context.Context, state *OperationState) error {
	stageState := state.GetStage(r.ID())

	if r.logger != nil {
		r.logger.InfoContext(ctx, "starting report export",
			slog.String("operation_id", state.ID))
	}

	r.updateProgress(state.ID, stageState, 10, "Loading analysis artifacts...")

	snapshot, err := exporter.LoadSnapshot(r.paths.SnapshotCSV)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	trends, err := exporter.LoadGlobalTrends(r.paths.GlobalTrendsCSV)
	if err != nil {
		return fmt.Errorf("load global trends: %w", err)
	}
	var corr domain.CorrelationSnapshot
	if err := exporter.ReadJSON(r.paths.CorrelationsJSON, &corr); err != nil {
		return fmt.Errorf("load correlations: %w", err)
	}
	rankings := analytics.Rankings(snapshot, r.topN)

	r.updateProgress(state.ID, stageState, 40, "Writing insights summary...")
	ins := analytics.BuildInsights(trends, snapshot, rankings, &corr)
	if err := r.analysis.ExportInsights(ins); err != nil {
		return fmt.Errorf("export insights: %w", err)
	}

	r.updateProgress(state.ID, stageState, 70, "Writing analysis workbook...")
	if err := r.workbook.Write(snapshot, trends, rankings); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	r.updateProgress(state.ID, stageState, 90, "Recording pipeline manifest...")
	manifest, err := r.buildManifest(state)
	if err != nil {
		return fmt.Errorf("build pipeline manifest: %w", err)
	}
	if err := manifest.SaveToFile(r.paths.OperationManifest); err != nil {
		return fmt.Errorf("save pipeline manifest: %w", err)
	}

	artifacts := 0
	for _, info := range manifest.AvailableData {
		artifacts += info.FileCount
	}
	state.SetContext(ContextKeyArtifacts, artifacts)

	stageState.SetMetadata("observations", len(ins.Observations))
	stageState.SetMetadata("workbook_path", r.paths.WorkbookXLSX)
	stageState.SetMetadata("manifest_path", r.paths.OperationManifest)
	stageState.SetMetadata("artifact_files", artifacts)

	r.updateProgress(state.ID, stageState, 100,
		fmt.Sprintf("Report ready: %d observations, %d artifact files", len(ins.Observations), artifacts))
	return nil
}

// buildManifest scans the artifact directories so the manifest records
// what is actually on disk, then carries over the stages completed in
// this run with their real timings.
func (r *ReportStage) buildManifest(state *OperationState) (*PipelineManifest, error) {
	fromDate, _ := configString(state, ContextKeyFromDate)
	toDate, _ := configString(state, ContextKeyToDate)

	manifest := NewPipelineManifest(state.ID, fromDate, toDate)
	if mode, ok := configString(state, ContextKeyMode); ok {
		manifest.Mode = mode
	}

	scans := []struct {
		dataType string
		location string
		pattern  string
	}{
		{DataTypeRawDataset, r.paths.RawDir, "*.csv"},
		{DataTypeCleanData, r.paths.ProcessedDir, "*.csv"},
		{DataTypeAnalytics, r.paths.AnalyticsDir, "*.csv"},
		{DataTypeCharts, r.paths.ChartsDir, "*.html"},
		{DataTypeReportBundles, r.paths.AnalyticsDir, "*.xlsx"},
	}
	for _, scan := range scans {
		if _, err := os.Stat(scan.location); err != nil {
			continue
		}
		if err := manifest.ScanDataDirectory(scan.dataType, scan.location, scan.pattern); err != nil {
			return nil, err
		}
	}

	for _, ss := range state.GetCompletedStages() {
		exec := StageExecution{
			StageID:   ss.ID,
			StageName: ss.Name,
			Status:    string(ss.Status),
			Metadata:  ss.Metadata,
		}
		if ss.StartTime != nil {
			exec.StartTime = *ss.StartTime
		}
		if ss.EndTime != nil {
			exec.EndTime = *ss.EndTime
			exec.Duration = ss.Duration().String()
		}
		manifest.CompletedStages = append(manifest.CompletedStages, exec)
	}
	manifest.Status = "completed"
	return manifest, nil
}

// Validate checks the analysis artifacts exist before reporting starts
func (r *ReportStage) Validate(state *OperationState) error {
	for _, path := range []string{r.paths.SnapshotCSV, r.paths.GlobalTrendsCSV, r.paths.CorrelationsJSON} {
		if !config.FileExists(path) {
			return fmt.Errorf("report input missing at %s, run the analyze stage first", path)
		}
	}
	return nil
}

// updateProgress updates progress through the centralized StatusBroadcaster
func (r *ReportStage) updateProgress(operationID string, stageState *StageState, progress int, message string) {
	stageState.UpdateProgress(float64(progress), message)

	if r.options.StatusBroadcaster != nil {
		r.options.StatusBroadcaster.UpdateStageProgress(operationID, r.ID(), progress, message)
	}
}

// RequiredInputs returns the artifacts needed for report export
func (r *ReportStage) RequiredInputs() []DataRequirement {
	return []DataRequirement{
		{
			Type:     DataTypeAnalytics,
			Location: r.paths.AnalyticsDir,
			MinCount: 1,
			Optional: false,
		},
		{
			Type:     DataTypeCharts,
			Location: r.paths.ChartsDir,
			MinCount: 1,
			Optional: true,
		},
	}
}

// ProducedOutputs returns the report bundle produced
func (r *ReportStage) ProducedOutputs() []DataOutput {
	return []DataOutput{
		{
			Type:     DataTypeReportBundles,
			Location: r.paths.AnalyticsDir,
			Pattern:  "*.xlsx",
		},
	}
}

// CanRun checks whether the analysis artifacts are available
func (r *ReportStage) CanRun(manifest *PipelineManifest) bool {
	if r == nil {
		return false
	}
	if manifest != nil {
		if data, exists := manifest.GetData(DataTypeAnalytics); exists && data.FileCount >= 1 {
			return true
		}
	}
	return config.FileExists(r.paths.SnapshotCSV)
}

// reportingWindow reads the optional date window from the operation
// config. A zero bound leaves that side of the window open.
func reportingWindow(state *OperationState) (from, to time.Time, err error) {
	if s, ok := configString(state, ContextKeyFromDate); ok {
		from, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q, want YYYY-MM-DD", s)
		}
	}
	if s, ok := configString(state, ContextKeyToDate); ok {
		to, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q, want YYYY-MM-DD", s)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("date window ends before it starts: %s > %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return from, to, nil
}

// filterWindow keeps the records whose date falls inside the closed
// interval [from, to]. Records keep their order.
func filterWindow(records []domain.Record, from, to time.Time) []domain.Record {
	out := records[:0]
	for _, r := range records {
		if !from.IsZero() && r.Date.Before(from) {
			continue
		}
		if !to.IsZero() && r.Date.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// configString reads a non-empty string value from the operation config.
func configString(state *OperationState, key string) (string, bool) {
	v, ok := state.GetConfig(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// configBool reads a boolean from the operation config, false when the
// key is absent or holds another type.
func configBool(state *OperationState, key string) bool {
	v, ok := state.GetConfig(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// configOrContextString reads a non-empty string from the operation
// config, falling back to the shared context values earlier stages set.
func configOrContextString(state *OperationState, key string) (string, bool) {
	if s, ok := configString(state, key); ok {
		return s, true
	}
	v, ok := state.GetContext(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// contextInt64 reads an int64 from the shared context values, returning
// zero when the key is absent or holds another type.
func contextInt64(state *OperationState, key string) int64 {
	v, ok := state.GetContext(key)
	if !ok {
		return 0
	}
	n, ok := v.(int64)
	if !ok {
		return 0
	}
	return n
}

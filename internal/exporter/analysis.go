package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"covidcli/internal/config"
	"covidcli/pkg/contracts/domain"
)

// snapshotColumns is the fixed column order of the latest-snapshot CSV.
var snapshotColumns = []string{
	"iso_code", "continent", "location", "date",
	"total_cases", "total_deaths", "new_cases", "new_deaths",
	"new_cases_smoothed", "new_deaths_smoothed",
	"total_vaccinations", "people_vaccinated", "people_fully_vaccinated",
	"case_fatality_rate", "vaccination_rate_per_hundred",
	"fully_vaccinated_per_hundred",
	"total_cases_per_million", "total_deaths_per_million",
	"population", "median_age",
}

// trendColumns is the fixed column order of the global-trends CSV.
var trendColumns = []string{
	"date", "new_cases", "new_deaths", "new_cases_avg7", "new_deaths_avg7",
	"total_cases", "total_deaths", "total_vaccinations",
}

// rankingColumns is the fixed column order of the rankings CSV. Blocks
// of rows share a metric, ordered by rank within the block.
var rankingColumns = []string{"metric", "rank", "location", "iso_code", "value"}

// rankingMetricOrder fixes the block order of the rankings artifact so
// repeated runs produce identical files.
var rankingMetricOrder = []domain.Metric{
	domain.MetricTotalCases,
	domain.MetricTotalDeaths,
	domain.MetricTotalCasesPerMillion,
	domain.MetricFullyVaccinatedPerHundred,
}

// AnalysisExporter writes the snapshot, trend, ranking, profile,
// correlation, and insights artifacts produced by an analysis run.
type AnalysisExporter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
	paths      *config.Paths
}

// NewAnalysisExporter creates a new analysis artifact exporter
func NewAnalysisExporter(paths *config.Paths) *AnalysisExporter {
	return &AnalysisExporter{
		csvWriter:  NewCSVWriter(paths),
		jsonWriter: NewJSONWriter(),
		paths:      paths,
	}
}

// ExportSnapshot writes one row per location to the snapshot CSV
func (e *AnalysisExporter) ExportSnapshot(snapshot []domain.LocationSnapshot) error {
	records := make([][]string, 0, len(snapshot))
	for i := range snapshot {
		records = append(records, snapshotRow(&snapshot[i]))
	}
	if err := e.csvWriter.WriteSimpleCSV(e.paths.SnapshotCSV, snapshotColumns, records); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ExportGlobalTrends writes one row per date to the global-trends CSV
func (e *AnalysisExporter) ExportGlobalTrends(trends []domain.GlobalTrendPoint) error {
	records := make([][]string, 0, len(trends))
	for _, pt := range trends {
		records = append(records, []string{
			formatDate(pt.Date),
			formatFloat(pt.NewCases),
			formatFloat(pt.NewDeaths),
			formatFloat(pt.NewCasesAvg7),
			formatFloat(pt.NewDeathsAvg7),
			formatFloat(pt.TotalCases),
			formatFloat(pt.TotalDeaths),
			formatFloat(pt.TotalVaccinations),
		})
	}
	if err := e.csvWriter.WriteSimpleCSV(e.paths.GlobalTrendsCSV, trendColumns, records); err != nil {
		return fmt.Errorf("failed to write global trends: %w", err)
	}
	return nil
}

// ExportRankings writes the top-N blocks to the rankings CSV, one block
// per metric in a fixed metric order
func (e *AnalysisExporter) ExportRankings(rankings map[domain.Metric][]domain.RankingEntry) error {
	var records [][]string
	for _, m := range orderedMetrics(rankings) {
		for _, entry := range rankings[m] {
			records = append(records, []string{
				string(m),
				formatInt(int64(entry.Rank)),
				entry.Location,
				entry.ISOCode,
				formatFloat(entry.Value),
			})
		}
	}
	if err := e.csvWriter.WriteSimpleCSV(e.paths.RankingsCSV, rankingColumns, records); err != nil {
		return fmt.Errorf("failed to write rankings: %w", err)
	}
	return nil
}

// ExportProfile writes the dataset exploration profile as JSON
func (e *AnalysisExporter) ExportProfile(profile *domain.DatasetProfile) error {
	return e.jsonWriter.WriteJSON(e.paths.ProfileJSON, profile)
}

// ExportCorrelations writes the correlation snapshot as JSON
func (e *AnalysisExporter) ExportCorrelations(corr *domain.CorrelationSnapshot) error {
	return e.jsonWriter.WriteJSON(e.paths.CorrelationsJSON, corr)
}

// ExportInsights writes the summary report twice: the narrative text
// file and its JSON equivalent for the API.
func (e *AnalysisExporter) ExportInsights(ins *domain.Insights) error {
	text := RenderInsightsText(ins)
	if err := os.MkdirAll(e.paths.AnalyticsDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(e.paths.InsightsTXT, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write insights text: %w", err)
	}
	return e.jsonWriter.WriteJSON(e.paths.InsightsJSON, ins)
}

// orderedMetrics returns the ranking metrics in artifact order: the
// well-known metrics first, any extras alphabetically after them.
func orderedMetrics(rankings map[domain.Metric][]domain.RankingEntry) []domain.Metric {
	seen := make(map[domain.Metric]bool, len(rankings))
	out := make([]domain.Metric, 0, len(rankings))
	for _, m := range rankingMetricOrder {
		if _, ok := rankings[m]; ok {
			out = append(out, m)
			seen[m] = true
		}
	}
	extras := make([]domain.Metric, 0, len(rankings))
	for m := range rankings {
		if !seen[m] {
			extras = append(extras, m)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	return append(out, extras...)
}

// snapshotRow converts a location snapshot to a CSV row
func snapshotRow(s *domain.LocationSnapshot) []string {
	return []string{
		s.ISOCode,
		s.Continent,
		s.Location,
		formatDate(s.Date),
		formatFloat(s.TotalCases),
		formatFloat(s.TotalDeaths),
		formatFloat(s.NewCases),
		formatFloat(s.NewDeaths),
		formatFloat(s.NewCasesSmoothed),
		formatFloat(s.NewDeathsSmoothed),
		formatFloat(s.TotalVaccinations),
		formatFloat(s.PeopleVaccinated),
		formatFloat(s.PeopleFullyVaccinated),
		formatRate(s.CaseFatalityRate),
		formatRate(s.VaccinationRatePerHundred),
		formatRate(s.FullyVaccinatedPerHundred),
		formatFloat(s.TotalCasesPerMillion),
		formatFloat(s.TotalDeathsPerMillion),
		formatNullable(s.Population.Value, s.Population.Valid),
		formatNullable(s.MedianAge.Value, s.MedianAge.Valid),
	}
}

// LoadSnapshot reads a snapshot CSV artifact back into memory. The
// serving layer and the analyzer both consume the artifact instead of
// re-deriving it from the raw dataset.
func LoadSnapshot(path string) ([]domain.LocationSnapshot, error) {
	rows, index, err := readArtifactCSV(path)
	if err != nil {
		return nil, err
	}

	snapshot := make([]domain.LocationSnapshot, 0, len(rows))
	for i, row := range rows {
		date, err := time.Parse("2006-01-02", cell(row, index, "date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date: %w", i+2, err)
		}
		snapshot = append(snapshot, domain.LocationSnapshot{
			ISOCode:   cell(row, index, "iso_code"),
			Continent: cell(row, index, "continent"),
			Location:  cell(row, index, "location"),
			Date:      date,

			TotalCases:            cellFloat(row, index, "total_cases"),
			TotalDeaths:           cellFloat(row, index, "total_deaths"),
			NewCases:              cellFloat(row, index, "new_cases"),
			NewDeaths:             cellFloat(row, index, "new_deaths"),
			NewCasesSmoothed:      cellFloat(row, index, "new_cases_smoothed"),
			NewDeathsSmoothed:     cellFloat(row, index, "new_deaths_smoothed"),
			TotalVaccinations:     cellFloat(row, index, "total_vaccinations"),
			PeopleVaccinated:      cellFloat(row, index, "people_vaccinated"),
			PeopleFullyVaccinated: cellFloat(row, index, "people_fully_vaccinated"),

			CaseFatalityRate:          cellFloat(row, index, "case_fatality_rate"),
			VaccinationRatePerHundred: cellFloat(row, index, "vaccination_rate_per_hundred"),
			FullyVaccinatedPerHundred: cellFloat(row, index, "fully_vaccinated_per_hundred"),
			TotalCasesPerMillion:      cellFloat(row, index, "total_cases_per_million"),
			TotalDeathsPerMillion:     cellFloat(row, index, "total_deaths_per_million"),

			Population: cellNullable(row, index, "population"),
			MedianAge:  cellNullable(row, index, "median_age"),
		})
	}
	return snapshot, nil
}

// LoadGlobalTrends reads a global-trends CSV artifact back into memory
func LoadGlobalTrends(path string) ([]domain.GlobalTrendPoint, error) {
	rows, index, err := readArtifactCSV(path)
	if err != nil {
		return nil, err
	}

	trends := make([]domain.GlobalTrendPoint, 0, len(rows))
	for i, row := range rows {
		date, err := time.Parse("2006-01-02", cell(row, index, "date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date: %w", i+2, err)
		}
		trends = append(trends, domain.GlobalTrendPoint{
			Date:              date,
			NewCases:          cellFloat(row, index, "new_cases"),
			NewDeaths:         cellFloat(row, index, "new_deaths"),
			NewCasesAvg7:      cellFloat(row, index, "new_cases_avg7"),
			NewDeathsAvg7:     cellFloat(row, index, "new_deaths_avg7"),
			TotalCases:        cellFloat(row, index, "total_cases"),
			TotalDeaths:       cellFloat(row, index, "total_deaths"),
			TotalVaccinations: cellFloat(row, index, "total_vaccinations"),
		})
	}
	return trends, nil
}

// readArtifactCSV reads an artifact file and maps its header row to
// column positions. The leading UTF-8 BOM written for spreadsheet
// compatibility is stripped before header matching.
func readArtifactCSV(path string) ([][]string, map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("artifact %s is empty", path)
	}

	header := all[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if i == 0 {
			key = strings.TrimPrefix(key, "\uFEFF")
		}
		index[key] = i
	}
	return all[1:], index, nil
}

func cell(row []string, index map[string]int, column string) string {
	i, ok := index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellFloat(row []string, index map[string]int, column string) float64 {
	s := cell(row, index, column)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func cellNullable(row []string, index map[string]int, column string) domain.NullFloat {
	s := cell(row, index, column)
	if s == "" {
		return domain.NullFloat{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.NullFloat{}
	}
	return domain.Float(v)
}

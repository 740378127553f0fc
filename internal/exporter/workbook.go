package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"covidcli/internal/config"
	"covidcli/pkg/contracts/domain"
)

// Workbook sheet names
const (
	SheetSnapshot = "Snapshot"
	SheetRankings = "Rankings"
	SheetTrends   = "Global Trends"
)

// Column width bounds for the auto-sized snapshot sheet
const (
	minColWidth = 10.0
	maxColWidth = 40.0
)

// WorkbookWriter builds the analytics XLSX workbook: one sheet each for
// the latest snapshot, the ranking blocks, and the global trend series.
type WorkbookWriter struct {
	paths *config.Paths
}

// NewWorkbookWriter creates a new workbook writer
func NewWorkbookWriter(paths *config.Paths) *WorkbookWriter {
	return &WorkbookWriter{paths: paths}
}

// Write builds the workbook and saves it to the configured path
func (w *WorkbookWriter) Write(
	snapshot []domain.LocationSnapshot,
	trends []domain.GlobalTrendPoint,
	rankings map[domain.Metric][]domain.RankingEntry,
) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeSheet(f, SheetSnapshot, snapshotColumns, snapshotSheetRows(snapshot)); err != nil {
		return err
	}
	if err := w.writeSheet(f, SheetRankings, rankingColumns, rankingSheetRows(rankings)); err != nil {
		return err
	}
	if err := w.writeSheet(f, SheetTrends, trendColumns, trendSheetRows(trends)); err != nil {
		return err
	}

	// Size the snapshot sheet to its content; the other sheets keep
	// default widths
	if err := autoSizeColumns(f, SheetSnapshot, snapshotColumns, snapshotSheetRows(snapshot)); err != nil {
		return err
	}

	// Drop the default sheet and open on the snapshot
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(SheetSnapshot)
	if err != nil {
		return fmt.Errorf("failed to find snapshot sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := os.MkdirAll(filepath.Dir(w.paths.WorkbookXLSX), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	slog.Info("Writing analytics workbook",
		slog.String("path", w.paths.WorkbookXLSX),
		slog.Int("snapshot_rows", len(snapshot)),
		slog.Int("trend_rows", len(trends)))

	if err := f.SaveAs(w.paths.WorkbookXLSX); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// writeSheet creates a sheet with a bold, frozen header row followed by
// the data rows
func (w *WorkbookWriter) writeSheet(f *excelize.File, name string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	headerRow := make([]any, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("failed to compute last column: %w", err)
	}
	if err := f.SetCellStyle(name, "A1", lastCol+"1", boldStyle); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	if err := f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header row: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return nil
}

// autoSizeColumns widens each column to its longest rendered value,
// clamped to sensible bounds
func autoSizeColumns(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, v := range row {
			if i >= len(widths) {
				break
			}
			if n := len(fmt.Sprint(v)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to compute column name: %w", err)
		}
		width := float64(widths[i]) + 2
		if width < minColWidth {
			width = minColWidth
		}
		if width > maxColWidth {
			width = maxColWidth
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

// snapshotSheetRows converts snapshot rows to typed workbook cells so
// numeric columns stay numeric in the spreadsheet
func snapshotSheetRows(snapshot []domain.LocationSnapshot) [][]any {
	rows := make([][]any, 0, len(snapshot))
	for i := range snapshot {
		s := &snapshot[i]
		rows = append(rows, []any{
			s.ISOCode, s.Continent, s.Location, formatDate(s.Date),
			s.TotalCases, s.TotalDeaths, s.NewCases, s.NewDeaths,
			s.NewCasesSmoothed, s.NewDeathsSmoothed,
			s.TotalVaccinations, s.PeopleVaccinated, s.PeopleFullyVaccinated,
			s.CaseFatalityRate, s.VaccinationRatePerHundred,
			s.FullyVaccinatedPerHundred,
			s.TotalCasesPerMillion, s.TotalDeathsPerMillion,
			nullableCell(s.Population), nullableCell(s.MedianAge),
		})
	}
	return rows
}

// rankingSheetRows converts ranking blocks to workbook cells in the
// same metric order as the CSV artifact
func rankingSheetRows(rankings map[domain.Metric][]domain.RankingEntry) [][]any {
	var rows [][]any
	for _, m := range orderedMetrics(rankings) {
		for _, entry := range rankings[m] {
			rows = append(rows, []any{
				string(m), entry.Rank, entry.Location, entry.ISOCode, entry.Value,
			})
		}
	}
	return rows
}

// trendSheetRows converts trend points to workbook cells
func trendSheetRows(trends []domain.GlobalTrendPoint) [][]any {
	rows := make([][]any, 0, len(trends))
	for _, pt := range trends {
		rows = append(rows, []any{
			formatDate(pt.Date),
			pt.NewCases, pt.NewDeaths, pt.NewCasesAvg7, pt.NewDeathsAvg7,
			pt.TotalCases, pt.TotalDeaths, pt.TotalVaccinations,
		})
	}
	return rows
}

// nullableCell renders a missing value as an empty cell instead of zero
func nullableCell(n domain.NullFloat) any {
	if !n.Valid {
		return ""
	}
	return n.Value
}

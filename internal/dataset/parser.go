package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"covidcli/internal/config"
	apperrors "covidcli/internal/errors"
	"covidcli/pkg/contracts/domain"
)

const (
	// progressInterval is how many data rows pass between progress
	// callbacks. The full feed runs to several hundred thousand rows.
	progressInterval = 50000

	// abortCheckMinRows is how many rows must be seen before the row
	// error ratio can abort a parse mid-file. Small files are judged
	// only by the final check.
	abortCheckMinRows = 1000

	// maxRowErrorSamples caps how many rejected rows are kept for the
	// error report.
	maxRowErrorSamples = 10
)

// ProgressFunc receives the number of data rows consumed so far.
type ProgressFunc func(rows int)

// RowError records a single rejected CSV row.
type RowError struct {
	Line   int
	Reason string
}

// ParseStats describes one parse run.
type ParseStats struct {
	RowsParsed int
	RowsFailed int
	Errors     []RowError
}

func (s *ParseStats) fail(line int, reason string) {
	s.RowsFailed++
	if len(s.Errors) < maxRowErrorSamples {
		s.Errors = append(s.Errors, RowError{Line: line, Reason: reason})
	}
}

// ErrorRatio returns the share of rows that failed to parse.
func (s *ParseStats) ErrorRatio() float64 {
	total := s.RowsParsed + s.RowsFailed
	if total == 0 {
		return 0
	}
	return float64(s.RowsFailed) / float64(total)
}

// Parser reads the raw dataset CSV into domain records. Numeric cells
// distinguish NULL (empty cell) from a reported zero; fills are the
// cleaner's job.
type Parser struct {
	logger      *slog.Logger
	maxErrRatio float64
	onProgress  ProgressFunc
}

// NewParser creates a parser with the configured row error tolerance.
func NewParser(cfg config.DatasetConfig, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	ratio := cfg.MaxRowErrors
	if ratio <= 0 {
		ratio = 0.1
	}
	return &Parser{
		logger:      logger,
		maxErrRatio: ratio,
	}
}

// OnProgress registers a callback invoked every 50k data rows.
func (p *Parser) OnProgress(fn ProgressFunc) {
	p.onProgress = fn
}

// ParseFile opens and parses a downloaded dataset file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrDatasetMissing
		}
		return nil, apperrors.NewStorageError("failed to open dataset file", err).
			WithContext("file_path", path)
	}
	defer f.Close()

	ds, err := p.Parse(ctx, f)
	if err != nil {
		return nil, err
	}
	ds.Source = path
	return ds, nil
}

// Parse streams the CSV into records sorted by (location, date). It
// returns a parsing error when the header is unusable, when the file
// holds no data rows, or when more than the tolerated share of rows
// fail.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*domain.Dataset, error) {
	ds, _, err := p.ParseWithStats(ctx, r)
	return ds, err
}

// ParseWithStats is Parse plus the counters the pipeline records as
// metrics.
func (p *Parser) ParseWithStats(ctx context.Context, r io.Reader) (*domain.Dataset, ParseStats, error) {
	var stats ParseStats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, stats, apperrors.NewParsingError("dataset file is empty", err)
	}
	if err != nil {
		return nil, stats, apperrors.NewParsingError("failed to read header row", err)
	}

	schema, err := BuildSchema(header)
	if err != nil {
		return nil, stats, apperrors.NewParsingError("unusable header row", err)
	}

	records := make([]domain.Record, 0, 4096)
	line := 1

	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			stats.fail(line, fmt.Sprintf("csv: %v", err))
			if aborted := p.checkAbort(&stats); aborted != nil {
				return nil, stats, aborted
			}
			continue
		}

		rec, rowErr := parseRow(schema, row)
		if rowErr != nil {
			stats.fail(line, rowErr.Error())
			if aborted := p.checkAbort(&stats); aborted != nil {
				return nil, stats, aborted
			}
			continue
		}

		records = append(records, rec)
		stats.RowsParsed++

		if p.onProgress != nil && stats.RowsParsed%progressInterval == 0 {
			p.onProgress(stats.RowsParsed)
		}
	}

	if stats.RowsFailed > 0 && stats.ErrorRatio() > p.maxErrRatio {
		return nil, stats, p.thresholdError(&stats)
	}
	if len(records) == 0 {
		return nil, stats, apperrors.ErrEmptyDataset
	}

	sortRecords(records)

	p.logger.InfoContext(ctx, "dataset parse complete",
		slog.Int("rows_parsed", stats.RowsParsed),
		slog.Int("rows_failed", stats.RowsFailed))

	return &domain.Dataset{Records: records}, stats, nil
}

// checkAbort aborts a long parse early once enough rows prove the file
// is mostly garbage, instead of grinding through the rest.
func (p *Parser) checkAbort(stats *ParseStats) error {
	total := stats.RowsParsed + stats.RowsFailed
	if total < abortCheckMinRows {
		return nil
	}
	if stats.ErrorRatio() > p.maxErrRatio {
		return p.thresholdError(stats)
	}
	return nil
}

func (p *Parser) thresholdError(stats *ParseStats) error {
	err := apperrors.NewParsingError(
		fmt.Sprintf("too many unparseable rows: %d of %d failed",
			stats.RowsFailed, stats.RowsParsed+stats.RowsFailed),
		nil,
	).WithContext("rows_parsed", stats.RowsParsed).
		WithContext("rows_failed", stats.RowsFailed)

	for _, sample := range stats.Errors {
		p.logger.Warn("rejected dataset row",
			slog.Int("line", sample.Line),
			slog.String("reason", sample.Reason))
	}
	return err
}

// parseRow converts one CSV row into a record. A row is rejected when
// it lacks the identity columns or carries an unparseable date; bad
// numeric cells degrade to NULL instead of rejecting the row.
func parseRow(schema *Schema, row []string) (domain.Record, error) {
	iso := schema.Field(row, ColISOCode)
	location := schema.Field(row, ColLocation)
	dateStr := schema.Field(row, ColDate)

	if iso == "" || location == "" {
		return domain.Record{}, fmt.Errorf("missing iso_code or location")
	}

	date, err := time.Parse(config.DateFormat, dateStr)
	if err != nil {
		return domain.Record{}, fmt.Errorf("bad date %q", dateStr)
	}

	// Clone the retained strings: csv fields are substrings of one
	// per-row allocation, and keeping them as-is would pin the whole
	// row (including the ~50 ignored columns) for every record.
	rec := domain.Record{
		ISOCode:   strings.Clone(iso),
		Continent: strings.Clone(schema.Field(row, ColContinent)),
		Location:  strings.Clone(location),
		Date:      date,
	}

	rec.TotalCases = parseCell(schema, row, ColTotalCases)
	rec.NewCases = parseCell(schema, row, ColNewCases)
	rec.NewCasesSmoothed = parseCell(schema, row, ColNewCasesSmoothed)
	rec.TotalDeaths = parseCell(schema, row, ColTotalDeaths)
	rec.NewDeaths = parseCell(schema, row, ColNewDeaths)
	rec.NewDeathsSmoothed = parseCell(schema, row, ColNewDeathsSmoothed)
	rec.TotalVaccinations = parseCell(schema, row, ColTotalVaccinations)
	rec.PeopleVaccinated = parseCell(schema, row, ColPeopleVaccinated)
	rec.PeopleFullyVaccinated = parseCell(schema, row, ColPeopleFullyVaccinated)
	rec.StringencyIndex = parseCell(schema, row, ColStringencyIndex)
	rec.Population = parseCell(schema, row, ColPopulation)
	rec.MedianAge = parseCell(schema, row, ColMedianAge)

	return rec, nil
}

// parseCell turns a numeric cell into a NullFloat. Empty, unparseable
// and non-finite cells are NULL.
func parseCell(schema *Schema, row []string, column string) domain.NullFloat {
	raw := schema.Field(row, column)
	if raw == "" {
		return domain.NullFloat{}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return domain.NullFloat{}
	}
	return domain.Float(v)
}

// sortRecords orders rows by (location, date), the order every fill and
// rolling computation assumes.
func sortRecords(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Location != records[j].Location {
			return records[i].Location < records[j].Location
		}
		return records[i].Date.Before(records[j].Date)
	})
}

package exporter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"covidcli/internal/config"
	"covidcli/pkg/contracts/domain"
)

// cleanBatchSize is how many rows are written between context checks.
const cleanBatchSize = 10000

// cleanColumns is the fixed column order of the cleaned dataset CSV:
// the consumed source columns followed by the derived metrics.
var cleanColumns = []string{
	"iso_code", "continent", "location", "date",
	"total_cases", "new_cases", "new_cases_smoothed",
	"total_deaths", "new_deaths", "new_deaths_smoothed",
	"total_vaccinations", "people_vaccinated", "people_fully_vaccinated",
	"stringency_index", "population", "median_age",
	"case_fatality_rate", "vaccination_rate_per_hundred",
	"fully_vaccinated_per_hundred",
	"total_cases_per_million", "total_deaths_per_million",
}

// CleanExporter writes the cleaned country view to the combined CSV
// artifact. The dataset runs to hundreds of thousands of rows, so rows
// are streamed rather than buffered.
type CleanExporter struct {
	csvWriter *CSVWriter
	paths     *config.Paths
}

// NewCleanExporter creates a new cleaned-dataset exporter
func NewCleanExporter(paths *config.Paths) *CleanExporter {
	return &CleanExporter{
		csvWriter: NewCSVWriter(paths),
		paths:     paths,
	}
}

// ExportCleanData streams the cleaned country rows to the clean-data
// CSV. Rows arrive sorted by (location, date) and keep that order on
// disk. The context is checked between batches so a cancelled pipeline
// stops mid-file rather than finishing a long write.
func (e *CleanExporter) ExportCleanData(ctx context.Context, records []domain.Record) error {
	stream, err := e.csvWriter.CreateStreamWriter(e.paths.CleanDataCSV, cleanColumns)
	if err != nil {
		return fmt.Errorf("failed to create clean data writer: %w", err)
	}

	for i := range records {
		if i%cleanBatchSize == 0 && ctx.Err() != nil {
			stream.Close()
			return ctx.Err()
		}
		if err := stream.WriteRecord(cleanRecordRow(&records[i])); err != nil {
			stream.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close clean data writer: %w", err)
	}
	return nil
}

// LoadCleanData streams the clean-data artifact back into memory so
// later stages can run without the stages that produced it. Derived
// rates are read as written; nothing is recomputed here.
func LoadCleanData(path string) (*domain.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open clean data: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read clean data header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if i == 0 {
			key = strings.TrimPrefix(key, "\uFEFF")
		}
		index[key] = i
	}

	ds := &domain.Dataset{Source: path}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read clean data row %d: %w", line, err)
		}

		date, err := time.Parse("2006-01-02", cell(row, index, "date"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse date on row %d: %w", line, err)
		}

		ds.Records = append(ds.Records, domain.Record{
			ISOCode:   cell(row, index, "iso_code"),
			Continent: cell(row, index, "continent"),
			Location:  cell(row, index, "location"),
			Date:      date,

			TotalCases:       domain.Float(cellFloat(row, index, "total_cases")),
			NewCases:         domain.Float(cellFloat(row, index, "new_cases")),
			NewCasesSmoothed: cellNullable(row, index, "new_cases_smoothed"),

			TotalDeaths:       domain.Float(cellFloat(row, index, "total_deaths")),
			NewDeaths:         domain.Float(cellFloat(row, index, "new_deaths")),
			NewDeathsSmoothed: cellNullable(row, index, "new_deaths_smoothed"),

			TotalVaccinations:     domain.Float(cellFloat(row, index, "total_vaccinations")),
			PeopleVaccinated:      domain.Float(cellFloat(row, index, "people_vaccinated")),
			PeopleFullyVaccinated: domain.Float(cellFloat(row, index, "people_fully_vaccinated")),

			StringencyIndex: cellNullable(row, index, "stringency_index"),
			Population:      cellNullable(row, index, "population"),
			MedianAge:       cellNullable(row, index, "median_age"),

			CaseFatalityRate:          cellFloat(row, index, "case_fatality_rate"),
			VaccinationRatePerHundred: cellFloat(row, index, "vaccination_rate_per_hundred"),
			FullyVaccinatedPerHundred: cellFloat(row, index, "fully_vaccinated_per_hundred"),
			TotalCasesPerMillion:      cellFloat(row, index, "total_cases_per_million"),
			TotalDeathsPerMillion:     cellFloat(row, index, "total_deaths_per_million"),
		})
	}

	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("clean data %s holds no rows", path)
	}
	return ds, nil
}

// cleanRecordRow converts a cleaned record to a CSV row. Daily and
// cumulative metrics are always present on country rows after cleaning;
// the smoothed and static columns stay empty when the source never
// reported them, which on aggregate rows is what tells the trend
// extraction to recompute instead of trusting a filled zero.
func cleanRecordRow(r *domain.Record) []string {
	return []string{
		r.ISOCode,
		r.Continent,
		r.Location,
		formatDate(r.Date),
		formatFloat(r.TotalCases.Float64()),
		formatFloat(r.NewCases.Float64()),
		formatNullable(r.NewCasesSmoothed.Value, r.NewCasesSmoothed.Valid),
		formatFloat(r.TotalDeaths.Float64()),
		formatFloat(r.NewDeaths.Float64()),
		formatNullable(r.NewDeathsSmoothed.Value, r.NewDeathsSmoothed.Valid),
		formatFloat(r.TotalVaccinations.Float64()),
		formatFloat(r.PeopleVaccinated.Float64()),
		formatFloat(r.PeopleFullyVaccinated.Float64()),
		formatNullable(r.StringencyIndex.Value, r.StringencyIndex.Valid),
		formatNullable(r.Population.Value, r.Population.Valid),
		formatNullable(r.MedianAge.Value, r.MedianAge.Valid),
		formatRate(r.CaseFatalityRate),
		formatRate(r.VaccinationRatePerHundred),
		formatRate(r.FullyVaccinatedPerHundred),
		formatFloat(r.TotalCasesPerMillion),
		formatFloat(r.TotalDeathsPerMillion),
	}
}

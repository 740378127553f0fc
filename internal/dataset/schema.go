package dataset

import (
	"fmt"
	"strings"
)

// Column names of the source CSV this pipeline consumes. The upstream
// feed carries dozens more columns; anything not listed here is ignored.
const (
	ColISOCode   = "iso_code"
	ColContinent = "continent"
	ColLocation  = "location"
	ColDate      = "date"

	ColTotalCases       = "total_cases"
	ColNewCases         = "new_cases"
	ColNewCasesSmoothed = "new_cases_smoothed"

	ColTotalDeaths       = "total_deaths"
	ColNewDeaths         = "new_deaths"
	ColNewDeathsSmoothed = "new_deaths_smoothed"

	ColTotalVaccinations     = "total_vaccinations"
	ColPeopleVaccinated      = "people_vaccinated"
	ColPeopleFullyVaccinated = "people_fully_vaccinated"

	ColStringencyIndex = "stringency_index"
	ColPopulation      = "population"
	ColMedianAge       = "median_age"
)

// requiredColumns must all be present in the header for a parse to
// proceed. Every other consumed column is optional and parses as NULL
// when the header lacks it.
var requiredColumns = []string{ColISOCode, ColLocation, ColDate}

// Schema maps consumed column names to their positions in the header
// row. Positions are discovered dynamically so upstream column
// reordering does not break the parser.
type Schema struct {
	columns map[string]int
}

// BuildSchema maps the header row into column positions. Header names
// are matched case-insensitively after trimming whitespace and a
// possible UTF-8 BOM on the first cell.
func BuildSchema(header []string) (*Schema, error) {
	columns := make(map[string]int, len(header))

	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if i == 0 {
			key = strings.TrimPrefix(key, "\uFEFF")
		}
		if key == "" {
			continue
		}
		// First occurrence wins on duplicate headers
		if _, exists := columns[key]; !exists {
			columns[key] = i
		}
	}

	for _, col := range requiredColumns {
		if _, exists := columns[col]; !exists {
			return nil, fmt.Errorf("could not find required column: %s", col)
		}
	}

	return &Schema{columns: columns}, nil
}

// Index returns the position of a column, or -1 when the header does
// not carry it.
func (s *Schema) Index(column string) int {
	if idx, exists := s.columns[column]; exists {
		return idx
	}
	return -1
}

// Has reports whether the header carries the column.
func (s *Schema) Has(column string) bool {
	_, exists := s.columns[column]
	return exists
}

// Field returns the trimmed cell value for a column, or "" when the
// column is absent or the row is too short to reach it.
func (s *Schema) Field(row []string, column string) string {
	idx, exists := s.columns[column]
	if !exists || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

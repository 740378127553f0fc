package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/shared/testutil"
	"covidcli/pkg/contracts/domain"
)

func TestProfile_CountsAndCoverage(t *testing.T) {
	fixtures := testutil.NewDatasetFixtures("")

	p := Profile(fixtures.SampleDataset())
	require.NotNil(t, p)

	assert.Equal(t, 7, p.RowCount)
	assert.Equal(t, 3, p.LocationCount)
	assert.Equal(t, 2, p.AggregateRows)
	assert.Equal(t, testutil.Day(2021, 1, 1), p.FirstDate)
	assert.Equal(t, testutil.Day(2021, 1, 3), p.LastDate)
	assert.WithinDuration(t, time.Now().UTC(), p.GeneratedAt, 5*time.Second)
}

func TestProfile_MissingColumnCounts(t *testing.T) {
	fixtures := testutil.NewDatasetFixtures("")

	p := Profile(fixtures.SampleDataset())

	// Sorted by missing count descending, then column name. Columns
	// with no gaps (population, median_age) are omitted.
	want := []domain.ColumnMissing{
		{Column: "continent", Missing: 2},
		{Column: "stringency_index", Missing: 2},
		{Column: "total_vaccinations", Missing: 2},
		{Column: "new_cases", Missing: 1},
		{Column: "new_cases_smoothed", Missing: 1},
		{Column: "new_deaths", Missing: 1},
		{Column: "new_deaths_smoothed", Missing: 1},
		{Column: "people_fully_vaccinated", Missing: 1},
		{Column: "people_vaccinated", Missing: 1},
		{Column: "total_cases", Missing: 1},
		{Column: "total_deaths", Missing: 1},
	}
	assert.Equal(t, want, p.Missing)
}

func TestProfile_Empty(t *testing.T) {
	for _, ds := range []*domain.Dataset{nil, {}} {
		p := Profile(ds)
		require.NotNil(t, p)
		assert.Zero(t, p.RowCount)
		assert.Zero(t, p.LocationCount)
		assert.Empty(t, p.Missing)
		assert.True(t, p.FirstDate.IsZero())
		assert.False(t, p.GeneratedAt.IsZero())
	}
}

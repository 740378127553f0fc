package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/shared/testutil"
	"covidcli/pkg/contracts/domain"
)

func correlationRow(location string, stringency, newCases, cfr, medianAge float64) domain.Record {
	return domain.Record{
		ISOCode:          location[:3],
		Continent:        "Europe",
		Location:         location,
		Date:             testutil.Day(2021, 6, 1),
		NewCases:         domain.Float(newCases),
		StringencyIndex:  domain.Float(stringency),
		MedianAge:        domain.Float(medianAge),
		Population:       domain.Float(1000000),
		CaseFatalityRate: cfr,
	}
}

func TestCorrelationSnapshot_UsesLatestDateOnly(t *testing.T) {
	rows := []domain.Record{
		correlationRow("Alpha", 10, 100, 3, 30),
		correlationRow("Bravo", 20, 200, 2, 40),
		correlationRow("Charlie", 30, 300, 1, 50),
	}
	stale := correlationRow("Delta", 99, 999, 9, 99)
	stale.Date = testutil.Day(2021, 5, 31)
	rows = append(rows, stale)

	snap := CorrelationSnapshot(rows)
	require.NotNil(t, snap)
	assert.Equal(t, testutil.Day(2021, 6, 1), snap.Date)
	require.Len(t, snap.Points, 3)
	for _, p := range snap.Points {
		assert.NotEqual(t, "Delta", p.Location)
	}
}

func TestCorrelationSnapshot_DropsIncompleteRows(t *testing.T) {
	complete := correlationRow("Alpha", 10, 100, 3, 30)
	noStringency := correlationRow("Bravo", 0, 200, 2, 40)
	noStringency.StringencyIndex = domain.NullFloat{}
	noMedianAge := correlationRow("Charlie", 30, 300, 1, 0)
	noMedianAge.MedianAge = domain.NullFloat{}
	noPopulation := correlationRow("Delta", 40, 400, 4, 60)
	noPopulation.Population = domain.NullFloat{}

	snap := CorrelationSnapshot([]domain.Record{complete, noStringency, noMedianAge, noPopulation})
	require.Len(t, snap.Points, 1)
	assert.Equal(t, "Alpha", snap.Points[0].Location)
	assert.Equal(t, 10.0, snap.Points[0].StringencyIndex)
	assert.Equal(t, 100.0, snap.Points[0].NewCases)
	assert.Equal(t, 3.0, snap.Points[0].CaseFatalityRate)
	assert.Equal(t, 30.0, snap.Points[0].MedianAge)
	assert.Equal(t, 1000000.0, snap.Points[0].Population)

	// A single usable point is not enough for a coefficient.
	assert.Zero(t, snap.StringencyNewCasesR)
	assert.Zero(t, snap.MedianAgeCFRR)
}

func TestCorrelationSnapshot_Coefficients(t *testing.T) {
	// Stringency and new cases rise together; median age and case
	// fatality rate move in opposite directions.
	rows := []domain.Record{
		correlationRow("Alpha", 10, 100, 3, 30),
		correlationRow("Bravo", 20, 200, 2, 40),
		correlationRow("Charlie", 30, 300, 1, 50),
	}

	snap := CorrelationSnapshot(rows)
	require.Len(t, snap.Points, 3)
	assert.InDelta(t, 1.0, snap.StringencyNewCasesR, 1e-9)
	assert.InDelta(t, -1.0, snap.MedianAgeCFRR, 1e-9)
}

func TestCorrelationSnapshot_Empty(t *testing.T) {
	snap := CorrelationSnapshot(nil)
	require.NotNil(t, snap)
	assert.True(t, snap.Date.IsZero())
	assert.Empty(t, snap.Points)
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		ys   []float64
		want float64
	}{
		{name: "perfect positive", xs: []float64{1, 2, 3}, ys: []float64{2, 4, 6}, want: 1},
		{name: "perfect negative", xs: []float64{1, 2, 3}, ys: []float64{6, 4, 2}, want: -1},
		{name: "partial", xs: []float64{1, 2, 3, 4, 5}, ys: []float64{2, 1, 4, 3, 5}, want: 0.8},
		{name: "zero variance", xs: []float64{1, 2, 3}, ys: []float64{5, 5, 5}, want: 0},
		{name: "length mismatch", xs: []float64{1, 2, 3}, ys: []float64{1, 2}, want: 0},
		{name: "single point", xs: []float64{1}, ys: []float64{2}, want: 0},
		{name: "empty", xs: nil, ys: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Pearson(tt.xs, tt.ys), 1e-9)
		})
	}
}

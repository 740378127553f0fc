package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/shared/testutil"
	"covidcli/pkg/contracts/domain"
)

func insightsTrendFixture() []domain.GlobalTrendPoint {
	return []domain.GlobalTrendPoint{
		{Date: testutil.Day(2021, 1, 1), NewCases: 100000, TotalCases: 49000000, TotalDeaths: 990000, TotalVaccinations: 2400000000},
		{Date: testutil.Day(2021, 1, 2), NewCases: 900000, TotalCases: 49900000, TotalDeaths: 995000, TotalVaccinations: 2450000000},
		{Date: testutil.Day(2021, 1, 3), NewCases: 400000, TotalCases: 50000000, TotalDeaths: 1000000, TotalVaccinations: 2500000000},
	}
}

func insightsRankingFixture() map[domain.Metric][]domain.RankingEntry {
	return map[domain.Metric][]domain.RankingEntry{
		domain.MetricTotalCases: {
			{Rank: 1, Location: "United States", ISOCode: "USA", Metric: domain.MetricTotalCases, Value: 103400000},
		},
		domain.MetricTotalDeaths: {
			{Rank: 1, Location: "United States", ISOCode: "USA", Metric: domain.MetricTotalDeaths, Value: 1120000},
		},
		domain.MetricFullyVaccinatedPerHundred: {
			{Rank: 1, Location: "Portugal", ISOCode: "PRT", Metric: domain.MetricFullyVaccinatedPerHundred, Value: 95.1},
		},
	}
}

func TestBuildInsights_HeadlineNumbers(t *testing.T) {
	snapshot := []domain.LocationSnapshot{
		{Location: "Brazil", Date: testutil.Day(2021, 1, 2)},
		{Location: "United States", Date: testutil.Day(2021, 1, 3)},
	}
	corr := &domain.CorrelationSnapshot{
		Points:              make([]domain.CorrelationPoint, 3),
		StringencyNewCasesR: -0.07,
		MedianAgeCFRR:       0.48,
	}

	ins := BuildInsights(insightsTrendFixture(), snapshot, insightsRankingFixture(), corr)
	require.NotNil(t, ins)

	assert.Equal(t, float64(50000000), ins.GlobalTotalCases)
	assert.Equal(t, float64(1000000), ins.GlobalTotalDeaths)
	assert.Equal(t, float64(2500000000), ins.GlobalTotalVaccinations)
	assert.InDelta(t, 2.0, ins.GlobalCaseFatalityRate, 1e-9)

	assert.Equal(t, float64(900000), ins.PeakDailyCases)
	assert.Equal(t, testutil.Day(2021, 1, 2), ins.PeakDailyCasesDate)
	assert.Equal(t, testutil.Day(2021, 1, 3), ins.SnapshotDate)

	require.NotNil(t, ins.MostCases)
	assert.Equal(t, "United States", ins.MostCases.Location)
	require.NotNil(t, ins.MostDeaths)
	assert.Equal(t, float64(1120000), ins.MostDeaths.Value)
	require.NotNil(t, ins.MostVaccinated)
	assert.Equal(t, "Portugal", ins.MostVaccinated.Location)

	assert.WithinDuration(t, time.Now().UTC(), ins.GeneratedAt, 5*time.Second)
}

func TestBuildInsights_Observations(t *testing.T) {
	corr := &domain.CorrelationSnapshot{
		Points:              make([]domain.CorrelationPoint, 3),
		StringencyNewCasesR: -0.07,
		MedianAgeCFRR:       0.48,
	}

	ins := BuildInsights(insightsTrendFixture(), nil, insightsRankingFixture(), corr)
	require.Len(t, ins.Observations, 4)

	assert.Contains(t, ins.Observations[0], "peaked at 900.0 thousand on 2021-01-02")
	assert.Contains(t, ins.Observations[0], "2.5 billion doses")
	assert.Contains(t, ins.Observations[1], "United States reports the most total cases (103.4 million)")
	assert.Contains(t, ins.Observations[2], "uneven distribution of cases, deaths, and vaccination progress")
	assert.Contains(t, ins.Observations[3], "r=0.48")
	assert.Contains(t, ins.Observations[3], "r=-0.07")
}

func TestBuildInsights_FurtherWork(t *testing.T) {
	ins := BuildInsights(nil, nil, nil, nil)
	assert.Equal(t, []string{
		"Analyzing specific waves or periods of the pandemic.",
		"Investigating the impact of specific policy interventions.",
		"Building predictive models for future trends.",
		"Deeper dives into specific country data and local factors.",
	}, ins.FurtherWork)
}

func TestBuildInsights_FallbackObservations(t *testing.T) {
	ins := BuildInsights(nil, nil, nil, nil)
	require.Len(t, ins.Observations, 4)

	assert.Contains(t, ins.Observations[0], "peaks and troughs in daily new cases")
	assert.Contains(t, ins.Observations[1], "identify countries most affected")
	assert.Contains(t, ins.Observations[3], "expected link between median age and case fatality rate")

	assert.Zero(t, ins.PeakDailyCases)
	assert.Nil(t, ins.MostCases)
	assert.True(t, ins.SnapshotDate.IsZero())
}

func TestHumanizeCount(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{1230000000, "1.2 billion"},
		{4560000, "4.6 million"},
		{45310, "45.3 thousand"},
		{999, "999"},
		{0, "0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, humanizeCount(tt.value))
	}
}

package domain

import (
	"fmt"
	"time"
)

// Metric identifies a ranked or plotted dataset column.
type Metric string

const (
	MetricTotalCases                Metric = "total_cases"
	MetricTotalDeaths               Metric = "total_deaths"
	MetricTotalCasesPerMillion      Metric = "total_cases_per_million"
	MetricTotalDeathsPerMillion     Metric = "total_deaths_per_million"
	MetricNewCases                  Metric = "new_cases"
	MetricNewDeaths                 Metric = "new_deaths"
	MetricNewCasesSmoothed          Metric = "new_cases_smoothed"
	MetricNewDeathsSmoothed         Metric = "new_deaths_smoothed"
	MetricTotalVaccinations         Metric = "total_vaccinations"
	MetricVaccinationRate           Metric = "vaccination_rate_per_hundred"
	MetricFullyVaccinatedPerHundred Metric = "fully_vaccinated_per_hundred"
	MetricCaseFatalityRate          Metric = "case_fatality_rate"
)

// ParseMetric validates a metric name from user input.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricTotalCases, MetricTotalDeaths, MetricTotalCasesPerMillion,
		MetricTotalDeathsPerMillion, MetricNewCases, MetricNewDeaths,
		MetricNewCasesSmoothed, MetricNewDeathsSmoothed,
		MetricTotalVaccinations, MetricVaccinationRate,
		MetricFullyVaccinatedPerHundred, MetricCaseFatalityRate:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// LocationSnapshot is the latest observation for one location together
// with its derived metrics. One snapshot row exists per location.
type LocationSnapshot struct {
	ISOCode   string    `json:"iso_code"`
	Continent string    `json:"continent"`
	Location  string    `json:"location"`
	Date      time.Time `json:"date"`

	TotalCases            float64 `json:"total_cases"`
	TotalDeaths           float64 `json:"total_deaths"`
	NewCases              float64 `json:"new_cases"`
	NewDeaths             float64 `json:"new_deaths"`
	NewCasesSmoothed      float64 `json:"new_cases_smoothed"`
	NewDeathsSmoothed     float64 `json:"new_deaths_smoothed"`
	TotalVaccinations     float64 `json:"total_vaccinations"`
	PeopleVaccinated      float64 `json:"people_vaccinated"`
	PeopleFullyVaccinated float64 `json:"people_fully_vaccinated"`

	CaseFatalityRate          float64 `json:"case_fatality_rate"`
	VaccinationRatePerHundred float64 `json:"vaccination_rate_per_hundred"`
	FullyVaccinatedPerHundred float64 `json:"fully_vaccinated_per_hundred"`
	TotalCasesPerMillion      float64 `json:"total_cases_per_million"`
	TotalDeathsPerMillion     float64 `json:"total_deaths_per_million"`

	Population NullFloat `json:"population"`
	MedianAge  NullFloat `json:"median_age"`
}

// MetricValue returns the snapshot's value for a metric.
func (s *LocationSnapshot) MetricValue(m Metric) float64 {
	switch m {
	case MetricTotalCases:
		return s.TotalCases
	case MetricTotalDeaths:
		return s.TotalDeaths
	case MetricTotalCasesPerMillion:
		return s.TotalCasesPerMillion
	case MetricTotalDeathsPerMillion:
		return s.TotalDeathsPerMillion
	case MetricNewCases:
		return s.NewCases
	case MetricNewDeaths:
		return s.NewDeaths
	case MetricNewCasesSmoothed:
		return s.NewCasesSmoothed
	case MetricNewDeathsSmoothed:
		return s.NewDeathsSmoothed
	case MetricTotalVaccinations:
		return s.TotalVaccinations
	case MetricVaccinationRate:
		return s.VaccinationRatePerHundred
	case MetricFullyVaccinatedPerHundred:
		return s.FullyVaccinatedPerHundred
	case MetricCaseFatalityRate:
		return s.CaseFatalityRate
	}
	return 0
}

// GlobalTrendPoint is one day of the worldwide series.
type GlobalTrendPoint struct {
	Date              time.Time `json:"date"`
	NewCases          float64   `json:"new_cases"`
	NewDeaths         float64   `json:"new_deaths"`
	NewCasesAvg7      float64   `json:"new_cases_avg7"`
	NewDeathsAvg7     float64   `json:"new_deaths_avg7"`
	TotalCases        float64   `json:"total_cases"`
	TotalDeaths       float64   `json:"total_deaths"`
	TotalVaccinations float64   `json:"total_vaccinations"`
}

// RankingEntry is one row of a top-N ranking for a metric.
type RankingEntry struct {
	Rank     int     `json:"rank"`
	Location string  `json:"location"`
	ISOCode  string  `json:"iso_code"`
	Metric   Metric  `json:"metric"`
	Value    float64 `json:"value"`
}

// CorrelationPoint is one location's observation at the snapshot date,
// complete in every column the scatter analyses need.
type CorrelationPoint struct {
	Location         string  `json:"location"`
	ISOCode          string  `json:"iso_code"`
	Continent        string  `json:"continent"`
	StringencyIndex  float64 `json:"stringency_index"`
	NewCases         float64 `json:"new_cases"`
	CaseFatalityRate float64 `json:"case_fatality_rate"`
	MedianAge        float64 `json:"median_age"`
	Population       float64 `json:"population"`
}

// CorrelationSnapshot carries the scatter observations for the latest
// date plus the Pearson coefficients of the two studied pairs.
type CorrelationSnapshot struct {
	Date                time.Time          `json:"date"`
	Points              []CorrelationPoint `json:"points"`
	StringencyNewCasesR float64            `json:"stringency_new_cases_r"`
	MedianAgeCFRR       float64            `json:"median_age_cfr_r"`
}

// ColumnMissing reports how many values a column is missing.
type ColumnMissing struct {
	Column  string `json:"column"`
	Missing int    `json:"missing"`
}

// DatasetProfile describes the raw dataset before cleaning: its size,
// date coverage, and which columns arrive incomplete.
type DatasetProfile struct {
	RowCount      int             `json:"row_count"`
	LocationCount int             `json:"location_count"`
	AggregateRows int             `json:"aggregate_rows"`
	FirstDate     time.Time       `json:"first_date"`
	LastDate      time.Time       `json:"last_date"`
	Missing       []ColumnMissing `json:"missing"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// Insights is the generated summary report: headline numbers plus the
// narrative observations printed at the end of an analysis run.
type Insights struct {
	GeneratedAt  time.Time `json:"generated_at"`
	SnapshotDate time.Time `json:"snapshot_date"`

	GlobalTotalCases        float64   `json:"global_total_cases"`
	GlobalTotalDeaths       float64   `json:"global_total_deaths"`
	GlobalTotalVaccinations float64   `json:"global_total_vaccinations"`
	GlobalCaseFatalityRate  float64   `json:"global_case_fatality_rate"`
	PeakDailyCases          float64   `json:"peak_daily_cases"`
	PeakDailyCasesDate      time.Time `json:"peak_daily_cases_date"`

	MostCases      *RankingEntry `json:"most_cases,omitempty"`
	MostDeaths     *RankingEntry `json:"most_deaths,omitempty"`
	MostVaccinated *RankingEntry `json:"most_vaccinated,omitempty"`

	Observations []string `json:"observations"`
	FurtherWork  []string `json:"further_work,omitempty"`
}

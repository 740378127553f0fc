package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"covidcli/pkg/contracts/domain"
)

// DatasetFixtures provides test data and utilities for dataset testing
type DatasetFixtures struct {
	TestDataDir string
}

// NewDatasetFixtures creates a new fixtures manager
func NewDatasetFixtures(testDataDir string) *DatasetFixtures {
	return &DatasetFixtures{
		TestDataDir: testDataDir,
	}
}

// SampleCSVHeader is the column set the fixtures emit, a subset of the
// source feed large enough to exercise parsing, cleaning and analytics.
const SampleCSVHeader = "iso_code,continent,location,date,total_cases,new_cases,new_cases_smoothed,total_deaths,new_deaths,new_deaths_smoothed,total_vaccinations,people_vaccinated,people_fully_vaccinated,stringency_index,population,median_age"

// SampleCSV returns a small raw CSV covering two countries plus the World
// aggregate, with gaps in cumulative columns and empty daily cells.
func (f *DatasetFixtures) SampleCSV() string {
	return SampleCSVHeader + "\n" +
		"USA,North America,United States,2021-01-01,20000000,150000,145000.5,350000,2000,1900.25,10000000,8000000,2000000,71.3,331002651,38.3\n" +
		"USA,North America,United States,2021-01-02,20150000,150000,146000.0,352000,2000,1920.00,,8100000,2100000,71.3,331002651,38.3\n" +
		"USA,North America,United States,2021-01-03,,,,,,,10500000,8200000,2200000,71.3,331002651,38.3\n" +
		"BRA,South America,Brazil,2021-01-01,7700000,50000,48000.0,195000,1000,950.00,,,,65.2,212559417,33.5\n" +
		"BRA,South America,Brazil,2021-01-02,7750000,50000,48500.0,196000,1000,960.00,500000,400000,100000,65.2,212559417,33.5\n" +
		"OWID_WRL,,World,2021-01-01,83000000,600000,580000.0,1800000,10000,9500.00,25000000,20000000,5000000,,7794798739,30.9\n" +
		"OWID_WRL,,World,2021-01-02,83600000,600000,585000.0,1810000,10000,9600.00,26000000,20800000,5200000,,7794798739,30.9\n"
}

// MalformedCSV returns a CSV where most rows fail to parse, for testing
// the row error threshold.
func (f *DatasetFixtures) MalformedCSV() string {
	return SampleCSVHeader + "\n" +
		"USA,North America,United States,not-a-date,1,1,1,1,1,1,1,1,1,1,1,1\n" +
		"BRA,South America,Brazil,also-bad,1,1,1,1,1,1,1,1,1,1,1,1\n" +
		"FRA,Europe,France,2021-01-01,100,10,9.5,5,1,0.9,50,40,10,60.0,67000000,42.0\n"
}

// WriteSampleCSV writes the sample CSV into dir and returns the file path.
func (f *DatasetFixtures) WriteSampleCSV(dir string) (string, error) {
	path := filepath.Join(dir, "owid-covid-data.csv")
	if err := os.WriteFile(path, []byte(f.SampleCSV()), 0o644); err != nil {
		return "", fmt.Errorf("write sample csv: %w", err)
	}
	return path, nil
}

// SampleDataset returns the parsed equivalent of SampleCSV, before cleaning.
func (f *DatasetFixtures) SampleDataset() *domain.Dataset {
	return &domain.Dataset{
		Source:  "fixture",
		Records: f.SampleRecords(),
	}
}

// SampleRecords returns records matching SampleCSV row for row.
func (f *DatasetFixtures) SampleRecords() []domain.Record {
	return []domain.Record{
		{
			ISOCode: "USA", Continent: "North America", Location: "United States",
			Date:              Day(2021, 1, 1),
			TotalCases:        domain.Float(20000000),
			NewCases:          domain.Float(150000),
			NewCasesSmoothed:  domain.Float(145000.5),
			TotalDeaths:       domain.Float(350000),
			NewDeaths:         domain.Float(2000),
			NewDeathsSmoothed: domain.Float(1900.25),
			TotalVaccinations: domain.Float(10000000),
			PeopleVaccinated:  domain.Float(8000000),
			PeopleFullyVaccinated: domain.Float(2000000),
			StringencyIndex:   domain.Float(71.3),
			Population:        domain.Float(331002651),
			MedianAge:         domain.Float(38.3),
		},
		{
			ISOCode: "USA", Continent: "North America", Location: "United States",
			Date:              Day(2021, 1, 2),
			TotalCases:        domain.Float(20150000),
			NewCases:          domain.Float(150000),
			NewCasesSmoothed:  domain.Float(146000),
			TotalDeaths:       domain.Float(352000),
			NewDeaths:         domain.Float(2000),
			NewDeathsSmoothed: domain.Float(1920),
			PeopleVaccinated:  domain.Float(8100000),
			PeopleFullyVaccinated: domain.Float(2100000),
			StringencyIndex:   domain.Float(71.3),
			Population:        domain.Float(331002651),
			MedianAge:         domain.Float(38.3),
		},
		{
			ISOCode: "USA", Continent: "North America", Location: "United States",
			Date:              Day(2021, 1, 3),
			TotalVaccinations: domain.Float(10500000),
			PeopleVaccinated:  domain.Float(8200000),
			PeopleFullyVaccinated: domain.Float(2200000),
			StringencyIndex:   domain.Float(71.3),
			Population:        domain.Float(331002651),
			MedianAge:         domain.Float(38.3),
		},
		{
			ISOCode: "BRA", Continent: "South America", Location: "Brazil",
			Date:              Day(2021, 1, 1),
			TotalCases:        domain.Float(7700000),
			NewCases:          domain.Float(50000),
			NewCasesSmoothed:  domain.Float(48000),
			TotalDeaths:       domain.Float(195000),
			NewDeaths:         domain.Float(1000),
			NewDeathsSmoothed: domain.Float(950),
			StringencyIndex:   domain.Float(65.2),
			Population:        domain.Float(212559417),
			MedianAge:         domain.Float(33.5),
		},
		{
			ISOCode: "BRA", Continent: "South America", Location: "Brazil",
			Date:              Day(2021, 1, 2),
			TotalCases:        domain.Float(7750000),
			NewCases:          domain.Float(50000),
			NewCasesSmoothed:  domain.Float(48500),
			TotalDeaths:       domain.Float(196000),
			NewDeaths:         domain.Float(1000),
			NewDeathsSmoothed: domain.Float(960),
			TotalVaccinations: domain.Float(500000),
			PeopleVaccinated:  domain.Float(400000),
			PeopleFullyVaccinated: domain.Float(100000),
			StringencyIndex:   domain.Float(65.2),
			Population:        domain.Float(212559417),
			MedianAge:         domain.Float(33.5),
		},
		{
			ISOCode: "OWID_WRL", Continent: "", Location: "World",
			Date:              Day(2021, 1, 1),
			TotalCases:        domain.Float(83000000),
			NewCases:          domain.Float(600000),
			NewCasesSmoothed:  domain.Float(580000),
			TotalDeaths:       domain.Float(1800000),
			NewDeaths:         domain.Float(10000),
			NewDeathsSmoothed: domain.Float(9500),
			TotalVaccinations: domain.Float(25000000),
			PeopleVaccinated:  domain.Float(20000000),
			PeopleFullyVaccinated: domain.Float(5000000),
			Population:        domain.Float(7794798739),
			MedianAge:         domain.Float(30.9),
		},
		{
			ISOCode: "OWID_WRL", Continent: "", Location: "World",
			Date:              Day(2021, 1, 2),
			TotalCases:        domain.Float(83600000),
			NewCases:          domain.Float(600000),
			NewCasesSmoothed:  domain.Float(585000),
			TotalDeaths:       domain.Float(1810000),
			NewDeaths:         domain.Float(10000),
			NewDeathsSmoothed: domain.Float(9600),
			TotalVaccinations: domain.Float(26000000),
			PeopleVaccinated:  domain.Float(20800000),
			PeopleFullyVaccinated: domain.Float(5200000),
			Population:        domain.Float(7794798739),
			MedianAge:         domain.Float(30.9),
		},
	}
}

// Day builds a UTC midnight timestamp, the granularity the dataset uses.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

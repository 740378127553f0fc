package analytics

import (
	"sort"
	"time"

	"covidcli/pkg/contracts/domain"
)

// WorldLocation is the aggregate location the worldwide series prefers
// over summing countries manually.
const WorldLocation = "World"

// trendWindow is the rolling-average window for daily series.
const trendWindow = 7

// GlobalTrends builds the worldwide daily series. When World aggregate
// rows exist they are used directly, taking their reported smoothed
// series when present; otherwise the country view is summed per date
// and the 7-day averages are recomputed from the sums.
func GlobalTrends(world []domain.Record, countries []domain.Record) []domain.GlobalTrendPoint {
	if len(world) > 0 {
		return worldTrends(world)
	}
	return summedTrends(countries)
}

func worldTrends(world []domain.Record) []domain.GlobalTrendPoint {
	rows := make([]domain.Record, len(world))
	copy(rows, world)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})

	points := make([]domain.GlobalTrendPoint, len(rows))
	newCases := make([]float64, len(rows))
	newDeaths := make([]float64, len(rows))
	for i, r := range rows {
		newCases[i] = r.NewCases.Float64()
		newDeaths[i] = r.NewDeaths.Float64()
		points[i] = domain.GlobalTrendPoint{
			Date:              r.Date,
			NewCases:          newCases[i],
			NewDeaths:         newDeaths[i],
			TotalCases:        r.TotalCases.Float64(),
			TotalDeaths:       r.TotalDeaths.Float64(),
			TotalVaccinations: r.TotalVaccinations.Float64(),
		}
	}

	// Reported smoothed series win over recomputation; they encode
	// upstream corrections a plain rolling mean cannot reproduce.
	casesAvg := smoothedOrRolling(rows, newCases, func(r domain.Record) domain.NullFloat {
		return r.NewCasesSmoothed
	})
	deathsAvg := smoothedOrRolling(rows, newDeaths, func(r domain.Record) domain.NullFloat {
		return r.NewDeathsSmoothed
	})
	for i := range points {
		points[i].NewCasesAvg7 = casesAvg[i]
		points[i].NewDeathsAvg7 = deathsAvg[i]
	}
	return points
}

func smoothedOrRolling(rows []domain.Record, daily []float64, smoothed func(domain.Record) domain.NullFloat) []float64 {
	reported := false
	for _, r := range rows {
		if smoothed(r).Valid {
			reported = true
			break
		}
	}
	if !reported {
		return RollingMean(daily, trendWindow)
	}

	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = smoothed(r).Float64()
	}
	return out
}

func summedTrends(countries []domain.Record) []domain.GlobalTrendPoint {
	byDate := make(map[time.Time]*domain.GlobalTrendPoint, 1024)
	for _, r := range countries {
		p := byDate[r.Date]
		if p == nil {
			p = &domain.GlobalTrendPoint{Date: r.Date}
			byDate[r.Date] = p
		}
		p.NewCases += r.NewCases.Float64()
		p.NewDeaths += r.NewDeaths.Float64()
		p.TotalCases += r.TotalCases.Float64()
		p.TotalDeaths += r.TotalDeaths.Float64()
		p.TotalVaccinations += r.TotalVaccinations.Float64()
	}

	points := make([]domain.GlobalTrendPoint, 0, len(byDate))
	for _, p := range byDate {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	newCases := make([]float64, len(points))
	newDeaths := make([]float64, len(points))
	for i, p := range points {
		newCases[i] = p.NewCases
		newDeaths[i] = p.NewDeaths
	}
	casesAvg := RollingMean(newCases, trendWindow)
	deathsAvg := RollingMean(newDeaths, trendWindow)
	for i := range points {
		points[i].NewCasesAvg7 = casesAvg[i]
		points[i].NewDeathsAvg7 = deathsAvg[i]
	}
	return points
}

// RollingMean computes the trailing mean with a minimum period of one:
// the first k<window points average over the k values seen so far.
func RollingMean(values []float64, window int) []float64 {
	if window <= 0 {
		window = 1
	}

	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

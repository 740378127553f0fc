package analytics

import (
	"math"
	"time"

	"covidcli/pkg/contracts/domain"
)

// CorrelationSnapshot cross-sections the country view at its latest
// date and keeps only locations complete in every studied column.
// Stringency index, median age, and population are never filled during
// cleaning, so rows missing them are dropped rather than read as zero.
func CorrelationSnapshot(countries []domain.Record) *domain.CorrelationSnapshot {
	if len(countries) == 0 {
		return &domain.CorrelationSnapshot{}
	}

	var latest time.Time
	for _, r := range countries {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}

	points := make([]domain.CorrelationPoint, 0, 128)
	for _, r := range countries {
		if !r.Date.Equal(latest) {
			continue
		}
		if !r.StringencyIndex.Valid || !r.MedianAge.Valid || !r.Population.Valid {
			continue
		}
		points = append(points, domain.CorrelationPoint{
			Location:         r.Location,
			ISOCode:          r.ISOCode,
			Continent:        r.Continent,
			StringencyIndex:  r.StringencyIndex.Float64(),
			NewCases:         r.NewCases.Float64(),
			CaseFatalityRate: r.CaseFatalityRate,
			MedianAge:        r.MedianAge.Float64(),
			Population:       r.Population.Float64(),
		})
	}

	snap := &domain.CorrelationSnapshot{Date: latest, Points: points}
	if len(points) >= 2 {
		stringency := make([]float64, len(points))
		newCases := make([]float64, len(points))
		medianAge := make([]float64, len(points))
		cfr := make([]float64, len(points))
		for i, p := range points {
			stringency[i] = p.StringencyIndex
			newCases[i] = p.NewCases
			medianAge[i] = p.MedianAge
			cfr[i] = p.CaseFatalityRate
		}
		snap.StringencyNewCasesR = Pearson(stringency, newCases)
		snap.MedianAgeCFRR = Pearson(medianAge, cfr)
	}
	return snap
}

// Pearson computes the sample correlation coefficient of two equal
// length series. Degenerate inputs, fewer than two points or a series
// with zero variance, return 0.
func Pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n != len(ys) || n < 2 {
		return 0
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

package exporter

import (
	"fmt"
	"time"
)

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	// Always format with exactly 2 decimal places for consistency
	// This ensures values like 13.4 appear as 13.40 in CSV
	return fmt.Sprintf("%.2f", f)
}

// formatRate formats a derived rate with 4 decimal places. Rates such as
// the case fatality rate lose meaning at 2 places for small countries.
func formatRate(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return fmt.Sprintf("%d", i)
}

// formatDate formats a date for CSV output in ISO form
func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// formatNullable formats an optional value; missing cells stay empty so
// downstream readers keep the missing/zero distinction.
func formatNullable(value float64, valid bool) string {
	if !valid {
		return ""
	}
	return formatFloat(value)
}

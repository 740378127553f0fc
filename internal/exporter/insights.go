package exporter

import (
	"fmt"
	"strings"

	"covidcli/pkg/contracts/domain"
)

// RenderInsightsText renders the summary report as the narrative text
// file. The layout mirrors the closing summary of an analysis run:
// headline figures, most-affected countries, the key observations, and
// suggested follow-up work.
func RenderInsightsText(ins *domain.Insights) string {
	var b strings.Builder

	b.WriteString("COVID-19 Data Analysis - Summary Report\n")
	b.WriteString("========================================\n\n")
	fmt.Fprintf(&b, "Generated:     %s\n", ins.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if !ins.SnapshotDate.IsZero() {
		fmt.Fprintf(&b, "Snapshot date: %s\n", ins.SnapshotDate.Format("2006-01-02"))
	}
	b.WriteString("\n")

	b.WriteString("Headline figures\n")
	b.WriteString("----------------\n")
	fmt.Fprintf(&b, "Total confirmed cases:  %s\n", groupDigits(ins.GlobalTotalCases))
	fmt.Fprintf(&b, "Total deaths:           %s\n", groupDigits(ins.GlobalTotalDeaths))
	fmt.Fprintf(&b, "Vaccine doses:          %s\n", groupDigits(ins.GlobalTotalVaccinations))
	fmt.Fprintf(&b, "Case fatality rate:     %.2f%%\n", ins.GlobalCaseFatalityRate)
	if ins.PeakDailyCases > 0 {
		fmt.Fprintf(&b, "Peak daily cases:       %s on %s\n",
			groupDigits(ins.PeakDailyCases), ins.PeakDailyCasesDate.Format("2006-01-02"))
	}
	b.WriteString("\n")

	if ins.MostCases != nil || ins.MostDeaths != nil || ins.MostVaccinated != nil {
		b.WriteString("Most affected\n")
		b.WriteString("-------------\n")
		if ins.MostCases != nil {
			fmt.Fprintf(&b, "Most total cases:       %s (%s)\n",
				ins.MostCases.Location, groupDigits(ins.MostCases.Value))
		}
		if ins.MostDeaths != nil {
			fmt.Fprintf(&b, "Most total deaths:      %s (%s)\n",
				ins.MostDeaths.Location, groupDigits(ins.MostDeaths.Value))
		}
		if ins.MostVaccinated != nil {
			fmt.Fprintf(&b, "Highest vaccination:    %s (%.1f%% fully vaccinated)\n",
				ins.MostVaccinated.Location, ins.MostVaccinated.Value)
		}
		b.WriteString("\n")
	}

	if len(ins.Observations) > 0 {
		b.WriteString("Key observations\n")
		b.WriteString("----------------\n")
		for i, obs := range ins.Observations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, obs)
		}
		b.WriteString("\n")
	}

	if len(ins.FurtherWork) > 0 {
		b.WriteString("Further analysis could include\n")
		b.WriteString("------------------------------\n")
		for _, item := range ins.FurtherWork {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}

	return b.String()
}

// groupDigits renders a count with thousands separators. Counts in the
// report are whole numbers; fractional parts are rounded away.
func groupDigits(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

package retrieval

import (
	"fmt"
	"strings"

	"github.com/acharyye/graphRAG/internal/domain"
)

// Summarize renders an entity and its metric totals as one evidence snippet.
// Derived rates (CTR, CPC, ROAS) are computed here so the model never has to
// do arithmetic the verifier would then have to trace.
func Summarize(name, entityType, channel string, samples []domain.MetricSample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s", name, entityType)
	if channel != "" {
		fmt.Fprintf(&b, ", %s", channel)
	}
	b.WriteString(")")

	if len(samples) == 0 {
		b.WriteString(": no metrics in the requested period")
		return b.String()
	}

	totals := Totals(samples)
	fmt.Fprintf(&b, ": %d impressions, %d clicks, %d conversions, spend $%.2f, revenue $%.2f",
		totals.Impressions, totals.Clicks, totals.Conversions, totals.Spend, totals.Revenue)

	if totals.Impressions > 0 {
		fmt.Fprintf(&b, ", CTR %.2f%%", float64(totals.Clicks)/float64(totals.Impressions)*100)
	}
	if totals.Clicks > 0 {
		fmt.Fprintf(&b, ", CPC $%.2f", totals.Spend/float64(totals.Clicks))
	}
	if totals.Spend > 0 {
		fmt.Fprintf(&b, ", ROAS %.2f", totals.Revenue/totals.Spend)
	}

	return b.String()
}

// Totals aggregates daily samples into one row.
func Totals(samples []domain.MetricSample) domain.DrillDownRow {
	var t domain.DrillDownRow
	for _, s := range samples {
		t.Impressions += s.Impressions
		t.Clicks += s.Clicks
		t.Conversions += s.Conversions
		t.Spend += s.Spend
		t.Revenue += s.Revenue
	}
	return t
}

// sampleCoverage returns the date span of the samples.
func sampleCoverage(samples []domain.MetricSample) domain.DateRange {
	if len(samples) == 0 {
		return domain.DateRange{}
	}
	cov := domain.DateRange{Start: samples[0].Date, End: samples[0].Date}
	for _, s := range samples[1:] {
		if s.Date.Before(cov.Start) {
			cov.Start = s.Date
		}
		if s.Date.After(cov.End) {
			cov.End = s.Date
		}
	}
	return cov
}

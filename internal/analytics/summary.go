package analytics

import (
	"github.com/sells-group/riskmap/internal/enrich"
	"github.com/sells-group/riskmap/pkg/prediction"
)

// SummaryOptions controls aggregation.
type SummaryOptions struct {
	// IncludeNoData keeps regions without data in the averages, contributing
	// their zero-change fallback. When false they are left out of both the
	// sum and the divisor.
	IncludeNoData bool
}

// DefaultSummaryOptions includes no-data regions in averages.
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{IncludeNoData: true}
}

// AggregateSummary is the dashboard-level rollup of one enrichment pass.
type AggregateSummary struct {
	HighRiskCount        int      `json:"highRiskCount"`
	HighRiskRegionNames  []string `json:"highRiskRegionNames"`
	MonitoredRegionCount int      `json:"monitoredRegionCount"`
	AveragedRegionCount  int      `json:"averagedRegionCount"`
	AveragePercentChange float64  `json:"averagePercentChange"`
	AverageCurrentValue  float64  `json:"averageCurrentValue"`
}

// Summarize counts high-risk regions and averages the deltas. High-risk names
// are display names in input order. Arguments are not modified.
func Summarize(enriched []enrich.EnrichedRegion, deltas []TemporalDelta, opts SummaryOptions) AggregateSummary {
	s := AggregateSummary{
		HighRiskRegionNames:  []string{},
		MonitoredRegionCount: len(enriched),
	}

	for _, e := range enriched {
		if e.RiskCategory == prediction.RiskHigh {
			s.HighRiskCount++
			s.HighRiskRegionNames = append(s.HighRiskRegionNames, e.DisplayName())
		}
	}

	var sumChange, sumCurrent float64
	for _, d := range deltas {
		if !d.HasData && !opts.IncludeNoData {
			continue
		}
		sumChange += d.PercentChange
		sumCurrent += d.CurrentValue
		s.AveragedRegionCount++
	}
	if s.AveragedRegionCount > 0 {
		s.AveragePercentChange = sumChange / float64(s.AveragedRegionCount)
		s.AverageCurrentValue = sumCurrent / float64(s.AveragedRegionCount)
	}

	return s
}

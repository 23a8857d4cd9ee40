// Package analytics computes year-over-year deltas, dashboard summaries, and
// ranked feature importances from enriched regions.
package analytics

import (
	"github.com/sells-group/riskmap/internal/enrich"
)

// MetricSelector extracts a numeric value from an enriched region. The bool
// is false when the region carries no value for the metric.
type MetricSelector func(enrich.EnrichedRegion) (float64, bool)

// FeatureMetric selects a feature value (e.g. "Rent") from the prediction payload.
func FeatureMetric(name string) MetricSelector {
	return func(e enrich.EnrichedRegion) (float64, bool) {
		if !e.ExistsInDataset {
			return 0, false
		}
		v, ok := e.Features[name]
		return v, ok
	}
}

// ScoreMetric selects the prediction score.
func ScoreMetric() MetricSelector {
	return func(e enrich.EnrichedRegion) (float64, bool) {
		if e.Score == nil {
			return 0, false
		}
		return *e.Score, true
	}
}

// TemporalDelta is the change of one metric for one region between two periods.
type TemporalDelta struct {
	Key           string  `json:"key"`
	Name          string  `json:"name"`
	CurrentValue  float64 `json:"currentValue"`
	PreviousValue float64 `json:"previousValue"`
	PercentChange float64 `json:"percentChange"`

	// HasData is false when the current period had no value; CurrentValue is
	// then 0.
	HasData bool `json:"hasData"`
}

// Compare computes the delta for one region. A missing previous region or
// previous value reuses the current value, giving zero change. A previous
// value that is not positive, or a current region without a value, also
// gives zero change.
func Compare(current enrich.EnrichedRegion, previous *enrich.EnrichedRegion, sel MetricSelector) TemporalDelta {
	cur, ok := sel(current)
	d := TemporalDelta{
		Key:          current.Key,
		Name:         current.Name,
		CurrentValue: cur,
		HasData:      ok,
	}

	d.PreviousValue = cur
	if previous != nil {
		if prev, ok := sel(*previous); ok {
			d.PreviousValue = prev
		}
	}

	if d.HasData && d.PreviousValue > 0 {
		d.PercentChange = (d.CurrentValue - d.PreviousValue) / d.PreviousValue * 100
	}
	return d
}

// CompareAll compares every current region against the previous period's
// region with the same canonical key. Output order follows current.
func CompareAll(current, previous []enrich.EnrichedRegion, sel MetricSelector) []TemporalDelta {
	byKey := make(map[string]*enrich.EnrichedRegion, len(previous))
	for i := range previous {
		if _, seen := byKey[previous[i].Key]; !seen {
			byKey[previous[i].Key] = &previous[i]
		}
	}

	deltas := make([]TemporalDelta, len(current))
	for i, c := range current {
		deltas[i] = Compare(c, byKey[c.Key], sel)
	}
	return deltas
}

// AverageChange is the arithmetic mean of PercentChange over all deltas,
// zero-change fallbacks included. It is 0 for no deltas.
func AverageChange(deltas []TemporalDelta) float64 {
	if len(deltas) == 0 {
		return 0
	}
	var sum float64
	for _, d := range deltas {
		sum += d.PercentChange
	}
	return sum / float64(len(deltas))
}

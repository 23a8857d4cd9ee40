package analytics

import (
	"math"
	"sort"

	"github.com/sells-group/riskmap/pkg/prediction"
)

// RawImportance is one feature's unnormalized importance weight.
type RawImportance struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// ImportanceEntry is a feature's share of a model's total importance.
type ImportanceEntry struct {
	Model             string  `json:"model"`
	FeatureName       string  `json:"featureName"`
	RawImportance     float64 `json:"rawImportance"`
	ImportancePercent float64 `json:"importancePercent"`
}

// FromImportance converts the upstream parallel arrays into RawImportance
// values. Extra names or values beyond the shorter array are dropped.
func FromImportance(imp *prediction.Importance) []RawImportance {
	if imp == nil {
		return nil
	}
	n := min(len(imp.FeatureNames), len(imp.Values))
	out := make([]RawImportance, n)
	for i := range n {
		out[i] = RawImportance{Feature: imp.FeatureNames[i], Value: imp.Values[i]}
	}
	return out
}

// Rank normalizes raw weights to percentages of their total and returns the
// topN largest, ties in input order. Negative or NaN weights count as 0. When
// the total is 0 every entry is 0%. topN <= 0 returns an empty slice.
func Rank(model string, features []RawImportance, topN int) []ImportanceEntry {
	if topN <= 0 || len(features) == 0 {
		return []ImportanceEntry{}
	}

	entries := make([]ImportanceEntry, len(features))
	var total float64
	for i, f := range features {
		v := f.Value
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		entries[i] = ImportanceEntry{Model: model, FeatureName: f.Feature, RawImportance: v}
		total += v
	}

	if total > 0 && !math.IsInf(total, 0) {
		for i := range entries {
			entries[i].ImportancePercent = entries[i].RawImportance / total * 100
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ImportancePercent > entries[j].ImportancePercent
	})

	return entries[:min(topN, len(entries))]
}

// RankAll ranks each model's importances independently.
func RankAll(byModel map[string][]RawImportance, topN int) map[string][]ImportanceEntry {
	out := make(map[string][]ImportanceEntry, len(byModel))
	for model, features := range byModel {
		out[model] = Rank(model, features, topN)
	}
	return out
}

// Package enrich attaches per-region predictions to region geometries.
package enrich

import (
	"maps"

	"github.com/sells-group/riskmap/internal/region"
	"github.com/sells-group/riskmap/pkg/prediction"
)

// Outcome records how a region's query ended. Only OutcomeOK carries data;
// the other two both degrade to the no-data representation.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailed   Outcome = "failed"
)

// EnrichedRegion is a Region plus the prediction for one model and year.
// When ExistsInDataset is false, RiskCategory is Unknown, Score is nil and
// SampleCount is 0.
type EnrichedRegion struct {
	region.Region

	Key             string
	RiskCategory    string
	Score           *float64
	SampleCount     int
	ExistsInDataset bool

	// Features holds the feature values the prediction was computed from.
	Features map[string]float64

	Outcome Outcome
}

// NoData returns the no-data record for a region.
func NoData(r region.Region, key string) EnrichedRegion {
	return EnrichedRegion{
		Region:       r,
		Key:          key,
		RiskCategory: prediction.RiskUnknown,
		Outcome:      OutcomeNotFound,
	}
}

// fromPrediction builds the record for a successful query.
func fromPrediction(r region.Region, key string, p *prediction.Prediction) EnrichedRegion {
	score := p.Score
	return EnrichedRegion{
		Region:          r,
		Key:             key,
		RiskCategory:    p.RiskCategory,
		Score:           &score,
		SampleCount:     p.SampleCount,
		ExistsInDataset: true,
		Features:        maps.Clone(p.FeaturesUsed),
		Outcome:         OutcomeOK,
	}
}

// DisplayName returns the capitalized canonical key.
func (e EnrichedRegion) DisplayName() string {
	return region.DisplayName(e.Key)
}

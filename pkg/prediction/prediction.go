// Package prediction provides a client for the upstream gentrification-risk
// prediction service.
package prediction

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when the service has no data for a region, model
// and year combination.
var ErrNotFound = eris.New("prediction: not found")

// Credential is a short-lived bearer token forwarded to the upstream service.
// An empty Credential sends no Authorization header.
type Credential string

// Risk categories returned by the service. Unknown marks regions without data.
const (
	RiskLow     = "Low"
	RiskMedium  = "Medium"
	RiskHigh    = "High"
	RiskUnknown = "Unknown"
)

// Source answers per-region prediction queries and per-model importance queries.
type Source interface {
	// Prediction fetches the prediction for a canonical region key. It returns
	// ErrNotFound when the service has no data for the combination.
	Prediction(ctx context.Context, key, model string, year int, cred Credential) (*Prediction, error)

	// FeatureImportance fetches the raw importance vector for a model.
	FeatureImportance(ctx context.Context, model string, cred Credential) (*Importance, error)
}

// Prediction is the upstream result for one region.
type Prediction struct {
	Region       string             `json:"subcounty"`
	Year         int                `json:"year"`
	Model        string             `json:"model"`
	Score        float64            `json:"score"`
	RiskCategory string             `json:"risk_category"`
	SampleCount  int                `json:"sample_count"`
	FeaturesUsed map[string]float64 `json:"features_used"`
}

// Importance holds a model's feature importances as parallel arrays.
type Importance struct {
	Model        string    `json:"model"`
	FeatureNames []string  `json:"feature_names"`
	Values       []float64 `json:"values"`
}

// Score thresholds separating the risk buckets.
const (
	lowThreshold  = -0.05
	highThreshold = 0.05
)

// CategoryForScore buckets a score the same way the service does.
func CategoryForScore(score float64) string {
	switch {
	case score < lowThreshold:
		return RiskLow
	case score < highThreshold:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ValidCategory reports whether c is one of Low, Medium or High.
func ValidCategory(c string) bool {
	return c == RiskLow || c == RiskMedium || c == RiskHigh
}

// Normalize fills a missing category from the score and rejects categories
// outside Low/Medium/High and negative sample counts.
func (p *Prediction) Normalize() error {
	if p.RiskCategory == "" {
		p.RiskCategory = CategoryForScore(p.Score)
	} else if !ValidCategory(p.RiskCategory) {
		return eris.Errorf("prediction: unknown risk category %q", p.RiskCategory)
	}
	if p.SampleCount < 0 {
		return eris.Errorf("prediction: negative sample count %d", p.SampleCount)
	}
	return nil
}

package enrich

import (
	"encoding/json"
	"io"
	"maps"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/riskmap/internal/region"
	"github.com/sells-group/riskmap/pkg/prediction"
)

// Feature property names added to each region.
const (
	PropRiskCategory    = "riskCategory"
	PropScore           = "score"
	PropSampleCount     = "sampleCount"
	PropExistsInDataset = "existsInDataset"
)

// ToFeatureCollection returns the input geometries with each region's
// properties extended by the four enrichment fields. Score is null for
// regions without data. Region properties are copied, never modified.
func ToFeatureCollection(enriched []EnrichedRegion) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(enriched)),
	}
	for _, e := range enriched {
		props := make(map[string]any, len(e.Properties)+4)
		maps.Copy(props, e.Properties)

		props[PropRiskCategory] = e.RiskCategory
		if e.Score != nil {
			props[PropScore] = *e.Score
		} else {
			props[PropScore] = nil
		}
		props[PropSampleCount] = e.SampleCount
		props[PropExistsInDataset] = e.ExistsInDataset

		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   e.Geometry,
			Properties: props,
		})
	}
	return fc
}

// WriteFeatureCollection encodes the enriched collection as GeoJSON.
func WriteFeatureCollection(w io.Writer, enriched []EnrichedRegion) error {
	data, err := json.Marshal(ToFeatureCollection(enriched))
	if err != nil {
		return eris.Wrap(err, "enrich: encode feature collection")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "enrich: write feature collection")
	}
	return nil
}

// FromFeature decodes an enriched feature. The region name is read from
// nameProperty; the canonical key is left for the caller to derive, and
// Features are not carried by the collection.
func FromFeature(f *geojson.Feature, nameProperty string) (EnrichedRegion, error) {
	if f == nil {
		return EnrichedRegion{}, eris.New("enrich: nil feature")
	}

	props := maps.Clone(f.Properties)
	if props == nil {
		props = make(map[string]any)
	}

	category, ok := props[PropRiskCategory].(string)
	if !ok {
		return EnrichedRegion{}, eris.New("enrich: feature missing riskCategory")
	}
	if category != prediction.RiskUnknown && !prediction.ValidCategory(category) {
		return EnrichedRegion{}, eris.Errorf("enrich: invalid riskCategory %q", category)
	}

	exists, ok := props[PropExistsInDataset].(bool)
	if !ok {
		return EnrichedRegion{}, eris.New("enrich: feature missing existsInDataset")
	}

	count, ok := toInt(props[PropSampleCount])
	if !ok || count < 0 {
		return EnrichedRegion{}, eris.New("enrich: feature has invalid sampleCount")
	}

	var score *float64
	switch v := props[PropScore].(type) {
	case nil:
	case float64:
		score = &v
	default:
		return EnrichedRegion{}, eris.Errorf("enrich: feature has non-numeric score %v", v)
	}

	if !exists && (category != prediction.RiskUnknown || score != nil || count != 0) {
		return EnrichedRegion{}, eris.New("enrich: no-data feature carries prediction fields")
	}

	for _, k := range []string{PropRiskCategory, PropScore, PropSampleCount, PropExistsInDataset} {
		delete(props, k)
	}

	outcome := OutcomeOK
	if !exists {
		outcome = OutcomeNotFound
	}

	return EnrichedRegion{
		Region: region.Region{
			Name:       region.NameFromProperties(props, nameProperty),
			Geometry:   f.Geometry,
			Properties: props,
		},
		RiskCategory:    category,
		Score:           score,
		SampleCount:     count,
		ExistsInDataset: exists,
		Outcome:         outcome,
	}, nil
}

// ReadFeatureCollection decodes an enriched GeoJSON collection.
func ReadFeatureCollection(r io.Reader, nameProperty string) ([]EnrichedRegion, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "enrich: decode feature collection")
	}

	out := make([]EnrichedRegion, 0, len(fc.Features))
	for i, f := range fc.Features {
		e, err := FromFeature(f, nameProperty)
		if err != nil {
			return nil, eris.Wrapf(err, "enrich: feature %d", i)
		}
		out = append(out, e)
	}
	return out, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

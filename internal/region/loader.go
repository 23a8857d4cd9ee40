package region

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// DefaultNameProperty is the feature property carrying the region name in the
// geoBoundaries subcounty file.
const DefaultNameProperty = "shapeName"

// fallbackNameProperties are tried when the configured property is absent.
var fallbackNameProperties = []string{"name", "NAME"}

// LoadGeoJSON decodes a FeatureCollection and returns one Region per feature in
// file order. The name is read from nameProperty (DefaultNameProperty when
// empty), falling back to "name" and "NAME".
func LoadGeoJSON(r io.Reader, nameProperty string) ([]Region, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "region: read geojson")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "region: decode geojson")
	}

	regions := make([]Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		props := f.Properties
		if props == nil {
			props = make(map[string]any)
		}
		name := NameFromProperties(props, nameProperty)
		if name == "" {
			zap.L().Debug("region: feature without a name property", zap.Int("index", i))
		}
		regions = append(regions, Region{
			Name:       name,
			Geometry:   f.Geometry,
			Properties: props,
		})
	}

	return regions, nil
}

// LoadGeoJSONFile opens path and decodes it with LoadGeoJSON.
func LoadGeoJSONFile(path, nameProperty string) ([]Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: open %s", path)
	}
	defer func() { _ = f.Close() }()

	regions, err := LoadGeoJSON(f, nameProperty)
	if err != nil {
		return nil, eris.Wrapf(err, "region: load %s", path)
	}
	return regions, nil
}

// NameFromProperties returns the region name stored in props.
func NameFromProperties(props map[string]any, nameProperty string) string {
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}
	for _, key := range append([]string{nameProperty}, fallbackNameProperties...) {
		v, ok := props[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		default:
			return fmt.Sprint(s)
		}
	}
	return ""
}

// Load picks the loader from the file extension: ".shp" uses LoadShapefile,
// everything else is read as GeoJSON.
func Load(path, nameProperty string) ([]Region, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return LoadShapefile(path, nameProperty)
	}
	return LoadGeoJSONFile(path, nameProperty)
}

// LoadShapefile reads polygon records from a shapefile. Every attribute column
// becomes a string property; the name comes from nameField (DefaultNameProperty
// when empty, then "name"/"NAME", matched case-insensitively).
func LoadShapefile(path, nameField string) ([]Region, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	if len(fields) == 0 {
		zap.L().Warn("region: shapefile has no attribute table, names will be empty",
			zap.String("path", path),
		)
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var regions []Region
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			props[name] = val
		}

		regions = append(regions, Region{
			Name:       shapefileName(props, nameField),
			Geometry:   g,
			Properties: props,
		})
	}

	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "region: read shapefile %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("region: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return regions, nil
}

func shapefileName(props map[string]any, nameField string) string {
	if nameField == "" {
		nameField = DefaultNameProperty
	}
	for _, want := range append([]string{nameField}, fallbackNameProperties...) {
		for k, v := range props {
			if strings.EqualFold(k, want) {
				if s, _ := v.(string); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// shapeToGeom converts a shapefile polygon to a MultiPolygon. Other shape
// types are not region boundaries and yield nil.
func shapeToGeom(shape shp.Shape) geom.T {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("region: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("region: skipping malformed polygon", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// Package region holds region geometries and resolves their display names to
// canonical keys.
package region

import (
	"unicode"
	"unicode/utf8"

	"github.com/twpayne/go-geom"
)

// Region is a named geometry as supplied by the static geometry file.
// Geometry and Properties are passed through unmodified.
type Region struct {
	Name       string
	Geometry   geom.T
	Properties map[string]any
}

// DisplayName upper-cases the first letter of a canonical key ("westlands" -> "Westlands").
func DisplayName(key string) string {
	if key == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(key)
	return string(unicode.ToUpper(r)) + key[size:]
}

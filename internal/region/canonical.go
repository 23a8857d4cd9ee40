package region

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// SynonymGroup maps a set of raw name variants onto one canonical key.
type SynonymGroup struct {
	Key      string   `yaml:"key"`
	Variants []string `yaml:"variants"`
	Prefixes []string `yaml:"prefixes"`
}

// synonymFile is the on-disk layout of a synonym table.
type synonymFile struct {
	Synonyms []SynonymGroup `yaml:"synonyms"`
}

type prefixRule struct {
	prefix string
	key    string
}

// Canonicalizer resolves raw region names to canonical keys. It is immutable
// after construction and safe for concurrent use.
type Canonicalizer struct {
	exact    map[string]string
	prefixes []prefixRule
}

// DefaultGroups is the grouping table for the Nairobi subcounties: the
// Embakasi constituencies all roll up into one subcounty.
var DefaultGroups = []SynonymGroup{
	{
		Key: "embakasi",
		Variants: []string{
			"embakasi north",
			"embakasi south",
			"embakasi east",
			"embakasi west",
			"embakasi central",
		},
		Prefixes: []string{"embakasi"},
	},
}

// NewCanonicalizer builds a Canonicalizer from synonym groups. Keys, variants
// and prefixes are folded the same way as input names. A group key always
// resolves to itself, and an earlier group wins when two groups claim the
// same variant.
func NewCanonicalizer(groups []SynonymGroup) (*Canonicalizer, error) {
	c := &Canonicalizer{exact: make(map[string]string)}

	for i, g := range groups {
		key := fold(g.Key)
		if key == "" {
			return nil, eris.Errorf("region: synonym group %d has an empty key", i)
		}
		c.exact[key] = key
	}

	for _, g := range groups {
		key := fold(g.Key)
		for _, v := range g.Variants {
			fv := fold(v)
			if fv == "" {
				continue
			}
			if _, taken := c.exact[fv]; !taken {
				c.exact[fv] = key
			}
		}
		for _, p := range g.Prefixes {
			if fp := fold(p); fp != "" {
				c.prefixes = append(c.prefixes, prefixRule{prefix: fp, key: key})
			}
		}
	}

	// Longest prefix first; stable keeps group order for equal lengths.
	sort.SliceStable(c.prefixes, func(i, j int) bool {
		return len(c.prefixes[i].prefix) > len(c.prefixes[j].prefix)
	})

	return c, nil
}

// DefaultCanonicalizer returns a Canonicalizer over DefaultGroups.
func DefaultCanonicalizer() *Canonicalizer {
	c, err := NewCanonicalizer(DefaultGroups)
	if err != nil {
		panic(err) // DefaultGroups is static
	}
	return c
}

// LoadSynonyms reads a YAML synonym table (top-level "synonyms" list) and
// builds a Canonicalizer from it.
func LoadSynonyms(path string) (*Canonicalizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: read synonyms %s", path)
	}

	var f synonymFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "region: parse synonyms %s", path)
	}

	return NewCanonicalizer(f.Synonyms)
}

// Canonicalize maps a raw region name to its canonical key. Names outside
// every group come back folded (trimmed, lowercased) but otherwise unchanged.
// The empty string maps to itself.
func (c *Canonicalizer) Canonicalize(raw string) string {
	name := fold(raw)
	if name == "" {
		return ""
	}
	if key, ok := c.exact[name]; ok {
		return key
	}
	for _, rule := range c.prefixes {
		if strings.HasPrefix(name, rule.prefix) {
			return rule.key
		}
	}
	return name
}

// fold applies NFKC, lowercases, trims, and collapses internal whitespace runs
// to a single space.
func fold(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_Default(t *testing.T) {
	c := DefaultCanonicalizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "embakasi north", input: "Embakasi North", want: "embakasi"},
		{name: "embakasi south", input: "Embakasi South", want: "embakasi"},
		{name: "embakasi east", input: "embakasi east", want: "embakasi"},
		{name: "embakasi west", input: "EMBAKASI WEST", want: "embakasi"},
		{name: "embakasi central", input: "  Embakasi   Central ", want: "embakasi"},
		{name: "bare key", input: "Embakasi", want: "embakasi"},
		{name: "unlisted embakasi suffix", input: "Embakasi-Ranching", want: "embakasi"},
		{name: "prefix inside a word", input: "Embakasiville", want: "embakasi"},
		{name: "unmapped passes through", input: " Westlands ", want: "westlands"},
		{name: "unmapped multi-word", input: "Dagoretti  North", want: "dagoretti north"},
		{name: "empty", input: "", want: ""},
		{name: "whitespace only", input: " \t\n", want: ""},
		{name: "fullwidth letters", input: "Ｋａｓａｒａｎｉ", want: "kasarani"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Canonicalize(tt.input))
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	c := DefaultCanonicalizer()
	for _, raw := range []string{
		"Embakasi North", "Langata", "  MAKADARA", "Embakasiville", "", "Ｋａｓａｒａｎｉ", "Kibra Town",
	} {
		once := c.Canonicalize(raw)
		assert.Equal(t, once, c.Canonicalize(once), "input %q", raw)
	}
}

func TestCanonicalize_GroupMembersAgree(t *testing.T) {
	c := DefaultCanonicalizer()
	for _, g := range DefaultGroups {
		for _, v := range g.Variants {
			assert.Equal(t, g.Key, c.Canonicalize(v), "variant %q", v)
		}
	}
}

func TestNewCanonicalizer_LongestPrefixWins(t *testing.T) {
	c, err := NewCanonicalizer([]SynonymGroup{
		{Key: "nairobi", Prefixes: []string{"nairobi"}},
		{Key: "nairobi west", Prefixes: []string{"nairobi west"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "nairobi west", c.Canonicalize("Nairobi West Estate"))
	assert.Equal(t, "nairobi", c.Canonicalize("Nairobi East"))
}

func TestNewCanonicalizer_KeysResolveToThemselves(t *testing.T) {
	c, err := NewCanonicalizer([]SynonymGroup{
		{Key: "a", Variants: []string{"b"}},
		{Key: "b", Variants: []string{"c"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "b", c.Canonicalize("B"))
	assert.Equal(t, "b", c.Canonicalize("c"))
}

func TestNewCanonicalizer_EmptyKey(t *testing.T) {
	_, err := NewCanonicalizer([]SynonymGroup{{Key: "  ", Variants: []string{"x"}}})
	assert.Error(t, err)
}

func TestLoadSynonyms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	data := `
synonyms:
  - key: kasarani
    variants: ["roysambu", "ruaraka"]
  - key: embakasi
    prefixes: ["embakasi"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := LoadSynonyms(path)
	require.NoError(t, err)

	assert.Equal(t, "kasarani", c.Canonicalize("Roysambu"))
	assert.Equal(t, "kasarani", c.Canonicalize("RUARAKA"))
	assert.Equal(t, "embakasi", c.Canonicalize("Embakasi East"))
	assert.Equal(t, "westlands", c.Canonicalize("Westlands"))
}

func TestLoadSynonyms_Errors(t *testing.T) {
	_, err := LoadSynonyms(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synonyms: [\n"), 0o644))
	_, err = LoadSynonyms(path)
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Westlands", DisplayName("westlands"))
	assert.Equal(t, "Embakasi", DisplayName("embakasi"))
	assert.Equal(t, "Dagoretti north", DisplayName("dagoretti north"))
	assert.Equal(t, "Élan", DisplayName("élan"))
	assert.Equal(t, "", DisplayName(""))
}

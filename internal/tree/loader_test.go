package tree

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/haplo/internal/model"
)

const yTreeDoc = `{
  "timestamp": "2024-03-01",
  "tree": {
    "n": "R",
    "m": [{"v": "M207", "p19": 15581983, "p38": "13470103", "a": "A", "d": "G"}],
    "c": [
      {"n": "R1", "m": [{"v": "M173", "p19": 21733158, "p38": 19571272, "a": "A", "d": "C"}],
       "c": [{"n": "R1a"}, {"n": "R1b", "m": []}]},
      {"n": "R2", "c": []}
    ]
  }
}`

func yOpts() Options {
	return Options{Kind: model.KindY, Source: "test"}
}

func TestLoad_WrappedDocument(t *testing.T) {
	tr, err := Load(strings.NewReader(yTreeDoc), yOpts())
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01", tr.Timestamp)
	assert.Equal(t, "R", tr.Root.ID)
	assert.Equal(t, 5, tr.NodeCount())
	assert.Equal(t, 2, tr.VariantCount())

	require.Len(t, tr.Root.Variants, 1)
	v := tr.Root.Variants[0]
	assert.Equal(t, "M207", v.ID)
	assert.Equal(t, "15581983", v.Pos19, "numeric positions are rendered as decimal strings")
	assert.Equal(t, "13470103", v.Pos38)
	assert.Equal(t, "A", v.Ancestral)
	assert.Equal(t, "G", v.Derived)

	require.Len(t, tr.Root.Children, 2)
	r1 := tr.Root.Children[0]
	assert.False(t, r1.IsTerminal())
	assert.True(t, r1.Children[0].IsTerminal())
	assert.True(t, tr.Root.Children[1].IsTerminal(), "empty children list is terminal")
}

func TestLoad_UnwrappedDocumentWithBOM(t *testing.T) {
	doc := "\xEF\xBB\xBF" + `{"n": "H", "m": [{"v": "H", "p": 2706, "a": "G", "d": "A"}], "c": [{"n": "H1"}]}`

	tr, err := Load(strings.NewReader(doc), Options{Kind: model.KindMT, Source: "test"})
	require.NoError(t, err)

	assert.Empty(t, tr.Timestamp)
	assert.Equal(t, "H", tr.Root.ID)
	assert.Equal(t, "2706", tr.Root.Variants[0].Pos)
	assert.Equal(t, "2706", tr.Root.Variants[0].Position(model.KindMT, model.BuildHg38))
}

func TestLoad_SchemaOverride(t *testing.T) {
	doc := `{"name": "A", "snps": [{"snp": "V1", "pos": "100", "anc": "C", "der": "T"}],
	         "kids": [{"name": "A1"}]}`
	opts := Options{
		Kind:   model.KindMT,
		Source: "custom",
		Schema: model.Schema{
			Node:      "name",
			Children:  "kids",
			Variants:  "snps",
			VariantID: "snp",
			Pos:       "pos",
			Ancestral: "anc",
			Derived:   "der",
		},
	}

	tr, err := Load(strings.NewReader(doc), opts)
	require.NoError(t, err)

	assert.Equal(t, "A", tr.Root.ID)
	assert.Equal(t, "A1", tr.Root.Children[0].ID)
	assert.Equal(t, model.Variant{ID: "V1", Pos: "100", Ancestral: "C", Derived: "T"}, tr.Root.Variants[0])
}

func TestLoad_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		opts Options
	}{
		{"empty document", "   ", yOpts()},
		{"malformed json", `{"n": `, yOpts()},
		{"missing root id", `{"tree": {"c": []}}`, yOpts()},
		{"root is array", `[{"n": "A"}]`, yOpts()},
		{"child without id", `{"n": "A", "c": [{"m": []}]}`, yOpts()},
		{"variants not array", `{"n": "A", "m": {"v": "x"}}`, yOpts()},
		{"missing source", `{"n": "A"}`, Options{Kind: model.KindY}},
		{"unknown kind", `{"n": "A"}`, Options{Kind: "x", Source: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc), tt.opts)
			require.Error(t, err)

			var cfgErr *model.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %T: %v", err, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "y.json")
	require.NoError(t, os.WriteFile(path, []byte(yTreeDoc), 0644))

	tr, err := LoadFile(path, yOpts())
	require.NoError(t, err)
	assert.Equal(t, "test", tr.Source)
	assert.Equal(t, model.KindY, tr.Kind)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"), yOpts())
	var cfgErr *model.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

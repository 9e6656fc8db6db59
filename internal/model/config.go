package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unlimited disables the negative-streak check
const Unlimited = -1

// Config is the complete haplo configuration
type Config struct {
	Trees       TreesConfig       `yaml:"trees" mapstructure:"trees"`
	Build       string            `yaml:"build" mapstructure:"build"` // Reference build of the genome input (hg19, hg38)
	Thresholds  ThresholdsConfig  `yaml:"thresholds" mapstructure:"thresholds"`
	Genome      GenomeConfig      `yaml:"genome" mapstructure:"genome"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
}

// TreesConfig locates the Y and mt reference trees
type TreesConfig struct {
	Y  TreeSource `yaml:"y" mapstructure:"y"`
	MT TreeSource `yaml:"mt" mapstructure:"mt"`
}

// TreeSource describes one reference tree document
type TreeSource struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Source   string `yaml:"source" mapstructure:"source"`     // Provider label (e.g. "mf", "isogg")
	Families string `yaml:"families" mapstructure:"families"` // Optional family dictionary; empty disables lineage lookup
	Schema   Schema `yaml:"schema" mapstructure:"schema"`
}

// Schema maps the tree document's key names onto tree fields
type Schema struct {
	Node      string `yaml:"node" mapstructure:"node"`
	Children  string `yaml:"children" mapstructure:"children"`
	Variants  string `yaml:"variants" mapstructure:"variants"`
	VariantID string `yaml:"variant_id" mapstructure:"variant_id"`
	Pos19     string `yaml:"pos19" mapstructure:"pos19"`
	Pos38     string `yaml:"pos38" mapstructure:"pos38"`
	Pos       string `yaml:"pos" mapstructure:"pos"`
	Ancestral string `yaml:"ancestral" mapstructure:"ancestral"`
	Derived   string `yaml:"derived" mapstructure:"derived"`
}

// DefaultSchema returns the compact key names used by the bundled trees
func DefaultSchema() Schema {
	return Schema{
		Node:      "n",
		Children:  "c",
		Variants:  "m",
		VariantID: "v",
		Pos19:     "p19",
		Pos38:     "p38",
		Pos:       "p",
		Ancestral: "a",
		Derived:   "d",
	}
}

// Validate checks that every key name is set
func (s Schema) Validate() error {
	keys := []struct{ name, value string }{
		{"node", s.Node},
		{"children", s.Children},
		{"variants", s.Variants},
		{"variant_id", s.VariantID},
		{"pos19", s.Pos19},
		{"pos38", s.Pos38},
		{"pos", s.Pos},
		{"ancestral", s.Ancestral},
		{"derived", s.Derived},
	}
	for _, k := range keys {
		if strings.TrimSpace(k.value) == "" {
			return NewConfigurationError("schema", fmt.Sprintf("key name %q is empty", k.name), nil)
		}
	}
	return nil
}

// WithDefaults fills unset key names from DefaultSchema
func (s Schema) WithDefaults() Schema {
	d := DefaultSchema()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Node, d.Node)
	fill(&s.Children, d.Children)
	fill(&s.Variants, d.Variants)
	fill(&s.VariantID, d.VariantID)
	fill(&s.Pos19, d.Pos19)
	fill(&s.Pos38, d.Pos38)
	fill(&s.Pos, d.Pos)
	fill(&s.Ancestral, d.Ancestral)
	fill(&s.Derived, d.Derived)
	return s
}

// ThresholdsConfig holds per-tree classification thresholds
type ThresholdsConfig struct {
	Y  Thresholds `yaml:"y" mapstructure:"y"`
	MT Thresholds `yaml:"mt" mapstructure:"mt"`
}

// For returns the thresholds for a tree kind
func (t ThresholdsConfig) For(kind Kind) Thresholds {
	if kind == KindMT {
		return t.MT
	}
	return t.Y
}

// Thresholds tune the streak heuristic and result size
type Thresholds struct {
	ConfirmedPositive int `yaml:"confirmed_positive" mapstructure:"confirmed_positive"` // Consecutive positive nodes that confirm a call
	AllowedNegative   int `yaml:"allowed_negative" mapstructure:"allowed_negative"`     // Consecutive negative nodes tolerated, -1 = unlimited
	MaxCandidates     int `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// DefaultThresholds returns the balanced false-positive strategy
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConfirmedPositive: 3,
		AllowedNegative:   2,
		MaxCandidates:     5,
	}
}

// Validate checks threshold ranges
func (t Thresholds) Validate() error {
	if t.ConfirmedPositive < 0 {
		return NewConfigurationError("thresholds", fmt.Sprintf("confirmed_positive must be >= 0, got %d", t.ConfirmedPositive), nil)
	}
	if t.AllowedNegative < Unlimited {
		return NewConfigurationError("thresholds", fmt.Sprintf("allowed_negative must be >= 0 or unlimited, got %d", t.AllowedNegative), nil)
	}
	if t.MaxCandidates < 1 {
		return NewConfigurationError("thresholds", fmt.Sprintf("max_candidates must be >= 1, got %d", t.MaxCandidates), nil)
	}
	return nil
}

// ParseTolerance parses an allowed-negative value: a non-negative integer or "unlimited"
func ParseTolerance(text string) (int, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	switch text {
	case "unlimited", "any", "-1":
		return Unlimited, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, NewValidationError("allowed_negative", "expected a non-negative integer or \"unlimited\", got %q", text)
	}
	return n, nil
}

// FormatTolerance is the inverse of ParseTolerance
func FormatTolerance(n int) string {
	if n == Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

// GenomeConfig configures raw genome decoding
type GenomeConfig struct {
	IndexDir string `yaml:"index_dir" mapstructure:"index_dir"` // Directory holding index_<format>.idx files
}

// CacheConfig configures the in-process tree cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ConcurrencyConfig configures worker counts
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"` // Batch workers; 0 = number of CPUs
}

// OutputConfig configures rendering
type OutputConfig struct {
	Verbose             bool    `yaml:"verbose" mapstructure:"verbose"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"` // Top calls at or above are reported as reliable
	JSON                string  `yaml:"json" mapstructure:"json"`
	Markdown            string  `yaml:"markdown" mapstructure:"markdown"`
	HTML                string  `yaml:"html" mapstructure:"html"`
	TreeURL             string  `yaml:"tree_url" mapstructure:"tree_url"`     // Haplogroups link to <tree_url>/<source>/<kind>/<haplogroup>
	FamilyURL           string  `yaml:"family_url" mapstructure:"family_url"` // Families link to <family_url>/<id>
}

// ServerConfig configures `haplo serve`
type ServerConfig struct {
	Addr              string  `yaml:"addr" mapstructure:"addr"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Trees: TreesConfig{
			Y: TreeSource{
				Path:     "haplotree/mf_y_snp_tree.json",
				Source:   "mf",
				Families: "haplotree/mf_y_dict.json",
				Schema:   DefaultSchema(),
			},
			MT: TreeSource{
				Path:   "haplotree/mf_mt_snp_tree.json",
				Source: "mf",
				Schema: DefaultSchema(),
			},
		},
		Build: string(BuildHg19),
		Thresholds: ThresholdsConfig{
			Y:  DefaultThresholds(),
			MT: DefaultThresholds(),
		},
		Genome: GenomeConfig{
			IndexDir: "indexes",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 0,
		},
		Output: OutputConfig{
			ConfidenceThreshold: 0.5,
			TreeURL:             "https://geneu.xyz/haplo-tree",
			FamilyURL:           "https://www.23mofang.com/ancestry/family",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			RequestsPerSecond: 5,
			Burst:             10,
		},
	}
}

// Validate checks the settings a classification run depends on
func (c *Config) Validate() error {
	if _, ok := ParseBuild(c.Build); !ok {
		return NewValidationError("build", "expected hg19 or hg38, got %q", c.Build)
	}
	for _, kind := range []Kind{KindY, KindMT} {
		if err := c.Thresholds.For(kind).Validate(); err != nil {
			return fmt.Errorf("%s thresholds: %w", kind.Label(), err)
		}
	}
	for _, src := range []TreeSource{c.Trees.Y, c.Trees.MT} {
		if err := src.Schema.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// For returns the tree source for a kind
func (t TreesConfig) For(kind Kind) TreeSource {
	if kind == KindMT {
		return t.MT
	}
	return t.Y
}

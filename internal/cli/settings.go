package cli

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/haplo/internal/model"
)

// registerDefaults makes every key of the default config known to v, so that
// environment variables can override keys absent from the config file
func registerDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]interface{}) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]interface{}); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig resolves defaults, config file, environment and bound flags
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			toleranceHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// toleranceHook lets integer settings be written as "unlimited"
func toleranceHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int {
		return data, nil
	}
	text := strings.TrimSpace(data.(string))
	if !strings.EqualFold(text, "unlimited") {
		return data, nil
	}
	return model.ParseTolerance(text)
}

// flagBinding ties a command flag to one or more config keys
type flagBinding struct {
	flag string
	keys []string
}

// bindFlags binds a command's flags at run time, so commands sharing a key
// never overwrite each other's binding
func bindFlags(v *viper.Viper, cmd *cobra.Command, bindings []flagBinding) error {
	for _, b := range bindings {
		f := cmd.Flags().Lookup(b.flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", b.flag)
		}
		for _, key := range b.keys {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// classificationBindings are shared by classify, batch and serve
var classificationBindings = []flagBinding{
	{"build", []string{"build"}},
	{"y-tree", []string{"trees.y.path"}},
	{"mt-tree", []string{"trees.mt.path"}},
	{"y-families", []string{"trees.y.families"}},
	{"confirmed", []string{"thresholds.y.confirmed_positive", "thresholds.mt.confirmed_positive"}},
	{"allowed-negative", []string{"thresholds.y.allowed_negative", "thresholds.mt.allowed_negative"}},
	{"max-candidates", []string{"thresholds.y.max_candidates", "thresholds.mt.max_candidates"}},
	{"index-dir", []string{"genome.index_dir"}},
}

// addClassificationFlags registers the flags in classificationBindings
func addClassificationFlags(cmd *cobra.Command) {
	def := model.DefaultConfig()
	th := model.DefaultThresholds()

	cmd.Flags().String("build", def.Build, "reference build of the genome (hg19, hg38)")
	cmd.Flags().String("y-tree", def.Trees.Y.Path, "Y-DNA reference tree JSON")
	cmd.Flags().String("mt-tree", def.Trees.MT.Path, "mtDNA reference tree JSON")
	cmd.Flags().String("y-families", def.Trees.Y.Families, "Y family dictionary JSON (empty to skip)")
	cmd.Flags().Int("confirmed", th.ConfirmedPositive, "derived nodes in a row that confirm a branch")
	cmd.Flags().String("allowed-negative", model.FormatTolerance(th.AllowedNegative), "tolerated ancestral nodes in a row (or \"unlimited\")")
	cmd.Flags().Int("max-candidates", th.MaxCandidates, "haplogroups reported per kind")
	cmd.Flags().String("index-dir", def.Genome.IndexDir, "directory of WeGene index_<format>.idx files")
	cmd.Flags().Bool("no-cache", false, "disable the parsed tree cache")
}

// classificationConfig binds the shared flags and loads the config
func classificationConfig(cmd *cobra.Command) (*model.Config, error) {
	if err := bindFlags(viper.GetViper(), cmd, classificationBindings); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	return cfg, nil
}

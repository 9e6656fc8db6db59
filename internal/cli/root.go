package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "haplo",
	Short: "Haplo - Y-DNA and mtDNA haplogroup classification",
	Long: `Haplo assigns Y-chromosome and mitochondrial haplogroups to consumer
genotype data (23andMe, AncestryDNA, WeGene and compatible formats).

Each subject's observations are matched against a reference haplogroup tree.
Every terminal branch is scored with a streak heuristic that tolerates sparse
coverage and isolated ancestral calls, and the best supported haplogroups are
ranked by derived SNP count, depth and confidence.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Haplo.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("haplo " + Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.haplo/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".haplo"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// HAPLO_BUILD, HAPLO_THRESHOLDS_Y_ALLOWED_NEGATIVE, ...
	viper.SetEnvPrefix("HAPLO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := registerDefaults(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	slog.SetDefault(newLogger(slog.LevelWarn))
}

// newLogger writes text logs to stderr; --verbose lowers the level to debug
func newLogger(level slog.Level) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

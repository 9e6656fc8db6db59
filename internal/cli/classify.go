package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/haplo/internal/pipeline"
)

var (
	outJSON         string
	outMD           string
	outHTML         string
	classifyTimeout time.Duration
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify <genome-file|->",
	Short: "Assign Y-DNA and mtDNA haplogroups to one genome file",
	Long: `Classify reads a raw genotype file and:
- Partitions the calls into Y-chromosome and mitochondrial observations
- Walks each reference tree and scores every terminal branch
- Ranks the supported haplogroups by derived SNPs, depth and confidence
- Prints the top call per kind and writes optional reports

Supported inputs: 23andMe/AncestryDNA text (optionally gzipped), a JSON map
of rsid to {genotype, chromosome, position}, and WeGene raw payloads.
Use "-" to read from stdin.

Example:
  haplo classify genome_John_Doe.txt
  haplo classify genome.txt.gz --build hg38 --json report.json --html report.html
  haplo classify genome.txt --allowed-negative unlimited --max-candidates 10`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	addClassificationFlags(classifyCmd)

	// Output flags
	classifyCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	classifyCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	classifyCmd.Flags().StringVar(&outHTML, "html", "", "output HTML path (optional)")
	classifyCmd.Flags().DurationVar(&classifyTimeout, "timeout", 2*time.Minute, "overall classification timeout")
}

func runClassify(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
	defer cancel()

	cfg, err := classificationConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Output.JSON = outJSON
	cfg.Output.Markdown = outMD
	cfg.Output.HTML = outHTML

	if verbose {
		fmt.Fprintf(os.Stderr, "Classifying: %s\n", path)
		fmt.Fprintf(os.Stderr, "Build:       %s\n", cfg.Build)
		fmt.Fprintf(os.Stderr, "Y tree:      %s\n", cfg.Trees.Y.Path)
		fmt.Fprintf(os.Stderr, "mt tree:     %s\n", cfg.Trees.MT.Path)
		fmt.Fprintln(os.Stderr)
	}

	p, err := pipeline.NewPipeline(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	report, err := p.AnalyzeFile(ctx, path)
	if err != nil {
		return fmt.Errorf("classify failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ %d Y and %d mt observations\n", report.YCalls, report.MTCalls)
		for _, run := range report.Runs() {
			fmt.Fprintf(os.Stderr, "✓ %s: %d nodes, %d variants, %d derived in %s\n",
				run.Kind.Label(), run.Stats.Nodes, run.Stats.Variants, run.Stats.DerivedHits, time.Duration(run.Duration))
		}
	}

	if err := p.Renderer().RenderReport(report, cfg.Output, os.Stdout); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	// partial results are still reported; fail only when nothing succeeded
	if err := report.Err(); err != nil && report.Empty() {
		return err
	}
	return nil
}

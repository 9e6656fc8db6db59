package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/haplo/internal/model"
	"github.com/ppiankov/haplo/internal/pipeline"
	"github.com/ppiankov/haplo/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchHTML    bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Classify multiple genome files from a list in parallel",
	Long: `Batch processes multiple genome files concurrently:
- Read genome file paths from the input file (one per line, # comments)
- Classify files in parallel with a configurable worker count
- Reference trees are parsed once and shared by every file
- Write a JSON and Markdown report per genome

Example:
  haplo batch genomes.txt
  haplo batch genomes.txt --concurrency 4 --output-dir ./reports --html`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addClassificationFlags(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: config or number of CPUs)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./haplo-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchHTML, "html", false, "also write an HTML report per genome")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := classificationConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	workers := batchWorkers(concurrency, cfg)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Haplo Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Build:        %s\n", cfg.Build)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := pipeline.NewPipeline(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	processor := worker.NewBatchProcessor(p, workers)

	fmt.Fprintf(os.Stderr, "⚙️  Classifying genomes with %d workers...\n\n", workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0
	renderer := p.Renderer()

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}
		if err := result.Report.Err(); err != nil && result.Report.Empty() {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, err)
			continue
		}

		slug := sanitizeFilename(result.Path)
		out := model.OutputConfig{
			JSON:     filepath.Join(outputDir, slug+".json"),
			Markdown: filepath.Join(outputDir, slug+".md"),
		}
		if batchHTML {
			out.HTML = filepath.Join(outputDir, slug+".html")
		}

		var summary strings.Builder
		if err := renderer.RenderReport(result.Report, out, &summary); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%s)\n", result.Path, topCalls(result.Report))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d genomes\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// batchWorkers picks the flag, then the config, then the CPU count
func batchWorkers(flag int, cfg *model.Config) int {
	if flag > 0 {
		return flag
	}
	if cfg.Concurrency.Workers > 0 {
		return cfg.Concurrency.Workers
	}
	return runtime.NumCPU()
}

// topCalls formats the best haplogroup per kind, e.g. "Y R1b, MT H1"
func topCalls(report *model.Report) string {
	var parts []string
	for _, run := range report.Runs() {
		if top, ok := run.Top(); ok {
			parts = append(parts, run.Kind.Label()+" "+top.Haplogroup)
		} else {
			parts = append(parts, run.Kind.Label()+" -")
		}
	}
	if len(parts) == 0 {
		return "no Y or mt calls"
	}
	return strings.Join(parts, ", ")
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename turns a genome path into a report file stem
func sanitizeFilename(s string) string {
	s = filepath.Base(filepath.Clean(s))
	for _, ext := range []string{".gz", ".txt", ".tsv", ".csv", ".json"} {
		s = strings.TrimSuffix(s, ext)
	}
	s = filenameReplacer.Replace(s)

	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" || s == "." {
		s = "genome"
	}
	return s
}

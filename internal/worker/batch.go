package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/haplo/internal/model"
)

// Analyzer classifies a single genome file
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path string) (*model.Report, error)
}

// FileResult represents the outcome for one genome file of a batch
type FileResult struct {
	Path   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the file result
func (r *FileResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes multiple genome files concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessPaths analyzes every path and returns one result per path, in input
// order. A failing file does not stop the others.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*FileResult {
	results := make([]*FileResult, len(paths))
	if len(paths) == 0 {
		return results
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res := &FileResult{Path: path}
			if err := ctx.Err(); err != nil {
				res.Error = err
			} else {
				res.Report, res.Error = b.analyzer.AnalyzeFile(ctx, path)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ProcessFile reads genome paths from a list file and analyzes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string) ([]*FileResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read genome list: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// ReadPathsFromFile reads genome file paths from a file (one per line)
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}

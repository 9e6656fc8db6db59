// Package pipeline runs the Y and mitochondrial classifications for one
// subject and renders the combined report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/haplo/internal/cache"
	"github.com/ppiankov/haplo/internal/classify"
	"github.com/ppiankov/haplo/internal/genome"
	"github.com/ppiankov/haplo/internal/model"
	"github.com/ppiankov/haplo/internal/worker"
)

// errNotRun marks a run that the pool dropped before it started
var errNotRun = errors.New("classification run did not start")

// Pipeline orchestrates the complete classification process
type Pipeline struct {
	config      *model.Config
	trees       *TreeStore
	reader      *genome.Reader
	classifiers map[model.Kind]*classify.Classifier
	renderer    *Renderer
	logger      *slog.Logger
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.TTL)
	}

	classifiers := make(map[model.Kind]*classify.Classifier, 2)
	for _, kind := range []model.Kind{model.KindY, model.KindMT} {
		cl, err := classify.New(cfg.Thresholds.For(kind), logger)
		if err != nil {
			return nil, fmt.Errorf("%s classifier: %w", kind.Label(), err)
		}
		classifiers[kind] = cl
	}

	return &Pipeline{
		config:      cfg,
		trees:       NewTreeStore(cfg.Trees, c, cfg.Cache.TTL),
		reader:      genome.NewReader(cfg.Genome.IndexDir),
		classifiers: classifiers,
		renderer:    NewRenderer(cfg.Output.ConfidenceThreshold).WithLinks(cfg.Output.TreeURL, cfg.Output.FamilyURL),
		logger:      logger,
	}, nil
}

// Renderer returns the pipeline's report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// AnalyzeFile reads a genome file ("-" for stdin) and classifies it
func (p *Pipeline) AnalyzeFile(ctx context.Context, path string) (*model.Report, error) {
	calls, err := p.reader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genome: %w", err)
	}

	report := p.Run(ctx, calls)
	report.Subject = path
	return report, nil
}

// Run partitions calls and classifies them against the configured build
func (p *Pipeline) Run(ctx context.Context, calls []genome.Call) *model.Report {
	return p.RunBuild(ctx, calls, model.Build(p.config.Build))
}

// RunBuild is Run with an explicit reference build
func (p *Pipeline) RunBuild(ctx context.Context, calls []genome.Call, build model.Build) *model.Report {
	y, mt := Partition(calls)
	p.logger.Debug("partitioned genome", "calls", len(calls), "y", len(y), "mt", len(mt))
	return p.ClassifyBuild(ctx, y, mt, build)
}

// Classify runs the Y and mt classifications against the configured build
func (p *Pipeline) Classify(ctx context.Context, y, mt model.Observations) *model.Report {
	return p.ClassifyBuild(ctx, y, mt, model.Build(p.config.Build))
}

// ClassifyBuild runs one classification per non-empty observation map
// concurrently. A failed run is recorded on its own RunResult and never
// affects the other kind.
func (p *Pipeline) ClassifyBuild(ctx context.Context, y, mt model.Observations, build model.Build) *model.Report {
	report := &model.Report{
		Build:   build,
		YCalls:  len(y),
		MTCalls: len(mt),
	}

	var jobs []*classifyJob
	if len(y) > 0 {
		jobs = append(jobs, p.newJob(model.KindY, y, build))
	}
	if len(mt) > 0 {
		jobs = append(jobs, p.newJob(model.KindMT, mt, build))
	}
	if len(jobs) == 0 {
		p.logger.Info("no Y or mt observations to classify")
		report.GeneratedAt = time.Now().UTC()
		return report
	}

	workers := runtime.NumCPU()
	if len(jobs) < workers {
		workers = len(jobs)
	}
	pool := worker.NewPool(ctx, workers)
	pool.Start()
	for _, job := range jobs {
		pool.Submit(job)
	}

	for _, res := range pool.Wait() {
		if run, ok := res.(*model.RunResult); ok {
			p.attach(report, run)
		}
	}

	// runs dropped by a cancelled context still get a result
	for _, job := range jobs {
		if report.Run(job.kind) == nil {
			err := ctx.Err()
			if err == nil {
				err = errNotRun
			}
			p.attach(report, model.NewFailedRun(job.id, job.kind, err))
		}
	}

	report.GeneratedAt = time.Now().UTC()
	return report
}

func (p *Pipeline) attach(report *model.Report, run *model.RunResult) {
	if run.Kind == model.KindMT {
		report.MT = run
	} else {
		report.Y = run
	}
}

func (p *Pipeline) newJob(kind model.Kind, obs model.Observations, build model.Build) *classifyJob {
	return &classifyJob{
		id:       uuid.NewString(),
		kind:     kind,
		obs:      obs,
		build:    build,
		pipeline: p,
	}
}

// classifyJob is one classification run on the worker pool
type classifyJob struct {
	id       string
	kind     model.Kind
	obs      model.Observations
	build    model.Build
	pipeline *Pipeline
}

// Execute implements worker.Job. A panicking run is recorded as a failed
// run of its own kind.
func (j *classifyJob) Execute(ctx context.Context) (res worker.Result) {
	defer func() {
		if v := recover(); v != nil {
			err := &worker.PanicError{Value: v}
			j.pipeline.logger.Error("classification run panicked", "run", j.id, "kind", j.kind.Label(), "error", err)
			res = model.NewFailedRun(j.id, j.kind, err)
		}
	}()
	return j.pipeline.classifyOne(ctx, j)
}

func (p *Pipeline) classifyOne(ctx context.Context, j *classifyJob) *model.RunResult {
	start := time.Now()
	logger := p.logger.With("run", j.id, "kind", j.kind.Label())

	fail := func(err error) *model.RunResult {
		logger.Warn("classification failed", "error", err)
		run := model.NewFailedRun(j.id, j.kind, err)
		run.Duration = model.Duration(time.Since(start))
		return run
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	t, err := p.trees.Get(j.kind)
	if err != nil {
		return fail(err)
	}

	res, err := p.classifiers[j.kind].Classify(t, j.obs, j.build)
	if err != nil {
		return fail(err)
	}

	candidates := res.Candidates
	if candidates == nil {
		candidates = []model.Candidate{}
	}

	logger.Debug("classification run complete",
		"candidates", len(candidates),
		"nodes", res.Stats.Nodes,
		"duration", time.Since(start))

	run := &model.RunResult{
		ID:         j.id,
		Kind:       j.kind,
		Source:     t.Source,
		Timestamp:  t.Timestamp,
		Candidates: candidates,
		Stats:      res.Stats,
	}
	if top, ok := run.Top(); ok {
		run.Lineages = p.lineages(logger, j.kind, top)
	}
	run.Duration = model.Duration(time.Since(start))
	return run
}

// lineages looks up the families linked along the top candidate's path.
// A missing or broken dictionary leaves the call itself intact.
func (p *Pipeline) lineages(logger *slog.Logger, kind model.Kind, top model.Candidate) []model.Lineage {
	families, err := p.trees.Families(kind)
	if err != nil {
		logger.Warn("family lookup skipped", "error", err)
		return nil
	}
	if families == nil {
		return nil
	}
	return families.Along(top.Path)
}

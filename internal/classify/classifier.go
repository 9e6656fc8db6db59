// Package classify assigns haplogroups by walking a reference tree with a
// subject's observations.
//
// The tree itself is never written to. Each run keeps its own path stack whose
// frames carry the alleles observed at that node, so concurrent runs may share
// one tree.
package classify

import (
	"log/slog"

	"github.com/ppiankov/haplo/internal/model"
	"github.com/ppiankov/haplo/internal/score"
	"github.com/ppiankov/haplo/internal/tree"
)

// Classifier holds the immutable settings of a classification
type Classifier struct {
	cfg    model.Thresholds
	scorer *score.Scorer
	logger *slog.Logger
}

// Result is the outcome of one classification run
type Result struct {
	Kind       model.Kind
	Build      model.Build
	Candidates []model.Candidate // Best first
	Stats      model.RunStats
}

// New creates a classifier. A nil logger uses slog.Default().
func New(cfg model.Thresholds, logger *slog.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		cfg:    cfg,
		scorer: score.NewScorer(cfg),
		logger: logger,
	}, nil
}

// Classify is a convenience wrapper around New and (*Classifier).Classify
func Classify(t *tree.Tree, obs model.Observations, build model.Build, cfg model.Thresholds) (*Result, error) {
	c, err := New(cfg, nil)
	if err != nil {
		return nil, err
	}
	return c.Classify(t, obs, build)
}

// Classify ranks the terminal haplogroups of t supported by obs.
// Mitochondrial trees ignore build, but it must still be hg19 or hg38.
func (c *Classifier) Classify(t *tree.Tree, obs model.Observations, build model.Build) (*Result, error) {
	if len(obs) == 0 {
		return nil, model.NewValidationError("observations", "no observations to classify")
	}
	b, ok := model.ParseBuild(string(build))
	if !ok {
		return nil, model.NewValidationError("build", "expected hg19 or hg38, got %q", build)
	}
	if t == nil || t.Root == nil {
		return nil, model.NewConfigurationError("classify", "no reference tree", nil)
	}

	r := &run{
		kind:   t.Kind,
		build:  b,
		obs:    obs,
		scorer: c.scorer,
		ranker: NewRanker(c.cfg.MaxCandidates),
		logger: c.logger.With("kind", t.Kind.Label(), "source", t.Source),
	}
	r.visit(t.Root)

	r.logger.Debug("classification complete",
		"nodes", r.stats.Nodes,
		"variants", r.stats.Variants,
		"derived", r.stats.DerivedHits,
		"candidates", r.ranker.Len())

	return &Result{
		Kind:       t.Kind,
		Build:      b,
		Candidates: r.ranker.Candidates(),
		Stats:      r.stats,
	}, nil
}

// run is the mutable state of a single traversal
type run struct {
	kind   model.Kind
	build  model.Build
	obs    model.Observations
	scorer *score.Scorer
	ranker *Ranker
	logger *slog.Logger

	path  []model.PathEntry // root first
	stats model.RunStats
}

func (r *run) visit(n *model.Node) {
	r.stats.Nodes++
	r.stats.Variants += len(n.Variants)

	// A child repeating its parent's id is folded into the parent's frame
	pushed := false
	if len(r.path) == 0 || r.path[len(r.path)-1].Haplogroup != n.ID {
		r.path = append(r.path, r.annotate(n))
		pushed = true
	}

	if n.IsTerminal() {
		r.evaluate()
	} else {
		for _, child := range n.Children {
			r.visit(child)
		}
	}

	if pushed {
		r.path = r.path[:len(r.path)-1]
	}
}

// annotate builds the frame for n with the alleles observed in this run
func (r *run) annotate(n *model.Node) model.PathEntry {
	entry := model.PathEntry{
		Haplogroup: n.ID,
		Variants:   make([]model.ObservedVariant, len(n.Variants)),
	}
	for i, v := range n.Variants {
		pos := v.Position(r.kind, r.build)
		ov := model.ObservedVariant{
			ID:        v.ID,
			Ancestral: v.Ancestral,
			Derived:   v.Derived,
			Position:  pos,
		}
		if geno, ok := r.obs[pos]; ok && pos != "" && geno != "" {
			ov.Observed = geno[:1]
			if ov.IsDerived() {
				r.stats.DerivedHits++
				r.logger.Debug("derived variant",
					"haplogroup", n.ID,
					"variant", v.ID,
					"position", pos,
					"mutation", v.Ancestral+"->"+v.Derived)
			}
		}
		entry.Variants[i] = ov
	}
	return entry
}

// evaluate scores the current root-to-terminal path
func (r *run) evaluate() {
	c, ok := r.scorer.Score(r.path)
	if !ok || r.ranker.Contains(c.Haplogroup) {
		return
	}
	r.ranker.Offer(c)
}

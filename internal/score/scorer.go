// Package score evaluates one root-to-terminal branch of a haplogroup tree.
package score

import (
	"math"

	"github.com/ppiankov/haplo/internal/model"
)

// Scorer applies the streak heuristic to an annotated branch
type Scorer struct {
	cfg model.Thresholds
}

// NewScorer creates a new scorer
func NewScorer(cfg model.Thresholds) *Scorer {
	return &Scorer{cfg: cfg}
}

// state is the running tally of a terminal-to-root walk
type state struct {
	haplogroup    string
	depth         int
	tested        int
	derivedTotal  int
	observedTotal int
	positive      int // consecutive nodes with a derived observation
	negative      int // consecutive tested nodes without one
}

func (st *state) assigned() bool {
	return st.haplogroup != model.Unassigned
}

func (st *state) revoke() {
	st.haplogroup = model.Unassigned
	st.depth = 0
	st.tested = 0
	st.derivedTotal = 0
	st.observedTotal = 0
}

// Score walks path (root first) from the terminal node upwards and returns the
// candidate it supports. ok is false when the branch carries no derived evidence.
func (s *Scorer) Score(path []model.PathEntry) (c model.Candidate, ok bool) {
	st := state{haplogroup: model.Unassigned}

	for i := len(path) - 1; i >= 0; i-- {
		node := path[i]
		observed, derived := Counts(node)

		switch {
		case derived > 0:
			// 1. Positive node: the deepest one becomes the tentative call
			if !st.assigned() {
				st.haplogroup = node.Haplogroup
			}
			st.positive++
			st.negative = 0
			st.observedTotal += observed
			st.derivedTotal += derived

		case observed > 0:
			// 2. Tested but not derived
			if st.positive < s.cfg.ConfirmedPositive {
				st.positive = 0
				st.negative++
				if s.cfg.AllowedNegative != model.Unlimited &&
					st.negative > s.cfg.AllowedNegative && st.assigned() {
					st.revoke()
				}
			} else {
				// tolerated gap below a confirmed run
				st.positive = 0
			}

			// 3. Untested nodes leave both streaks untouched
		}

		if st.assigned() {
			st.depth++
			if observed > 0 {
				st.tested++
			}
		}
	}

	if st.derivedTotal == 0 || !st.assigned() {
		return model.Candidate{}, false
	}

	trace := make([]model.PathEntry, len(path))
	copy(trace, path)

	return model.Candidate{
		Haplogroup:    st.haplogroup,
		DerivedCount:  st.derivedTotal,
		ObservedCount: st.observedTotal,
		Depth:         st.depth,
		TestedNodes:   st.tested,
		Confidence:    Confidence(st.derivedTotal, st.observedTotal, st.tested, st.depth),
		Path:          trace,
	}, true
}

// Counts returns how many of a node's variants were observed, and how many of
// those carry the derived allele
func Counts(node model.PathEntry) (observed, derived int) {
	for _, v := range node.Variants {
		if v.Observed == "" {
			continue
		}
		observed++
		if v.IsDerived() {
			derived++
		}
	}
	return observed, derived
}

// Confidence combines the derived support ratio with the tested-node density:
// (derived / observed) * (tested / depth), or 0 when either denominator is 0.
func Confidence(derived, observed, tested, depth int) float64 {
	if observed == 0 || depth == 0 {
		return 0
	}
	c := (float64(derived) / float64(observed)) * (float64(tested) / float64(depth))
	return math.Max(0, math.Min(c, 1))
}

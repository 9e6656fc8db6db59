package classify

import (
	"sort"

	"github.com/ppiankov/haplo/internal/model"
)

// Ranker keeps the best candidates of a run: bounded, sorted by
// (derived count, depth, confidence) descending, one entry per haplogroup.
type Ranker struct {
	max        int
	candidates []model.Candidate
}

// NewRanker creates a ranker holding at most max candidates
func NewRanker(max int) *Ranker {
	if max < 1 {
		max = 1
	}
	return &Ranker{max: max, candidates: make([]model.Candidate, 0, max+1)}
}

// Contains reports whether a candidate for haplogroup is already held
func (r *Ranker) Contains(haplogroup string) bool {
	for _, c := range r.candidates {
		if c.Haplogroup == haplogroup {
			return true
		}
	}
	return false
}

// Offer inserts c unless its haplogroup is already held, then evicts the
// lowest-ranked entry if the bound is exceeded. Equal entries keep insertion order.
func (r *Ranker) Offer(c model.Candidate) bool {
	if r.Contains(c.Haplogroup) {
		return false
	}

	r.candidates = append(r.candidates, c)
	sort.SliceStable(r.candidates, func(i, j int) bool {
		return outranks(r.candidates[i], r.candidates[j])
	})

	if len(r.candidates) > r.max {
		r.candidates = r.candidates[:r.max]
	}
	return true
}

// Len returns the number of held candidates
func (r *Ranker) Len() int {
	return len(r.candidates)
}

// Candidates returns a copy of the ranked list, best first
func (r *Ranker) Candidates() []model.Candidate {
	out := make([]model.Candidate, len(r.candidates))
	copy(out, r.candidates)
	return out
}

func outranks(a, b model.Candidate) bool {
	if a.DerivedCount != b.DerivedCount {
		return a.DerivedCount > b.DerivedCount
	}
	if a.Depth != b.Depth {
		return a.Depth > b.Depth
	}
	return a.Confidence > b.Confidence
}

package classify

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ahmetb/go-linq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/haplo/internal/model"
	"github.com/ppiankov/haplo/internal/tree"
)

// snp creates a Y variant whose hg19 and hg38 positions differ
func snp(id string, pos int) model.Variant {
	return model.Variant{
		ID:        id,
		Ancestral: "C",
		Derived:   "T",
		Pos19:     fmt.Sprint(pos),
		Pos38:     fmt.Sprint(pos + 1000000),
		Pos:       fmt.Sprint(pos),
	}
}

func leaf(id string, variants ...model.Variant) *model.Node {
	return &model.Node{ID: id, Variants: variants}
}

func branch(id string, variants []model.Variant, children ...*model.Node) *model.Node {
	return &model.Node{ID: id, Variants: variants, Children: children}
}

func mustTree(t *testing.T, root *model.Node, kind model.Kind) *tree.Tree {
	t.Helper()
	tr, err := tree.New(root, kind, "test")
	require.NoError(t, err)
	return tr
}

// linearTree is A -> B -> C with one variant each at positions 1, 2, 3
func linearTree(t *testing.T) *tree.Tree {
	return mustTree(t,
		branch("A", []model.Variant{snp("a1", 1)},
			branch("B", []model.Variant{snp("b1", 2)},
				leaf("C", snp("c1", 3)))),
		model.KindY)
}

func distinctHaplogroups(candidates []model.Candidate) int {
	return linq.From(candidates).
		SelectT(func(c model.Candidate) string { return c.Haplogroup }).
		Distinct().
		Count()
}

func TestClassify_LinearAllDerived(t *testing.T) {
	obs := model.Observations{"1": "TT", "2": "TT", "3": "TT"}

	res, err := Classify(linearTree(t), obs, model.BuildHg19, model.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.Equal(t, "C", c.Haplogroup)
	assert.Equal(t, 3, c.DerivedCount)
	assert.Equal(t, 3, c.Depth)
	assert.InDelta(t, 1.0, c.Confidence, 1e-9)

	require.Len(t, c.Path, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{c.Path[0].Haplogroup, c.Path[1].Haplogroup, c.Path[2].Haplogroup})
	assert.Equal(t, "T", c.Path[1].Variants[0].Observed)

	assert.Equal(t, model.RunStats{Nodes: 3, Variants: 3, DerivedHits: 3}, res.Stats)
}

func TestClassify_AncestralGapStillConfirmsTerminal(t *testing.T) {
	obs := model.Observations{"1": "TT", "2": "CC", "3": "TT"}
	cfg := model.Thresholds{ConfirmedPositive: 3, AllowedNegative: 2, MaxCandidates: 5}

	res, err := Classify(linearTree(t), obs, model.BuildHg19, cfg)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	assert.Equal(t, "C", res.Candidates[0].Haplogroup)
	assert.Equal(t, 2, res.Candidates[0].DerivedCount)
}

func TestClassify_SiblingBranches(t *testing.T) {
	root := branch("R", nil,
		leaf("X", snp("x1", 10)),
		leaf("Y", snp("y1", 20)))
	obs := model.Observations{"10": "CC", "20": "TT"}

	res, err := Classify(mustTree(t, root, model.KindY), obs, model.BuildHg19, model.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "Y", res.Candidates[0].Haplogroup)
}

func TestClassify_BuildSelectsPositionField(t *testing.T) {
	tr := linearTree(t)

	hg38 := model.Observations{"1000001": "T", "1000002": "T", "1000003": "T"}
	res, err := Classify(tr, hg38, model.BuildHg38, model.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "C", res.Candidates[0].Haplogroup)

	// hg38 observations read against hg19 positions match nothing, without error
	res, err = Classify(tr, hg38, model.BuildHg19, model.DefaultThresholds())
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
}

func TestClassify_MitochondrialIgnoresBuild(t *testing.T) {
	root := branch("H", []model.Variant{{ID: "H", Ancestral: "G", Derived: "A", Pos: "2706"}},
		leaf("H1", model.Variant{ID: "H1", Ancestral: "G", Derived: "A", Pos: "3010"}))
	tr := mustTree(t, root, model.KindMT)
	obs := model.Observations{"2706": "AA", "3010": "AA"}

	for _, b := range []model.Build{model.BuildHg19, model.BuildHg38} {
		res, err := Classify(tr, obs, b, model.DefaultThresholds())
		require.NoError(t, err)
		require.Len(t, res.Candidates, 1)
		assert.Equal(t, "H1", res.Candidates[0].Haplogroup)
	}
}

func TestClassify_ValidationErrors(t *testing.T) {
	tr := linearTree(t)

	_, err := Classify(tr, model.Observations{}, model.BuildHg19, model.DefaultThresholds())
	var vErr *model.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "observations", vErr.Field)

	_, err = Classify(tr, model.Observations{"1": "T"}, "hg18", model.DefaultThresholds())
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "build", vErr.Field)

	_, err = Classify(tr, model.Observations{"1": "T"}, model.BuildHg19, model.Thresholds{MaxCandidates: 0})
	var cfgErr *model.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestClassify_FirstFoundCandidateWinsPerHaplogroup(t *testing.T) {
	// Both leaves fall back to P once their own unsupported, tested
	// branches revoke, so P may only be reported once.
	cfg := model.Thresholds{ConfirmedPositive: 3, AllowedNegative: 0, MaxCandidates: 5}
	root := branch("P", []model.Variant{snp("p1", 1)},
		branch("Q", []model.Variant{snp("q1", 2)},
			leaf("Q1", snp("q1a", 3))),
		branch("S", []model.Variant{snp("s1", 4)},
			leaf("S1", snp("s1a", 5))))
	obs := model.Observations{"1": "T", "2": "C", "3": "T", "4": "C", "5": "T"}

	res, err := Classify(mustTree(t, root, model.KindY), obs, model.BuildHg19, cfg)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "P", res.Candidates[0].Haplogroup)
	assert.Equal(t, "Q", res.Candidates[0].Path[1].Haplogroup, "the first branch evaluated is kept")
}

func TestClassify_DuplicateChildIDIsFolded(t *testing.T) {
	root := branch("A", []model.Variant{snp("a1", 1)},
		leaf("A", snp("a2", 2)))
	obs := model.Observations{"1": "T", "2": "T"}

	res, err := Classify(mustTree(t, root, model.KindY), obs, model.BuildHg19, model.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.Equal(t, "A", c.Haplogroup)
	assert.Len(t, c.Path, 1)
	assert.Equal(t, 1, c.DerivedCount, "the folded frame is the parent's")
}

func TestClassify_NoCrossRunLeakage(t *testing.T) {
	tr := linearTree(t)
	cfg := model.DefaultThresholds()

	first, err := Classify(tr, model.Observations{"1": "T", "2": "T", "3": "T"}, model.BuildHg19, cfg)
	require.NoError(t, err)

	// a second subject observed only at the root must not see the first subject's alleles
	second, err := Classify(tr, model.Observations{"1": "T"}, model.BuildHg19, cfg)
	require.NoError(t, err)
	require.Len(t, second.Candidates, 1)
	assert.Equal(t, "A", second.Candidates[0].Haplogroup)
	assert.Equal(t, 1, second.Candidates[0].DerivedCount)
	assert.Empty(t, second.Candidates[0].Path[2].Variants[0].Observed)

	again, err := Classify(tr, model.Observations{"1": "T", "2": "T", "3": "T"}, model.BuildHg19, cfg)
	require.NoError(t, err)
	assert.Equal(t, first.Candidates, again.Candidates)
}

func TestClassify_MoreToleranceNeverShallower(t *testing.T) {
	root := branch("A", []model.Variant{snp("a", 1)},
		branch("B", []model.Variant{snp("b", 2)},
			branch("C", []model.Variant{snp("c", 3)},
				branch("D", []model.Variant{snp("d", 4)},
					leaf("E", snp("e", 5))))))
	tr := mustTree(t, root, model.KindY)
	obs := model.Observations{"1": "T", "2": "C", "3": "C", "4": "C", "5": "T"}

	prev := 0
	for k := 0; k <= 4; k++ {
		cfg := model.Thresholds{ConfirmedPositive: 3, AllowedNegative: k, MaxCandidates: 5}
		res, err := Classify(tr, obs, model.BuildHg19, cfg)
		require.NoError(t, err)
		require.NotEmpty(t, res.Candidates)

		depth := res.Candidates[0].Depth
		assert.GreaterOrEqual(t, depth, prev, "allowed_negative=%d", k)
		prev = depth
	}
	assert.Equal(t, 5, prev)
}

// randomTree builds a deterministic bushy tree with one variant per node
func randomTree(rng *rand.Rand, depth int, next *int) *model.Node {
	*next++
	id := fmt.Sprintf("N%d", *next)
	n := &model.Node{ID: id, Variants: []model.Variant{snp(id, *next)}}
	if depth == 0 {
		return n
	}
	for i := 0; i < 1+rng.Intn(3); i++ {
		n.Children = append(n.Children, randomTree(rng, depth-1, next))
	}
	return n
}

func TestClassify_ResultListInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	next := 0
	tr := mustTree(t, randomTree(rng, 6, &next), model.KindY)

	obs := model.Observations{}
	for pos := 1; pos <= next; pos++ {
		switch rng.Intn(3) {
		case 0:
			obs[fmt.Sprint(pos)] = "TT"
		case 1:
			obs[fmt.Sprint(pos)] = "CC"
		}
	}

	for _, max := range []int{1, 3, 5, 20} {
		cfg := model.Thresholds{ConfirmedPositive: 2, AllowedNegative: 1, MaxCandidates: max}
		res, err := Classify(tr, obs, model.BuildHg19, cfg)
		require.NoError(t, err)

		assert.LessOrEqual(t, len(res.Candidates), max)
		assert.Equal(t, len(res.Candidates), distinctHaplogroups(res.Candidates))
		for i, c := range res.Candidates {
			assert.GreaterOrEqual(t, c.Confidence, 0.0)
			assert.LessOrEqual(t, c.Confidence, 1.0)
			assert.Positive(t, c.DerivedCount)
			assert.NotEqual(t, model.Unassigned, c.Haplogroup)
			if i > 0 {
				assert.False(t, outranks(c, res.Candidates[i-1]), "list is sorted best first")
			}
		}
		assert.Equal(t, next, res.Stats.Nodes)
	}
}

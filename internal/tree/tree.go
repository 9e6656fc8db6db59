// Package tree loads reference haplogroup trees.
//
// A loaded Tree is read-only: classification runs keep their observed-allele
// overlay outside the tree, so one Tree may serve any number of runs.
package tree

import "github.com/ppiankov/haplo/internal/model"

// Tree is a parsed reference haplogroup tree
type Tree struct {
	Root      *model.Node
	Kind      model.Kind
	Source    string // Provider label, e.g. "mf"
	Timestamp string // Optional document timestamp

	nodes    int
	variants int
}

// New wraps an in-memory root node as a Tree
func New(root *model.Node, kind model.Kind, source string) (*Tree, error) {
	if root == nil {
		return nil, model.NewConfigurationError("tree", "missing root node", nil)
	}
	if _, ok := model.ParseKind(string(kind)); !ok {
		return nil, model.NewConfigurationError("tree", "tree kind must be y or mt, got \""+string(kind)+"\"", nil)
	}
	if source == "" {
		return nil, model.NewConfigurationError("tree", "tree source label is required", nil)
	}
	t := &Tree{Root: root, Kind: kind, Source: source}
	t.count()
	return t, nil
}

// NodeCount returns the number of haplogroups in the tree
func (t *Tree) NodeCount() int { return t.nodes }

// VariantCount returns the number of variants attached to all nodes
func (t *Tree) VariantCount() int { return t.variants }

func (t *Tree) count() {
	t.nodes, t.variants = 0, 0
	stack := []*model.Node{t.Root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t.nodes++
		t.variants += len(n.Variants)
		stack = append(stack, n.Children...)
	}
}

package model

import "strings"

// Kind identifies which reference tree a run classifies against
type Kind string

const (
	KindY  Kind = "y"  // Y-chromosome (paternal) tree
	KindMT Kind = "mt" // Mitochondrial (maternal) tree
)

// ParseKind maps a user-supplied label onto a Kind
func ParseKind(text string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "y", "ydna", "y-dna":
		return KindY, true
	case "mt", "mtdna", "mt-dna", "m":
		return KindMT, true
	default:
		return "", false
	}
}

// Label returns the display label used in reports ("Y" or "MT")
func (k Kind) Label() string {
	return strings.ToUpper(string(k))
}

// Build identifies the reference assembly that observation positions refer to
type Build string

const (
	BuildHg19 Build = "hg19"
	BuildHg38 Build = "hg38"
)

// ParseBuild maps a user-supplied assembly label onto a Build.
// GRCh37/GRCh38 are accepted as aliases.
func ParseBuild(text string) (Build, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "hg19", "grch37", "37":
		return BuildHg19, true
	case "hg38", "grch38", "38":
		return BuildHg38, true
	default:
		return "", false
	}
}

// Node is a haplogroup in the reference tree.
// A node without children is a terminal node.
type Node struct {
	ID       string    `json:"id"`
	Children []*Node   `json:"children,omitempty"`
	Variants []Variant `json:"variants,omitempty"`
}

// IsTerminal reports whether the node is a leaf
func (n *Node) IsTerminal() bool {
	return len(n.Children) == 0
}

// Variant is one phylogenetically informative site attached to a node
type Variant struct {
	ID        string `json:"id"`              // SNP name
	Ancestral string `json:"ancestral"`       // Pre-mutation allele
	Derived   string `json:"derived"`         // Post-mutation allele
	Pos19     string `json:"pos19,omitempty"` // Y tree position on hg19
	Pos38     string `json:"pos38,omitempty"` // Y tree position on hg38
	Pos       string `json:"pos,omitempty"`   // Build-independent position (mt trees)
}

// Position resolves the observation key for this variant.
// Mitochondrial trees use the single build-independent position.
func (v Variant) Position(kind Kind, build Build) string {
	if kind == KindMT {
		return v.Pos
	}
	switch build {
	case BuildHg19:
		return v.Pos19
	case BuildHg38:
		return v.Pos38
	default:
		return ""
	}
}

// Observations maps a position to the subject's observed allele pair
type Observations map[string]string

// Unassigned marks a path walk that never found positive evidence
const Unassigned = "unassigned"

// Candidate is one classification outcome for a terminal branch
type Candidate struct {
	Haplogroup    string      `json:"haplogroup"`
	DerivedCount  int         `json:"derived_count"`  // Observed-derived variants supporting the call
	ObservedCount int         `json:"observed_count"` // Observed variants on supporting nodes
	Depth         int         `json:"depth"`          // Path nodes counted after assignment began
	TestedNodes   int         `json:"tested_nodes"`   // Of those, nodes with at least one observed variant
	Confidence    float64     `json:"confidence"`     // [0,1]
	Path          []PathEntry `json:"path"`           // Root to terminal
}

// PathEntry records one node of the evaluated branch
type PathEntry struct {
	Haplogroup string            `json:"haplogroup"`
	Variants   []ObservedVariant `json:"variants"`
}

// ObservedVariant is a tree variant together with the allele observed in this run
type ObservedVariant struct {
	ID        string `json:"id"`
	Ancestral string `json:"ancestral"`
	Derived   string `json:"derived"`
	Position  string `json:"position"`
	Observed  string `json:"observed,omitempty"`
}

// IsDerived reports whether the observed allele matches the derived state
func (v ObservedVariant) IsDerived() bool {
	return v.Observed != "" && v.Observed == v.Derived
}

// Lineage lists the surname families linked to one haplogroup of a call's path
type Lineage struct {
	Haplogroup string   `json:"haplogroup"`
	Age        string   `json:"age,omitempty"` // Years since the common ancestor
	Families   []Family `json:"families"`
}

// Family is one surname lineage from a family dictionary
type Family struct {
	ID      string `json:"id"`
	Surname string `json:"surname"`
	Title   string `json:"title"`
}

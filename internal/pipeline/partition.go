package pipeline

import (
	"strings"

	"github.com/ppiankov/haplo/internal/genome"
	"github.com/ppiankov/haplo/internal/model"
)

// Partition splits genome calls into Y and mitochondrial observations keyed by
// position. Only calls whose genotype starts with a nucleotide are kept, which
// drops no-calls ("--", "__") and indels ("DD", "I").
func Partition(calls []genome.Call) (y, mt model.Observations) {
	y, mt = model.Observations{}, model.Observations{}

	for _, c := range calls {
		pos := strings.TrimSpace(c.Position)
		geno := strings.ToUpper(strings.TrimSpace(c.Genotype))
		if pos == "" || !eligible(geno) {
			continue
		}

		switch NormalizeChromosome(c.Chromosome) {
		case "Y":
			y[pos] = geno
		case "MT":
			mt[pos] = geno
		}
	}
	return y, mt
}

// NormalizeChromosome maps the spellings used by consumer files onto
// 1..22, X, Y and MT. AncestryDNA numbers Y as 24 and MT as 26.
func NormalizeChromosome(chrom string) string {
	c := strings.ToUpper(strings.TrimSpace(chrom))
	c = strings.TrimPrefix(c, "CHR")

	switch c {
	case "M", "MT", "26":
		return "MT"
	case "24":
		return "Y"
	}
	return c
}

func eligible(genotype string) bool {
	if genotype == "" {
		return false
	}
	switch genotype[0] {
	case 'A', 'C', 'G', 'T':
		return true
	}
	return false
}

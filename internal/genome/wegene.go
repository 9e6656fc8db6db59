package genome

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// RawInputs is a WeGene raw genome payload
type RawInputs struct {
	Data   string `json:"data" mapstructure:"data"`     // base64 of gzipped genotype string
	Format string `json:"format" mapstructure:"format"` // e.g. wegene_affy_2
}

// IsWeGeneFormat reports whether format names a WeGene chip layout
func IsWeGeneFormat(format string) bool {
	return strings.Contains(format, "wegene_")
}

// DecodeRaw unpacks a WeGene payload using <indexDir>/index_<format>.idx.
// The genotype string holds two characters per indexed site.
func DecodeRaw(raw RawInputs, indexDir string) ([]Call, error) {
	if raw.Data == "" {
		return nil, fmt.Errorf("raw genome has no data")
	}
	if raw.Format == "" || strings.ContainsAny(raw.Format, `/\`) {
		return nil, fmt.Errorf("invalid raw genome format %q", raw.Format)
	}

	compressed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw.Data))
	if err != nil {
		return nil, fmt.Errorf("decode raw genome: %w", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("gunzip raw genome: %w", err)
	}
	defer func() { _ = gz.Close() }()

	genotypes, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("gunzip raw genome: %w", err)
	}

	idxPath := filepath.Join(indexDir, "index_"+raw.Format+".idx")
	f, err := os.Open(idxPath)
	if err != nil {
		return nil, fmt.Errorf("open genome index: %w", err)
	}
	defer func() { _ = f.Close() }()

	return decodeIndexed(string(genotypes), f, raw.Format)
}

// decodeIndexed maps each index line (idx, rsid, chromosome, position) to the
// genotype pair at idx*2. Lines starting with NA are not counted.
func decodeIndexed(genotypes string, index io.Reader, format string) ([]Call, error) {
	var calls []Call

	scanner := bufio.NewScanner(index)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "NA") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			return nil, fmt.Errorf("index %s: malformed line %q", format, line)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("index %s: bad offset %q", format, fields[0])
		}

		start := idx * 2
		var geno string
		if start+2 <= len(genotypes) {
			geno = sortGenotype(genotypes[start : start+2])
		}
		calls = append(calls, Call{
			ID:         strings.TrimSpace(fields[1]),
			Chromosome: strings.TrimSpace(fields[2]),
			Position:   strings.TrimSpace(fields[3]),
			Genotype:   geno,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index %s: %w", format, err)
	}

	if sites := len(genotypes) / 2; sites != len(calls) {
		return nil, fmt.Errorf("genome has %d sites but index %s lists %d", sites, format, len(calls))
	}
	return calls, nil
}

func sortGenotype(g string) string {
	b := []byte(g)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return string(b)
}

// Package genome decodes raw consumer genotype files into per-site calls.
package genome

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// Call is one genotyped site
type Call struct {
	ID         string `json:"id" mapstructure:"id"`                 // rsid or probe name
	Chromosome string `json:"chromosome" mapstructure:"chromosome"` // As written in the source (1..22, X, Y, MT)
	Position   string `json:"position" mapstructure:"position"`
	Genotype   string `json:"genotype" mapstructure:"genotype"` // Allele pair, e.g. "AG"; "--" for no-call
}

// Reader decodes genome files in any supported format
type Reader struct {
	IndexDir string // Directory with index_<format>.idx files for WeGene payloads
}

// NewReader creates a reader
func NewReader(indexDir string) *Reader {
	return &Reader{IndexDir: indexDir}
}

// ReadFile opens path and decodes it; "-" reads stdin
func (g *Reader) ReadFile(path string) ([]Call, error) {
	if path == "-" {
		return g.Read(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genome: %w", err)
	}
	defer func() { _ = f.Close() }()

	return g.Read(f)
}

// Read decodes a genome stream. Gzip input is detected by its magic bytes;
// content starting with '{' is JSON, anything else tab separated text.
func (g *Reader) Read(r io.Reader) ([]Call, error) {
	br := bufio.NewReader(r)

	magic, _ := br.Peek(2)
	if bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gunzip genome: %w", err)
		}
		defer func() { _ = gz.Close() }()
		br = bufio.NewReader(gz)
	}

	first, err := firstNonSpace(br)
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty genome input")
		}
		return nil, fmt.Errorf("read genome: %w", err)
	}

	if first == '{' {
		return g.readJSON(br)
	}
	return ReadTSV(br)
}

// firstNonSpace peeks at the first significant byte without consuming it
func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF:
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}

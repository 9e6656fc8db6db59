package genome

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample23andMe = `# This data file generated by 23andMe
# rsid	chromosome	position	genotype
rs3094315	1	752566	AA
i3000043	Y	2655180	T

rs2032597	Y	14869743	--
`

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadTSV(t *testing.T) {
	calls, err := ReadTSV(strings.NewReader(sample23andMe))
	require.NoError(t, err)
	require.Len(t, calls, 3)

	assert.Equal(t, Call{ID: "i3000043", Chromosome: "Y", Position: "2655180", Genotype: "T"}, calls[1])
	assert.Equal(t, "--", calls[2].Genotype)
}

func TestReadTSV_AncestryColumns(t *testing.T) {
	in := "rsid\tchromosome\tposition\tallele1\tallele2\r\nrs4477212\t1\t82154\tA\tG\r\n"

	calls, err := ReadTSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "AG", calls[0].Genotype)
}

func TestReader_DetectsGzip(t *testing.T) {
	calls, err := NewReader("").Read(bytes.NewReader(gzipBytes(t, sample23andMe)))
	require.NoError(t, err)
	assert.Len(t, calls, 3)
}

func TestReader_JSONCallMap(t *testing.T) {
	in := `{
		"rs9786184": {"genotype": "CC", "chromosome": "Y", "position": 14813991},
		"i4000095": {"genotype": "A", "chromosome": "MT", "position": "2706"}
	}`

	calls, err := NewReader("").Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, calls, 2)

	// sorted by id
	assert.Equal(t, Call{ID: "i4000095", Chromosome: "MT", Position: "2706", Genotype: "A"}, calls[0])
	assert.Equal(t, "14813991", calls[1].Position)
}

func TestReader_Empty(t *testing.T) {
	_, err := NewReader("").Read(strings.NewReader("  \n"))
	assert.Error(t, err)
}

func writeIndex(t *testing.T, dir, format, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index_"+format+".idx"), []byte(content), 0o644))
}

func rawPayload(t *testing.T, genotypes string) string {
	return base64.StdEncoding.EncodeToString(gzipBytes(t, genotypes))
}

func TestDecodeRaw(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir, "wegene_test", "0\trs1\tY\t100\nNA\trs-skip\tY\t1\n1\trs2\tMT\t2706\n\n")

	calls, err := DecodeRaw(RawInputs{Data: rawPayload(t, "TCGA"), Format: "wegene_test"}, dir)
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Equal(t, Call{ID: "rs1", Chromosome: "Y", Position: "100", Genotype: "CT"}, calls[0])
	assert.Equal(t, "AG", calls[1].Genotype)
}

func TestDecodeRaw_SiteCountMismatch(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir, "wegene_test", "0\trs1\tY\t100\n")

	_, err := DecodeRaw(RawInputs{Data: rawPayload(t, "TTCC"), Format: "wegene_test"}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 sites")
}

func TestDecodeRaw_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		raw  RawInputs
	}{
		{"no data", RawInputs{Format: "wegene_test"}},
		{"path in format", RawInputs{Data: rawPayload(t, "AA"), Format: "../etc"}},
		{"not base64", RawInputs{Data: "%%%", Format: "wegene_test"}},
		{"missing index", RawInputs{Data: rawPayload(t, "AA"), Format: "wegene_none"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRaw(tt.raw, dir)
			assert.Error(t, err)
		})
	}
}

func TestReader_WeGeneRequest(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir, "wegene_test", "0\trs1\tY\t100\n")

	in := `{"inputs": {"data": "` + rawPayload(t, "GG") + `", "format": "wegene_test"}}`
	calls, err := NewReader(dir).Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "GG", calls[0].Genotype)
	assert.True(t, IsWeGeneFormat("wegene_test"))
}

func TestReader_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genome.txt.gz")
	require.NoError(t, os.WriteFile(path, gzipBytes(t, sample23andMe), 0o644))

	calls, err := NewReader("").ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, calls, 3)

	_, err = NewReader("").ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

package genome

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadTSV decodes 23andMe style text: rsid, chromosome, position, genotype.
// AncestryDNA style rows with the two alleles in separate columns are accepted too.
func ReadTSV(r io.Reader) ([]Call, error) {
	var calls []Call

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		// Skip comments, blank lines and quoted headers
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "\"") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) == 1 {
			fields = strings.Fields(line)
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		var call Call
		switch len(fields) {
		case 4:
			call = Call{ID: fields[0], Chromosome: fields[1], Position: fields[2], Genotype: fields[3]}
		case 5:
			call = Call{ID: fields[0], Chromosome: fields[1], Position: fields[2], Genotype: fields[3] + fields[4]}
		default:
			continue
		}

		// column header row ("rsid chromosome position ...")
		if strings.EqualFold(call.ID, "rsid") {
			continue
		}
		calls = append(calls, call)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan genome line %d: %w", lineNo, err)
	}

	return calls, nil
}

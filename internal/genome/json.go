package genome

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// readJSON decodes either a map of rsid to call object or a WeGene
// {"inputs": {"data": ..., "format": ...}} request.
func (g *Reader) readJSON(r io.Reader) ([]Call, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse genome json: %w", err)
	}

	if inputs, ok := doc["inputs"]; ok {
		var raw RawInputs
		if err := decodeLoose(inputs, &raw); err != nil {
			return nil, fmt.Errorf("parse genome inputs: %w", err)
		}
		return DecodeRaw(raw, g.IndexDir)
	}

	return DecodeCallMap(doc)
}

// DecodeCallMap decodes {"rs123": {"genotype": "AA", "chromosome": "Y", "position": 2887824}, ...}.
// Calls are returned sorted by id.
func DecodeCallMap(doc map[string]interface{}) ([]Call, error) {
	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	calls := make([]Call, 0, len(ids))
	for _, id := range ids {
		var call Call
		if err := decodeLoose(doc[id], &call); err != nil {
			return nil, fmt.Errorf("genome entry %q: %w", id, err)
		}
		if call.ID == "" {
			call.ID = id
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// decodeLoose accepts numbers where strings are expected
func decodeLoose(input interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

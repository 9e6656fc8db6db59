package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Jeffail/gabs"

	"github.com/ppiankov/haplo/internal/model"
)

const (
	dictWrapperKey = "dict"
	ageKey         = "a"
	familiesKey    = "hf"
	familyIDKey    = "fi"
	surnameKey     = "sn"
	familyTitleKey = "ft"
)

// FamilyIndex maps haplogroups to the surname families linked to them
type FamilyIndex struct {
	entries map[string]model.Lineage
}

// LoadFamiliesFile reads a family dictionary from disk
func LoadFamiliesFile(path string) (*FamilyIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, model.NewConfigurationError("load families", "cannot open "+path, err)
	}
	defer func() { _ = f.Close() }()

	idx, err := LoadFamilies(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}

// LoadFamilies parses a family dictionary:
//
//	{"dict": {"O2a2b1a1": {"a": 2400, "hf": [{"fi": 12, "sn": "Li", "ft": "Longxi"}]}}}
//
// The "dict" wrapper is optional. Haplogroups without "hf" are not indexed.
func LoadFamilies(r io.Reader) (*FamilyIndex, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewConfigurationError("load families", "unreadable document", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	doc, err := gabs.ParseJSONDecoder(dec)
	if err != nil {
		return nil, model.NewConfigurationError("load families", "malformed document", err)
	}

	if doc.Exists(dictWrapperKey) {
		doc = doc.Search(dictWrapperKey)
	}
	haplogroups, err := doc.ChildrenMap()
	if err != nil {
		return nil, model.NewConfigurationError("load families", "dictionary is not an object", err)
	}

	idx := &FamilyIndex{entries: make(map[string]model.Lineage)}
	for haplogroup, entry := range haplogroups {
		if _, ok := entry.Data().(map[string]interface{}); !ok {
			continue
		}
		families, err := items(entry, familiesKey)
		if err != nil {
			return nil, model.NewConfigurationError("load families", fmt.Sprintf("families of %q", haplogroup), err)
		}
		if len(families) == 0 {
			continue
		}

		lineage := model.Lineage{
			Haplogroup: haplogroup,
			Age:        scalar(entry.Search(ageKey).Data()),
		}
		for _, fam := range families {
			lineage.Families = append(lineage.Families, model.Family{
				ID:      scalar(fam.Search(familyIDKey).Data()),
				Surname: scalar(fam.Search(surnameKey).Data()),
				Title:   scalar(fam.Search(familyTitleKey).Data()),
			})
		}
		idx.entries[haplogroup] = lineage
	}
	return idx, nil
}

// Len returns the number of haplogroups with linked families
func (f *FamilyIndex) Len() int {
	return len(f.entries)
}

// Along returns the lineages for the haplogroups of path, in path order
func (f *FamilyIndex) Along(path []model.PathEntry) []model.Lineage {
	var out []model.Lineage
	for _, e := range path {
		if l, ok := f.entries[e.Haplogroup]; ok {
			out = append(out, l)
		}
	}
	return out
}

package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Jeffail/gabs"

	"github.com/ppiankov/haplo/internal/model"
)

const (
	timestampKey = "timestamp"
	wrapperKey   = "tree"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options control how a tree document is interpreted
type Options struct {
	Kind   model.Kind
	Source string
	Schema model.Schema // Unset key names fall back to model.DefaultSchema
}

// LoadFile reads and parses a tree document from disk
func LoadFile(path string, opts Options) (*Tree, error) {
	if path == "" {
		return nil, model.NewConfigurationError("load tree", "no tree file given", nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, model.NewConfigurationError("load tree", "cannot open "+path, err)
	}
	defer func() { _ = f.Close() }()

	t, err := Load(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Load parses a tree document.
//
// The document may carry a top-level "timestamp" and may wrap the root in a
// "tree" key; otherwise the document itself is the root node.
func Load(r io.Reader, opts Options) (*Tree, error) {
	schema := opts.Schema.WithDefaults()
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if _, ok := model.ParseKind(string(opts.Kind)); !ok {
		return nil, model.NewConfigurationError("load tree", fmt.Sprintf("tree kind must be y or mt, got %q", opts.Kind), nil)
	}
	if opts.Source == "" {
		return nil, model.NewConfigurationError("load tree", "tree source label is required", nil)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewConfigurationError("load tree", "unreadable document", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, model.NewConfigurationError("load tree", "empty document", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	doc, err := gabs.ParseJSONDecoder(dec)
	if err != nil {
		return nil, model.NewConfigurationError("load tree", "malformed document", err)
	}

	p := &parser{schema: schema}

	var timestamp string
	if doc.Exists(timestampKey) {
		timestamp = scalar(doc.Search(timestampKey).Data())
	}

	root := doc
	if doc.Exists(wrapperKey) {
		root = doc.Search(wrapperKey)
	}
	if _, ok := root.Data().(map[string]interface{}); !ok {
		return nil, model.NewConfigurationError("load tree", "tree root is not an object", nil)
	}
	if !root.Exists(schema.Node) {
		return nil, model.NewConfigurationError("load tree", fmt.Sprintf("missing root node (no %q key)", schema.Node), nil)
	}

	node, err := p.node(root, "")
	if err != nil {
		return nil, err
	}

	t, err := New(node, opts.Kind, opts.Source)
	if err != nil {
		return nil, err
	}
	t.Timestamp = timestamp
	return t, nil
}

type parser struct {
	schema model.Schema
}

func (p *parser) node(c *gabs.Container, parent string) (*model.Node, error) {
	if _, ok := c.Data().(map[string]interface{}); !ok {
		return nil, model.NewConfigurationError("load tree", fmt.Sprintf("child of %q is not an object", parent), nil)
	}
	id := scalar(c.Search(p.schema.Node).Data())
	if id == "" {
		return nil, model.NewConfigurationError("load tree", fmt.Sprintf("node under %q has no %q", parent, p.schema.Node), nil)
	}

	n := &model.Node{ID: id}

	variants, err := items(c, p.schema.Variants)
	if err != nil {
		return nil, model.NewConfigurationError("load tree", fmt.Sprintf("variants of %q", id), err)
	}
	for _, v := range variants {
		n.Variants = append(n.Variants, model.Variant{
			ID:        scalar(v.Search(p.schema.VariantID).Data()),
			Ancestral: scalar(v.Search(p.schema.Ancestral).Data()),
			Derived:   scalar(v.Search(p.schema.Derived).Data()),
			Pos19:     scalar(v.Search(p.schema.Pos19).Data()),
			Pos38:     scalar(v.Search(p.schema.Pos38).Data()),
			Pos:       scalar(v.Search(p.schema.Pos).Data()),
		})
	}

	children, err := items(c, p.schema.Children)
	if err != nil {
		return nil, model.NewConfigurationError("load tree", fmt.Sprintf("children of %q", id), err)
	}
	for _, child := range children {
		cn, err := p.node(child, id)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, cn)
	}

	return n, nil
}

// items returns the elements of an optional array-valued key
func items(c *gabs.Container, key string) ([]*gabs.Container, error) {
	if !c.Exists(key) {
		return nil, nil
	}
	v := c.Search(key)
	switch v.Data().(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return v.Children()
	default:
		return nil, fmt.Errorf("%q is not an array", key)
	}
}

// scalar renders a JSON scalar as a string; positions arrive as numbers or strings
func scalar(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

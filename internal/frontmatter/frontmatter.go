// Package frontmatter parses and serializes the YAML frontmatter block of a
// note, preserving field order and the underlying scalar type of every value
// across a parse/serialize round trip.
//
// The teacher's pkg/frontmatter package decodes straight into a
// map[string]interface{}, which is adequate for read-only lookups but loses
// key order on re-serialization. mdvault needs order preservation (spec.md
// §4.1), so this package walks a *yaml.Node mapping instead, the same way
// aidanlsb-raven's internal/config.VaultConfig.UnmarshalYAML walks
// value.Content pairs to recover structure yaml.Unmarshal would otherwise
// discard.
package frontmatter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// yamlFormat reuses the teacher's own adrg/frontmatter dependency for
// delimiter detection, but swaps its default yaml.v2-backed Unmarshal for
// yaml.v3's so the decode target can be a *yaml.Node (see format.go's
// defaultFormats, which wires yaml.Unmarshal the same way for its own
// "---"/"---" format).
var yamlFormat = frontmatter.NewFormat(delimiter, delimiter, yaml.Unmarshal)

// Document is a note's frontmatter (ordered) plus its body bytes.
type Document struct {
	// root holds the parsed, order-preserving YAML node. A document with no
	// frontmatter block has a nil root and HasFrontmatter == false.
	root *yaml.Node // DocumentNode wrapping a single MappingNode, or nil
	Body string
}

// HasFrontmatter reports whether the document carries a frontmatter block at
// all (as opposed to having one with zero fields, which is unusual but legal).
func (d *Document) HasFrontmatter() bool {
	return d.root != nil
}

func (d *Document) mapping() *yaml.Node {
	if d.root == nil {
		return nil
	}
	if len(d.root.Content) == 0 {
		return nil
	}
	return d.root.Content[0]
}

// ParseError wraps malformed frontmatter YAML, carrying the raw offending
// text for diagnostics.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed frontmatter: %s", e.Reason)
}

// Parse splits content into its frontmatter document and body, using
// adrg/frontmatter to detect and locate the "---" delimited block (the
// same library the teacher's pkg/frontmatter.Parse calls). Content without
// a leading "---" delimiter line yields a Document with
// HasFrontmatter() == false and Body set to the full input, unchanged.
func Parse(content string) (*Document, error) {
	unbommed := strings.TrimPrefix(content, "\xef\xbb\xbf")

	var doc yaml.Node
	rest, err := frontmatter.Parse(strings.NewReader(unbommed), &doc, yamlFormat)
	if err != nil {
		return nil, &ParseError{Reason: err.Error(), Raw: content}
	}
	if len(rest) == len(unbommed) {
		// No "---" delimiter line was found at all; adrg/frontmatter
		// returns the input untouched.
		return &Document{Body: content}, nil
	}

	body := string(rest)
	if doc.Kind == 0 {
		// The block was present but empty (e.g. "---\n---\n").
		return &Document{root: emptyMappingDocument(), Body: body}, nil
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, &ParseError{Reason: "frontmatter is not a mapping", Raw: content}
	}

	return &Document{root: &doc, Body: body}, nil
}

func emptyMappingDocument() *yaml.Node {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mapping}}
}

// Serialize reconstructs the document bytes. For documents that were parsed
// with no frontmatter, this returns Body unchanged — the round-trip
// invariant from spec.md §8.
func (d *Document) Serialize() (string, error) {
	if d.root == nil {
		return d.Body, nil
	}
	out, err := yaml.Marshal(d.root)
	if err != nil {
		return "", err
	}
	return delimiter + "\n" + string(out) + delimiter + "\n" + d.Body, nil
}

// Keys returns the frontmatter field names in their on-disk order.
func (d *Document) Keys() []string {
	m := d.mapping()
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.Content)/2)
	for i := 0; i < len(m.Content)-1; i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	return keys
}

// Get decodes the value for key into v (see yaml.Node.Decode). ok is false
// when the key is absent.
func (d *Document) Get(key string) (value interface{}, ok bool) {
	m := d.mapping()
	if m == nil {
		return nil, false
	}
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			var v interface{}
			if err := m.Content[i+1].Decode(&v); err != nil {
				return nil, false
			}
			return v, true
		}
	}
	return nil, false
}

// GetNode returns the raw value node for key, for callers that need to tell
// scalar tags apart (e.g. the validator).
func (d *Document) GetNode(key string) (*yaml.Node, bool) {
	m := d.mapping()
	if m == nil {
		return nil, false
	}
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1], true
		}
	}
	return nil, false
}

func (d *Document) ensureMapping() *yaml.Node {
	if d.root == nil {
		d.root = emptyMappingDocument()
	}
	if len(d.root.Content) == 0 {
		d.root.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	return d.root.Content[0]
}

// Set assigns key to value, appending a new field if key is absent and
// overwriting the existing value node (preserving position) otherwise.
// Booleans and numbers are encoded as typed YAML scalars, never quoted
// strings.
func (d *Document) Set(key string, value interface{}) error {
	m := d.ensureMapping()
	valueNode := &yaml.Node{}
	if err := valueNode.Encode(value); err != nil {
		return err
	}
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = valueNode
			return nil
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	m.Content = append(m.Content, keyNode, valueNode)
	return nil
}

// Toggle flips a boolean field, treating an absent field as false (so the
// first toggle sets it to true).
func (d *Document) Toggle(key string) error {
	current := false
	if v, ok := d.Get(key); ok {
		if b, isBool := v.(bool); isBool {
			current = b
		}
	}
	return d.Set(key, !current)
}

// Increment adds delta to a numeric field, treating an absent field as zero.
func (d *Document) Increment(key string, delta int) (int, error) {
	current := 0
	if v, ok := d.Get(key); ok {
		switch n := v.(type) {
		case int:
			current = n
		case int64:
			current = int(n)
		case float64:
			current = int(n)
		}
	}
	next := current + delta
	return next, d.Set(key, next)
}

// Append adds value to a list field, treating an absent field as an empty
// list.
func (d *Document) Append(key string, value interface{}) error {
	m := d.ensureMapping()
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			seq := m.Content[i+1]
			if seq.Kind != yaml.SequenceNode {
				// Promote a scalar into a one-element list before appending.
				existing := &yaml.Node{}
				*existing = *seq
				seq.Kind = yaml.SequenceNode
				seq.Tag = "!!seq"
				seq.Value = ""
				seq.Content = []*yaml.Node{existing}
			}
			item := &yaml.Node{}
			if err := item.Encode(value); err != nil {
				return err
			}
			seq.Content = append(seq.Content, item)
			return nil
		}
	}
	item := &yaml.Node{}
	if err := item.Encode(value); err != nil {
		return err
	}
	seqNode := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{item}}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	m.Content = append(m.Content, keyNode, seqNode)
	return nil
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// SubstitutePlaceholders replaces every {{var}} occurrence in value with its
// string form from vars, leaving unknown placeholders untouched. Operations
// in §4.1 substitute placeholders in a value before applying it.
func SubstitutePlaceholders(value string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

// ParseFieldValue converts a CLI-style raw string (e.g. from --var) into a
// typed value the way the teacher's pkg/frontmatter.parseValue does: booleans
// and bracketed comma lists are recognized, everything else stays a string.
func ParseFieldValue(raw string) interface{} {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := raw[1 : len(raw)-1]
		if strings.TrimSpace(inner) == "" {
			return []string{}
		}
		parts := strings.Split(inner, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}

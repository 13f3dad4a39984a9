// Package yamlpatch edits YAML documents with minimal textual diffs.
//
// Edits are computed against the yaml.v3 node tree but applied as line and
// column splices on the original bytes, so comments, blank lines, key order
// and indentation of untouched regions survive byte-for-byte. The one
// documented exception: a node whose parent collection is in flow style is
// re-serialized in block style before the edit, and a trailing comment on a
// replaced scalar may shift column.
package yamlpatch

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

const indentWidth = 2

// Document is a parsed YAML file plus its original text. One Document
// supports one edit; reload after applying.
type Document struct {
	lines   []string
	finalNL bool
	root    *yaml.Node
}

// Load parses the first document of src.
func Load(src []byte) (*Document, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errkind.New(errkind.YAMLSurgeryConflict, "document is empty")
	}

	text := string(src)
	finalNL := strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")

	return &Document{
		lines:   strings.Split(text, "\n"),
		finalNL: finalNL,
		root:    doc.Content[0],
	}, nil
}

// Bytes renders the (possibly edited) document text.
func (d *Document) Bytes() []byte {
	var b bytes.Buffer
	b.WriteString(strings.Join(d.lines, "\n"))
	if d.finalNL {
		b.WriteString("\n")
	}
	return b.Bytes()
}

// Root exposes the parsed node tree. Line/column information in the tree
// refers to the text as loaded, not to any edits applied since.
func (d *Document) Root() *yaml.Node {
	return d.root
}

// line splicing primitives; 1-based line numbers throughout, matching
// yaml.Node positions.

func (d *Document) replaceRange(start, end int, replacement []string) {
	out := make([]string, 0, len(d.lines)-(end-start+1)+len(replacement))
	out = append(out, d.lines[:start-1]...)
	out = append(out, replacement...)
	out = append(out, d.lines[end:]...)
	d.lines = out
}

func (d *Document) insertAfter(line int, inserted []string) {
	out := make([]string, 0, len(d.lines)+len(inserted))
	out = append(out, d.lines[:line]...)
	out = append(out, inserted...)
	out = append(out, d.lines[line:]...)
	d.lines = out
}

func (d *Document) deleteRange(start, end int) {
	d.replaceRange(start, end, nil)
}

func (d *Document) lineText(line int) string {
	return d.lines[line-1]
}

// endLine returns the last source line a node's subtree occupies. Literal
// and folded scalars extend past their marker line by their content lines.
func endLine(n *yaml.Node) int {
	end := n.Line
	if n.Kind == yaml.ScalarNode {
		switch n.Style {
		case yaml.LiteralStyle, yaml.FoldedStyle:
			content := strings.TrimSuffix(n.Value, "\n")
			if content != "" {
				end += strings.Count(content, "\n") + 1
			}
		default:
			end += strings.Count(n.Value, "\n")
		}
	}
	for _, c := range n.Content {
		if e := endLine(c); e > end {
			end = e
		}
	}
	return end
}

func leadingSpaces(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

func indentOf(width int) string {
	return strings.Repeat(" ", width)
}

// encodeNode renders a node as standalone YAML lines with the package
// indent width.
func encodeNode(n *yaml.Node) ([]string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indentWidth)
	if err := enc.Encode(n); err != nil {
		return nil, fmt.Errorf("failed to render YAML node: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render YAML node: %w", err)
	}
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n"), nil
}

// encodeScalarInline renders a scalar for use on an existing line.
func encodeScalarInline(n *yaml.Node) (string, error) {
	lines, err := encodeNode(n)
	if err != nil {
		return "", err
	}
	if len(lines) != 1 {
		return "", errkind.New(errkind.YAMLSurgeryConflict,
			"value does not fit on a single line")
	}
	return lines[0], nil
}

// renderSeqItem renders node as a block sequence item with the dash at
// dashIndent.
func renderSeqItem(n *yaml.Node, dashIndent int) ([]string, error) {
	body, err := encodeNode(n)
	if err != nil {
		return nil, err
	}
	prefix := indentOf(dashIndent)
	out := make([]string, 0, len(body))
	out = append(out, prefix+"- "+body[0])
	for _, l := range body[1:] {
		out = append(out, prefix+"  "+l)
	}
	return out, nil
}

// renderMappingEntry renders a key plus value as block mapping lines with
// the key at keyIndent. Scalars stay on the key line; collections start on
// the next line, sequence dashes indented one level past the key.
func renderMappingEntry(key string, value *yaml.Node, keyIndent int) ([]string, error) {
	prefix := indentOf(keyIndent)
	if value.Kind == yaml.ScalarNode && !strings.Contains(value.Value, "\n") {
		scalar, err := encodeScalarInline(value)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("%s%s: %s", prefix, key, scalar)}, nil
	}

	out := []string{prefix + key + ":"}
	if value.Kind == yaml.SequenceNode {
		for _, item := range value.Content {
			rendered, err := renderSeqItem(item, keyIndent+indentWidth)
			if err != nil {
				return nil, err
			}
			out = append(out, rendered...)
		}
		return out, nil
	}

	body, err := encodeNode(value)
	if err != nil {
		return nil, err
	}
	for _, l := range body {
		out = append(out, prefix+indentOf(indentWidth)+l)
	}
	return out, nil
}

// clearFlow switches a collection subtree to block style in place.
func clearFlow(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = 0
	}
	for _, c := range n.Content {
		clearFlow(c)
	}
}

func isFlow(n *yaml.Node) bool {
	return n.Style&yaml.FlowStyle != 0
}

// scalarValue returns the string value of a mapping's entry when it is a
// scalar, with ok reporting presence.
func scalarValue(mapping *yaml.Node, key string) (string, bool) {
	v := mappingValue(mapping, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return "", false
	}
	return v.Value, true
}

// mappingValue returns the value node for key, nil when absent.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// mappingEntry returns key and value nodes plus the key's Content index,
// -1 when absent.
func mappingEntry(mapping *yaml.Node, key string) (*yaml.Node, *yaml.Node, int) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i], mapping.Content[i+1], i
		}
	}
	return nil, nil, -1
}

package yamlpatch

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/logging"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

// Insert adds a new mapping entry or sequence item. All but the last path
// element must resolve to an existing collection; the last element names the
// new key or index. Sequence indices at or beyond the end append.
func Insert(src []byte, path []Step, value *yaml.Node) ([]byte, error) {
	d, err := Load(src)
	if err != nil {
		return nil, err
	}
	last := path[len(path)-1]
	loc, err := d.resolve(path[:len(path)-1])
	if err != nil {
		return nil, err
	}
	container := loc.node

	if last.IsKey {
		if container.Kind != yaml.MappingNode {
			return nil, errkind.New(errkind.YAMLSurgeryConflict,
				"cannot insert key %q into a %s", last.Key, kindName(container))
		}
		if mappingValue(container, last.Key) != nil {
			return nil, errkind.New(errkind.YAMLSurgeryConflict,
				"key %q already exists, use replace", last.Key)
		}
		if loc.flow != nil {
			anchor := d.captureFlowAnchor(loc.flow)
			mapSet(container, last.Key, value)
			return d.finishFlowRewrite(anchor)
		}
		if err := d.insertMappingEntry(container, last.Key, value); err != nil {
			return nil, err
		}
		return d.Bytes(), nil
	}

	if container.Kind != yaml.SequenceNode {
		return nil, errkind.New(errkind.YAMLSurgeryConflict,
			"cannot insert index %d into a %s", last.Index, kindName(container))
	}
	if loc.flow != nil {
		anchor := d.captureFlowAnchor(loc.flow)
		seqInsert(container, last.Index, value)
		return d.finishFlowRewrite(anchor)
	}
	if err := d.insertSeqItem(container, last.Index, value); err != nil {
		return nil, err
	}
	return d.Bytes(), nil
}

// Replace overwrites the node the path resolves to.
func Replace(src []byte, path []Step, value *yaml.Node) ([]byte, error) {
	d, err := Load(src)
	if err != nil {
		return nil, err
	}
	loc, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	if loc.parent == nil {
		return nil, errkind.New(errkind.YAMLSurgeryConflict, "cannot replace the document root")
	}

	if loc.flow != nil && loc.flow.node != loc.node {
		anchor := d.captureFlowAnchor(loc.flow)
		loc.parent.Content[loc.contentIdx] = value
		return d.finishFlowRewrite(anchor)
	}

	if err := d.replaceNode(loc, value); err != nil {
		return nil, err
	}
	return d.Bytes(), nil
}

// Remove deletes the mapping entry or sequence item the path resolves to.
func Remove(src []byte, path []Step) ([]byte, error) {
	d, err := Load(src)
	if err != nil {
		return nil, err
	}
	loc, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	if loc.parent == nil {
		return nil, errkind.New(errkind.YAMLSurgeryConflict, "cannot remove the document root")
	}

	if loc.flow != nil && loc.flow.node != loc.node {
		anchor := d.captureFlowAnchor(loc.flow)
		if loc.parent.Kind == yaml.MappingNode {
			mapRemoveAt(loc.parent, loc.contentIdx-1)
		} else {
			seqRemove(loc.parent, loc.contentIdx)
		}
		return d.finishFlowRewrite(anchor)
	}

	d.removeNode(loc)
	return d.Bytes(), nil
}

// block-style edit helpers

// insertMappingEntry appends key: value at the end of a block mapping. The
// mapping node's column, not its first line's indent, is the key indent: a
// mapping that is a sequence item starts on the dash line.
func (d *Document) insertMappingEntry(mapping *yaml.Node, key string, value *yaml.Node) error {
	rendered, err := renderMappingEntry(key, value, mapping.Column-1)
	if err != nil {
		return err
	}
	d.insertAfter(endLine(mapping), rendered)
	return nil
}

// insertSeqItem inserts an item into a block sequence, appending when idx is
// at or beyond the end.
func (d *Document) insertSeqItem(seq *yaml.Node, idx int, item *yaml.Node) error {
	if len(seq.Content) == 0 {
		// A block-style sequence cannot be textually empty; an empty
		// sequence is flow style and handled by the flow path.
		return errkind.New(errkind.YAMLSurgeryConflict, "cannot insert into an empty block sequence")
	}
	rendered, err := renderSeqItem(item, d.dashIndent(seq))
	if err != nil {
		return err
	}
	if idx >= len(seq.Content) {
		d.insertAfter(endLine(seq.Content[len(seq.Content)-1]), rendered)
	} else {
		d.insertAfter(seq.Content[idx].Line-1, rendered)
	}
	return nil
}

// replaceNode overwrites loc.node in block context.
func (d *Document) replaceNode(loc *location, value *yaml.Node) error {
	old := loc.node

	if old.Kind == yaml.ScalarNode && value.Kind == yaml.ScalarNode &&
		!strings.Contains(value.Value, "\n") && endLine(old) == old.Line {
		comment := old.LineComment
		if comment == "" && loc.ownerKey != nil && loc.ownerKey.Line == old.Line {
			// The parser attaches a trailing comment to the key node for
			// some shapes of block mappings.
			comment = loc.ownerKey.LineComment
		}
		return d.replaceScalarInline(old, value, comment)
	}

	if loc.parent.Kind == yaml.MappingNode {
		keyNode := loc.ownerKey
		rendered, err := renderMappingEntry(keyNode.Value, value, keyNode.Column-1)
		if err != nil {
			return err
		}
		d.replaceRange(keyNode.Line, maxInt(endLine(old), keyNode.Line), rendered)
		return nil
	}

	rendered, err := renderSeqItem(value, d.dashIndent(loc.parent))
	if err != nil {
		return err
	}
	d.replaceRange(old.Line, endLine(old), rendered)
	return nil
}

// replaceScalarInline swaps a single-line scalar in place. A trailing
// comment on the line is kept, though its column may shift.
func (d *Document) replaceScalarInline(old *yaml.Node, value *yaml.Node, comment string) error {
	scalar, err := encodeScalarInline(value)
	if err != nil {
		return err
	}
	line := d.lineText(old.Line)
	startCol := old.Column - 1

	newLine := line[:startCol] + scalar
	if comment != "" {
		if ci := strings.LastIndex(line, comment); ci > startCol {
			newLine += " " + line[ci:]
		}
	}
	d.replaceRange(old.Line, old.Line, []string{newLine})
	return nil
}

// removeNode deletes loc.node in block context.
func (d *Document) removeNode(loc *location) {
	if loc.parent.Kind == yaml.MappingNode {
		start := loc.ownerKey.Line
		end := maxInt(endLine(loc.node), start)
		d.deleteRange(start, end)
		return
	}
	d.deleteRange(loc.node.Line, endLine(loc.node))
}

// flow-to-block conversion

// flowAnchor freezes everything needed to re-render the outermost flow
// ancestor after the tree has been mutated.
type flowAnchor struct {
	parent     *yaml.Node
	ownerKey   *yaml.Node
	contentIdx int
	startLine  int
	endLine    int
}

func (d *Document) captureFlowAnchor(flow *location) flowAnchor {
	a := flowAnchor{
		parent:     flow.parent,
		ownerKey:   flow.ownerKey,
		contentIdx: flow.contentIdx,
		startLine:  flow.node.Line,
		endLine:    endLine(flow.node),
	}
	if a.parent != nil && a.parent.Kind == yaml.MappingNode {
		a.startLine = a.ownerKey.Line
	}
	return a
}

// finishFlowRewrite re-renders the anchored region in block style from the
// mutated tree.
func (d *Document) finishFlowRewrite(a flowAnchor) ([]byte, error) {
	logging.Logger().Infow("converting flow-style collection to block style",
		"line", a.startLine)

	if a.parent == nil {
		clearFlow(d.root)
		rendered, err := encodeNode(d.root)
		if err != nil {
			return nil, err
		}
		d.replaceRange(1, a.endLine, rendered)
		return d.Bytes(), nil
	}

	value := a.parent.Content[a.contentIdx]
	clearFlow(value)

	var rendered []string
	var err error
	if a.parent.Kind == yaml.MappingNode {
		rendered, err = renderMappingEntry(a.ownerKey.Value, value, a.ownerKey.Column-1)
	} else {
		rendered, err = renderSeqItem(value, leadingSpaces(d.lineText(a.startLine)))
	}
	if err != nil {
		return nil, err
	}
	d.replaceRange(a.startLine, maxInt(a.endLine, a.startLine), rendered)
	return d.Bytes(), nil
}

// dashIndent derives the dash column of a block sequence from the text of
// its first item's line, falling back to the node position.
func (d *Document) dashIndent(seq *yaml.Node) int {
	if len(seq.Content) > 0 {
		line := d.lineText(seq.Content[0].Line)
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "- ") || trimmed == "-" {
			return leadingSpaces(line)
		}
	}
	return seq.Column - 1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

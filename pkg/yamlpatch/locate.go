package yamlpatch

import (
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

// Step is one element of a YAML path: a mapping key or a sequence index.
type Step struct {
	Key   string
	Index int
	IsKey bool
}

// KeyStep builds a mapping-key step.
func KeyStep(k string) Step { return Step{Key: k, IsKey: true} }

// IndexStep builds a sequence-index step.
func IndexStep(i int) Step { return Step{Index: i} }

func (s Step) String() string {
	if s.IsKey {
		return s.Key
	}
	return fmt.Sprintf("%d", s.Index)
}

// ParsePath parses the CLI representation of a path: a JSON array whose
// elements are strings (mapping keys) or integers (sequence indices).
func ParsePath(s string) ([]Step, error) {
	var raw []interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, errkind.Wrap(errkind.InvalidInput, err, "yaml-path must be a JSON array")
	}
	steps := make([]Step, 0, len(raw))
	for i, el := range raw {
		switch v := el.(type) {
		case string:
			steps = append(steps, KeyStep(v))
		case float64:
			if v != math.Trunc(v) || v < 0 {
				return nil, errkind.New(errkind.InvalidInput, "yaml-path element %d: %v is not a valid index", i, v)
			}
			steps = append(steps, IndexStep(int(v)))
		default:
			return nil, errkind.New(errkind.InvalidInput, "yaml-path element %d must be a string or integer", i)
		}
	}
	if len(steps) == 0 {
		return nil, errkind.New(errkind.InvalidInput, "yaml-path is empty")
	}
	return steps, nil
}

// KeyPath converts a list of mapping keys to steps.
func KeyPath(keys ...string) []Step {
	steps := make([]Step, len(keys))
	for i, k := range keys {
		steps[i] = KeyStep(k)
	}
	return steps
}

// location describes a resolved node and enough of its surroundings to edit
// it: the containing collection, the owning mapping key when there is one,
// and the outermost flow ancestor when the node sits inside a flow region.
type location struct {
	node     *yaml.Node
	parent   *yaml.Node
	ownerKey *yaml.Node
	// contentIdx indexes parent.Content: the value slot for mappings, the
	// item slot for sequences.
	contentIdx int
	// flow is the location of the outermost flow-style ancestor (possibly
	// the node itself); nil when the node lives in block-style territory.
	flow *location
}

// resolve walks steps from the document root.
func (d *Document) resolve(steps []Step) (*location, error) {
	loc := &location{node: d.root}
	if isFlow(d.root) {
		loc.flow = &location{node: d.root}
	}

	for _, step := range steps {
		next, err := descend(loc, step)
		if err != nil {
			return nil, err
		}
		loc = next
	}
	return loc, nil
}

func descend(loc *location, step Step) (*location, error) {
	cur := loc.node
	next := &location{parent: cur, flow: loc.flow}

	switch {
	case step.IsKey:
		if cur.Kind != yaml.MappingNode {
			return nil, errkind.New(errkind.YAMLSurgeryConflict,
				"path element %q expects a mapping, found %s", step, kindName(cur))
		}
		keyNode, valueNode, idx := mappingEntry(cur, step.Key)
		if keyNode == nil {
			return nil, errkind.New(errkind.YAMLSurgeryConflict, "key %q not found", step.Key)
		}
		next.node = valueNode
		next.ownerKey = keyNode
		next.contentIdx = idx + 1
	default:
		if cur.Kind != yaml.SequenceNode {
			return nil, errkind.New(errkind.YAMLSurgeryConflict,
				"path element %q expects a sequence, found %s", step, kindName(cur))
		}
		if step.Index < 0 || step.Index >= len(cur.Content) {
			return nil, errkind.New(errkind.YAMLSurgeryConflict,
				"index %d out of range (sequence has %d items)", step.Index, len(cur.Content))
		}
		next.node = cur.Content[step.Index]
		next.ownerKey = loc.ownerKey
		next.contentIdx = step.Index
	}

	if next.flow == nil && isFlow(next.node) {
		next.flow = &location{
			node:       next.node,
			parent:     next.parent,
			ownerKey:   next.ownerKey,
			contentIdx: next.contentIdx,
		}
	}
	return next, nil
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// tree mutation helpers used by flow rewrites and entry rendering.

func newKeyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

// NewScalarNode builds a plain string scalar.
func NewScalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// ParseValue parses a YAML fragment into a node, for generic insert and
// replace values supplied on the command line.
func ParseValue(s string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, errkind.Wrap(errkind.InvalidInput, err, "bad YAML value %q", s)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errkind.New(errkind.InvalidInput, "empty YAML value")
	}
	return doc.Content[0], nil
}

func seqInsert(seq *yaml.Node, idx int, item *yaml.Node) {
	if idx >= len(seq.Content) {
		seq.Content = append(seq.Content, item)
		return
	}
	seq.Content = append(seq.Content[:idx], append([]*yaml.Node{item}, seq.Content[idx:]...)...)
}

func seqRemove(seq *yaml.Node, idx int) {
	seq.Content = append(seq.Content[:idx], seq.Content[idx+1:]...)
}

func mapSet(m *yaml.Node, key string, value *yaml.Node) {
	if _, _, idx := mappingEntry(m, key); idx >= 0 {
		m.Content[idx+1] = value
		return
	}
	m.Content = append(m.Content, newKeyNode(key), value)
}

func mapRemoveAt(m *yaml.Node, keyIdx int) {
	m.Content = append(m.Content[:keyIdx], m.Content[keyIdx+2:]...)
}

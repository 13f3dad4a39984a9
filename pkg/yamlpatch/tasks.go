package yamlpatch

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

// Semantic operations on the task list of a Pipeline or PipelineRun. Each
// operation locates its target through the node tree and delegates the
// actual splice to the generic editors, so flow-style handling and minimal
// diffs come for free.

// taskContext is the resolved task list of a document plus the path that
// reaches it.
type taskContext struct {
	steps []Step
	tasks *yaml.Node
}

func resolveTasks(src []byte) (*taskContext, error) {
	d, err := Load(src)
	if err != nil {
		return nil, err
	}
	for _, steps := range [][]Step{
		KeyPath("spec", "tasks"),
		KeyPath("spec", "pipelineSpec", "tasks"),
	} {
		loc, err := d.resolve(steps)
		if err != nil {
			continue
		}
		if loc.node.Kind == yaml.SequenceNode {
			return &taskContext{steps: steps, tasks: loc.node}, nil
		}
	}
	return nil, errkind.New(errkind.YAMLSurgeryConflict,
		"document has no task list under spec.tasks or spec.pipelineSpec.tasks")
}

func (tc *taskContext) findTask(name string) (*yaml.Node, int) {
	for i, item := range tc.tasks.Content {
		if v, ok := scalarValue(item, "name"); ok && v == name {
			return item, i
		}
	}
	return nil, -1
}

func (tc *taskContext) taskPath(idx int, rest ...Step) []Step {
	path := make([]Step, 0, len(tc.steps)+1+len(rest))
	path = append(path, tc.steps...)
	path = append(path, IndexStep(idx))
	path = append(path, rest...)
	return path
}

func paramNode(name, value string) *yaml.Node {
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			newKeyNode("name"), NewScalarNode(name),
			newKeyNode("value"), NewScalarNode(value),
		},
	}
}

func seqNode(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

// findParam returns the param item named name plus its index, nil when the
// task has no such param.
func findParam(task *yaml.Node, name string) (*yaml.Node, int) {
	params := mappingValue(task, "params")
	if params == nil || params.Kind != yaml.SequenceNode {
		return nil, -1
	}
	for i, item := range params.Content {
		if v, ok := scalarValue(item, "name"); ok && v == name {
			return item, i
		}
	}
	return nil, -1
}

// AddParam appends a param to the named task. Adding a param that already
// exists with the same value is a no-op; a different value is a conflict
// unless replace is set.
func AddParam(src []byte, task, name, value string, replace bool) ([]byte, error) {
	tc, err := resolveTasks(src)
	if err != nil {
		return nil, err
	}
	taskNode, ti := tc.findTask(task)
	if taskNode == nil {
		return nil, errkind.New(errkind.YAMLSurgeryConflict, "task %q not found", task)
	}

	params := mappingValue(taskNode, "params")
	if params == nil {
		return Insert(src, tc.taskPath(ti, KeyStep("params")), seqNode(paramNode(name, value)))
	}

	if item, pi := findParam(taskNode, name); item != nil {
		current, _ := scalarValue(item, "value")
		if current == value {
			return src, nil
		}
		if !replace {
			return nil, errkind.New(errkind.YAMLSurgeryConflict,
				"task %q already has param %q with value %q", task, name, current)
		}
		return Replace(src, tc.taskPath(ti, KeyStep("params"), IndexStep(pi), KeyStep("value")),
			NewScalarNode(value))
	}

	return Insert(src, tc.taskPath(ti, KeyStep("params"), IndexStep(len(params.Content))),
		paramNode(name, value))
}

// SetParam overwrites a param, appending it when missing.
func SetParam(src []byte, task, name, value string) ([]byte, error) {
	return AddParam(src, task, name, value, true)
}

// RemoveParam deletes a param from the named task. Removing the last param
// removes the params key as well.
func RemoveParam(src []byte, task, name string) ([]byte, error) {
	tc, err := resolveTasks(src)
	if err != nil {
		return nil, err
	}
	taskNode, ti := tc.findTask(task)
	if taskNode == nil {
		return nil, errkind.New(errkind.YAMLSurgeryConflict, "task %q not found", task)
	}
	item, pi := findParam(taskNode, name)
	if item == nil {
		return nil, errkind.New(errkind.YAMLSurgeryConflict,
			"task %q has no param %q", task, name)
	}

	params := mappingValue(taskNode, "params")
	if len(params.Content) == 1 {
		return Remove(src, tc.taskPath(ti, KeyStep("params")))
	}
	return Remove(src, tc.taskPath(ti, KeyStep("params"), IndexStep(pi)))
}

// AddRunAfter adds a task reference to the named task's runAfter list.
// Idempotent: an already-present reference is a no-op.
func AddRunAfter(src []byte, task, ref string) ([]byte, error) {
	tc, err := resolveTasks(src)
	if err != nil {
		return nil, err
	}
	taskNode, ti := tc.findTask(task)
	if taskNode == nil {
		return nil, errkind.New(errkind.YAMLSurgeryConflict, "task %q not found", task)
	}

	runAfter := mappingValue(taskNode, "runAfter")
	if runAfter == nil {
		return Insert(src, tc.taskPath(ti, KeyStep("runAfter")), seqNode(NewScalarNode(ref)))
	}
	for _, item := range runAfter.Content {
		if item.Kind == yaml.ScalarNode && item.Value == ref {
			return src, nil
		}
	}
	return Insert(src, tc.taskPath(ti, KeyStep("runAfter"), IndexStep(len(runAfter.Content))),
		NewScalarNode(ref))
}

// ReplaceBundleRefs rewrites the value of every bundles-resolver "bundle"
// param that points into repository so it carries newRef instead. Returns
// the updated bytes and whether anything changed.
func ReplaceBundleRefs(src []byte, repository, newRef string) ([]byte, bool, error) {
	changed := false
	for {
		path, found, err := findBundleParam(src, repository, newRef)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return src, changed, nil
		}
		src, err = Replace(src, path, NewScalarNode(newRef))
		if err != nil {
			return nil, false, err
		}
		changed = true
	}
}

func findBundleParam(src []byte, repository, newRef string) ([]Step, bool, error) {
	tc, err := resolveTasks(src)
	if err != nil {
		return nil, false, err
	}
	for ti, task := range tc.tasks.Content {
		taskRef := mappingValue(task, "taskRef")
		if taskRef == nil {
			continue
		}
		params := mappingValue(taskRef, "params")
		if params == nil || params.Kind != yaml.SequenceNode {
			continue
		}
		for pi, item := range params.Content {
			if name, ok := scalarValue(item, "name"); !ok || name != "bundle" {
				continue
			}
			value, ok := scalarValue(item, "value")
			if !ok || value == newRef {
				continue
			}
			if value == repository ||
				strings.HasPrefix(value, repository+":") ||
				strings.HasPrefix(value, repository+"@") {
				return tc.taskPath(ti,
					KeyStep("taskRef"), KeyStep("params"), IndexStep(pi), KeyStep("value")), true, nil
			}
		}
	}
	return nil, false, nil
}

// TaskEntry describes a new pipeline task resolved from a bundle.
type TaskEntry struct {
	// Name of the pipeline task.
	Name string
	// Bundle is the pinned bundle reference.
	Bundle string
	// TaskName is the task's name inside the bundle.
	TaskName string
}

// AddTask appends a task entry using the Tekton bundles resolver. A task
// with the same pipeline-task name is a conflict.
func AddTask(src []byte, entry TaskEntry) ([]byte, error) {
	tc, err := resolveTasks(src)
	if err != nil {
		return nil, err
	}
	if existing, _ := tc.findTask(entry.Name); existing != nil {
		return nil, errkind.New(errkind.YAMLSurgeryConflict,
			"task %q already exists in the pipeline", entry.Name)
	}

	node := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			newKeyNode("name"), NewScalarNode(entry.Name),
			newKeyNode("taskRef"), &yaml.Node{
				Kind: yaml.MappingNode,
				Tag:  "!!map",
				Content: []*yaml.Node{
					newKeyNode("resolver"), NewScalarNode("bundles"),
					newKeyNode("params"), seqNode(
						paramNode("bundle", entry.Bundle),
						paramNode("name", entry.TaskName),
						paramNode("kind", "task"),
					),
				},
			},
		},
	}
	return Insert(src, tc.taskPath(len(tc.tasks.Content)), node)
}

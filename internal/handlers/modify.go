package handlers

import (
	"bytes"
	"os"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/yamlpatch"
)

// ModifyTaskRequest represents one semantic task edit.
type ModifyTaskRequest struct {
	File    string
	Task    string
	Op      string
	Args    []string
	Replace bool
}

// ModifyTask applies a semantic edit to the task list of a pipeline file.
func ModifyTask(req ModifyTaskRequest) error {
	src, err := os.ReadFile(req.File)
	if err != nil {
		return errkind.Wrap(errkind.PipelineFileUnreadable, err, "%s", req.File)
	}

	var updated []byte
	switch req.Op {
	case "add-param":
		if err := wantArgs(req.Op, req.Args, 2); err != nil {
			return err
		}
		updated, err = yamlpatch.AddParam(src, req.Task, req.Args[0], req.Args[1], req.Replace)
	case "set-param":
		if err := wantArgs(req.Op, req.Args, 2); err != nil {
			return err
		}
		updated, err = yamlpatch.SetParam(src, req.Task, req.Args[0], req.Args[1])
	case "remove-param":
		if err := wantArgs(req.Op, req.Args, 1); err != nil {
			return err
		}
		updated, err = yamlpatch.RemoveParam(src, req.Task, req.Args[0])
	case "add-run-after":
		if err := wantArgs(req.Op, req.Args, 1); err != nil {
			return err
		}
		updated, err = yamlpatch.AddRunAfter(src, req.Task, req.Args[0])
	default:
		return errkind.New(errkind.InvalidInput, "unknown task operation %q", req.Op)
	}
	if err != nil {
		return err
	}
	return writeIfChanged(req.File, src, updated)
}

// ModifyGenericRequest represents one raw YAML-path edit.
type ModifyGenericRequest struct {
	File  string
	Op    string
	Path  string
	Value string
}

// ModifyGeneric applies an insert/replace/remove at a YAML path.
func ModifyGeneric(req ModifyGenericRequest) error {
	src, err := os.ReadFile(req.File)
	if err != nil {
		return errkind.Wrap(errkind.PipelineFileUnreadable, err, "%s", req.File)
	}
	path, err := yamlpatch.ParsePath(req.Path)
	if err != nil {
		return err
	}

	var updated []byte
	switch req.Op {
	case "insert", "replace":
		value, err := yamlpatch.ParseValue(req.Value)
		if err != nil {
			return err
		}
		if req.Op == "insert" {
			updated, err = yamlpatch.Insert(src, path, value)
		} else {
			updated, err = yamlpatch.Replace(src, path, value)
		}
		if err != nil {
			return err
		}
	case "remove":
		updated, err = yamlpatch.Remove(src, path)
		if err != nil {
			return err
		}
	default:
		return errkind.New(errkind.InvalidInput, "unknown generic operation %q", req.Op)
	}
	return writeIfChanged(req.File, src, updated)
}

func wantArgs(op string, args []string, n int) error {
	if len(args) != n {
		return errkind.New(errkind.InvalidInput, "%s takes %d argument(s), got %d", op, n, len(args))
	}
	return nil
}

func writeIfChanged(path string, src, updated []byte) error {
	if bytes.Equal(src, updated) {
		return nil
	}
	return writeFilePreservingMode(path, updated)
}

package handlers

import (
	"fmt"
	"os"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/bundle"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/pipeline"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/yamlpatch"
)

// AddTaskRequest represents the parameters of the add-task subcommand.
type AddTaskRequest struct {
	BundleRef        string
	PipelineFiles    []string
	PipelineTaskName string
}

// AddTask appends a bundles-resolver task entry to each target pipeline.
func AddTask(req AddTaskRequest) error {
	ref, err := bundle.ParseRef(req.BundleRef)
	if err != nil {
		return errkind.Wrap(errkind.InvalidInput, err, "bad bundle reference")
	}
	if !ref.Pinned() {
		return errkind.New(errkind.InvalidInput,
			"bundle reference %s must carry both tag and digest", req.BundleRef)
	}

	taskName := req.PipelineTaskName
	if taskName == "" {
		taskName = ref.TaskName()
	}

	files, err := pipeline.Discover(pipeline.DefaultRoot, req.PipelineFiles)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errkind.New(errkind.InvalidInput, "no pipeline files to add the task to")
	}

	entry := yamlpatch.TaskEntry{
		Name:     taskName,
		Bundle:   ref.String(),
		TaskName: ref.TaskName(),
	}
	for _, f := range files {
		src, err := os.ReadFile(f.Path)
		if err != nil {
			return errkind.Wrap(errkind.PipelineFileUnreadable, err, "%s", f.Path)
		}
		updated, err := yamlpatch.AddTask(src, entry)
		if err != nil {
			return fmt.Errorf("failed to add task to %s: %w", f.Path, err)
		}
		if err := writeFilePreservingMode(f.Path, updated); err != nil {
			return err
		}
		fmt.Printf("added task %s to %s\n", taskName, f.Path)
	}
	return nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/handlers"
)

var addTaskCmd = &cobra.Command{
	Use:   "add-task <bundle-ref> [pipeline-file ...]",
	Short: "Add a task from a bundle to pipeline files",
	Long: `Append a task entry resolved from the given bundle (tag and digest
required) to each target pipeline, using the Tekton bundles resolver.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskName, _ := cmd.Flags().GetString("pipeline-task-name")
		return handlers.AddTask(handlers.AddTaskRequest{
			BundleRef:        args[0],
			PipelineFiles:    args[1:],
			PipelineTaskName: taskName,
		})
	},
}

func init() {
	addTaskCmd.Flags().String("pipeline-task-name", "", "Name of the new pipeline task (defaults to the bundle's task name)")
	rootCmd.AddCommand(addTaskCmd)
}

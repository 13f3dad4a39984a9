package main

import (
	"github.com/spf13/cobra"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/handlers"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

var modifyCmd = &cobra.Command{
	Use:   "modify -f <pipeline-file> <resource> <op> [args ...]",
	Short: "Edit a pipeline file in place with a minimal diff",
	Long: `Apply one edit to a pipeline YAML file, preserving comments, key order
and indentation everywhere else.

Resources and operations:
  task <name> add-param <key> <value>     append a param (no-op when equal)
  task <name> set-param <key> <value>     overwrite or append a param
  task <name> remove-param <key>          delete a param
  task <name> add-run-after <task>        add a runAfter entry (idempotent)
  generic insert <yaml-path> <value>      insert at a path (JSON array)
  generic replace <yaml-path> <value>     replace the node at a path
  generic remove <yaml-path>              remove the node at a path`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		replace, _ := cmd.Flags().GetBool("replace")

		switch args[0] {
		case "task":
			if len(args) < 3 {
				return errkind.New(errkind.InvalidInput, "usage: modify -f <file> task <name> <op> [args ...]")
			}
			return handlers.ModifyTask(handlers.ModifyTaskRequest{
				File:    file,
				Task:    args[1],
				Op:      args[2],
				Args:    args[3:],
				Replace: replace,
			})
		case "generic":
			if len(args) < 3 {
				return errkind.New(errkind.InvalidInput, "usage: modify -f <file> generic <op> <yaml-path> [value]")
			}
			req := handlers.ModifyGenericRequest{File: file, Op: args[1], Path: args[2]}
			if len(args) > 3 {
				req.Value = args[3]
			}
			return handlers.ModifyGeneric(req)
		default:
			return errkind.New(errkind.InvalidInput, "unknown resource %q", args[0])
		}
	},
}

func init() {
	modifyCmd.Flags().StringP("file", "f", "", "Pipeline file to edit")
	modifyCmd.Flags().Bool("replace", false, "Allow add-param to overwrite a differing value")
	_ = modifyCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(modifyCmd)
}

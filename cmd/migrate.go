package main

import (
	"github.com/spf13/cobra"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/handlers"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply task bundle migrations for a set of upgrades",
	Long: `Resolve the migrations published between the old and new version of each
upgraded task bundle and run them, in order, against the affected pipeline
files. Input is the upgrades JSON produced by the dependency bump tool.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		upgrades, _ := cmd.Flags().GetString("upgrades")
		newBundles, _ := cmd.Flags().GetStringArray("new-bundle")
		pipelineFiles, _ := cmd.Flags().GetStringArray("pipeline-file")
		useLegacy, _ := cmd.Flags().GetBool("use-legacy-migration-search")

		handler, err := handlers.NewMigrateHandler()
		if err != nil {
			return err
		}
		return handler.Migrate(cmd.Context(), handlers.MigrateRequest{
			UpgradesJSON:    upgrades,
			NewBundles:      newBundles,
			PipelineFiles:   pipelineFiles,
			UseLegacySearch: useLegacy,
		})
	},
}

func init() {
	migrateCmd.Flags().StringP("upgrades", "u", "", "Upgrades JSON array from the dependency bump tool")
	migrateCmd.Flags().StringArray("new-bundle", nil, "Replace a bundle manually without running migrations (repeatable)")
	migrateCmd.Flags().StringArray("pipeline-file", nil, "Restrict discovery to the given pipeline file (repeatable)")
	migrateCmd.Flags().Bool("use-legacy-migration-search", false, "Read migrations from the versioned directory layout (development only)")
	rootCmd.AddCommand(migrateCmd)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/logging"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

var rootCmd = &cobra.Command{
	Use:   "pmt",
	Short: "A tool for applying task bundle migrations to Tekton pipelines",
	Long: `pmt keeps Konflux pipeline definitions in step with task bundle upgrades:
- Discovering migrations published between two bundle versions
- Running each migration against the affected pipeline files
- Making small comment-preserving edits to pipeline YAML directly`,
	SilenceUsage: true,
}

func main() {
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errkind.ExitCodeOf(err))
	}
}

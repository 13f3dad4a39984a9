package migrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/envcfg"
	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/logging"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

const (
	// BundleRefEnvVar exposes the migration's bundle reference to the
	// script.
	BundleRefEnvVar = "PMT_MIGRATION_BUNDLE_REF"
	// BundleVersionEnvVar exposes the bundle's tag to the script.
	BundleVersionEnvVar = "PMT_MIGRATION_VERSION"
)

// Runner executes migration scripts strictly serially: migration order is a
// correctness property and the scripts mutate shared pipeline files.
type Runner struct {
	// WorkDir is the working directory for spawned scripts, typically the
	// repository root. Empty means the current directory.
	WorkDir string
}

// Run executes the plan in order. The first failure aborts the remaining
// entries; edits already applied to disk are left in place for the caller's
// version control to sort out.
func (r *Runner) Run(ctx context.Context, plan *Plan) error {
	for _, entry := range plan.Entries {
		if err := r.runEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runEntry(ctx context.Context, entry PlanEntry) error {
	scriptPath, cleanup, err := writeScript(entry)
	if err != nil {
		return err
	}
	defer cleanup()

	pipelineFile, err := filepath.Abs(entry.File)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", entry.File, err)
	}

	timeout := envcfg.MigrationTimeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, scriptPath, pipelineFile)
	cmd.Dir = r.WorkDir
	// Give the script a chance to clean up on interrupt before the hard
	// kill that WaitDelay triggers.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 10 * time.Second
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%s", BundleRefEnvVar, entry.Migration.Ref.String()),
		fmt.Sprintf("%s=%s", BundleVersionEnvVar, entry.Migration.Ref.Tag),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Logger().Infow("running migration",
		"bundle", entry.Migration.Ref.String(), "file", entry.File)

	err = cmd.Run()
	if stdout.Len() > 0 {
		logging.Logger().Debugw("migration stdout", "script", entry.Migration.Name, "output", stdout.String())
	}
	if stderr.Len() > 0 {
		logging.Logger().Debugw("migration stderr", "script", entry.Migration.Name, "output", stderr.String())
	}

	if err == nil {
		return nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return errkind.Wrap(errkind.MigrationFailed, err,
			"migration %s timed out after %s on %s", entry.Migration.Name, timeout, entry.File)
	}
	return errkind.Wrap(errkind.MigrationFailed, err,
		"migration %s failed on %s: %s", entry.Migration.Name, entry.File, lastLine(stderr.String()))
}

// writeScript materializes the script bytes as an executable temp file. The
// returned cleanup removes it on every exit path.
func writeScript(entry PlanEntry) (string, func(), error) {
	f, err := os.CreateTemp("", "pmt-migration-*.sh")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create migration script file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(entry.Migration.Script); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write migration script: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write migration script: %w", err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to mark migration script executable: %w", err)
	}
	return path, cleanup, nil
}

func lastLine(s string) string {
	lines := bytes.Split(bytes.TrimSpace([]byte(s)), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(lines[len(lines)-1])
}

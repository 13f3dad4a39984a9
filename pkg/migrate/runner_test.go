package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/envcfg"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/bundle"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

func testMigration(tag, script string) bundle.Migration {
	return bundle.Migration{
		Ref:    bundle.Ref{Repository: testRepo, Tag: tag, Digest: "sha256:" + tag},
		Script: []byte(script),
		Name:   "clone-" + tag + ".sh",
	}
}

func TestRunner_PassesFileAndEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	pipelineFile := filepath.Join(tmpDir, "pipeline.yaml")
	if err := os.WriteFile(pipelineFile, []byte("kind: Pipeline\n"), 0o644); err != nil {
		t.Fatalf("Failed to write pipeline file: %v", err)
	}
	outFile := filepath.Join(tmpDir, "out.txt")

	script := "#!/bin/sh\necho \"$1 $PMT_MIGRATION_BUNDLE_REF $PMT_MIGRATION_VERSION\" > " + outFile + "\n"
	plan := &Plan{}
	plan.Append(Upgrade{DepName: testRepo}, []bundle.Migration{testMigration("0.2", script)}, []string{pipelineFile})

	r := &Runner{WorkDir: tmpDir}
	if err := r.Run(context.Background(), plan); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("Migration did not run: %v", err)
	}
	got := strings.TrimSpace(string(out))
	want := pipelineFile + " " + testRepo + ":0.2@sha256:0.2 0.2"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestRunner_FailureAbortsRemainingEntries(t *testing.T) {
	tmpDir := t.TempDir()
	pipelineFile := filepath.Join(tmpDir, "pipeline.yaml")
	if err := os.WriteFile(pipelineFile, []byte("kind: Pipeline\n"), 0o644); err != nil {
		t.Fatalf("Failed to write pipeline file: %v", err)
	}
	marker := filepath.Join(tmpDir, "second-ran")

	plan := &Plan{}
	plan.Append(Upgrade{DepName: testRepo},
		[]bundle.Migration{
			testMigration("0.2", "#!/bin/sh\nexit 1\n"),
			testMigration("0.3", "#!/bin/sh\ntouch "+marker+"\n"),
		},
		[]string{pipelineFile})

	r := &Runner{WorkDir: tmpDir}
	err := r.Run(context.Background(), plan)
	if !errkind.Is(err, errkind.MigrationFailed) {
		t.Fatalf("Expected MigrationFailed, got %v", err)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Errorf("Second migration ran after the first failed")
	}
}

func TestRunner_Timeout(t *testing.T) {
	t.Setenv(envcfg.MigrationTimeoutVar, "1")

	tmpDir := t.TempDir()
	pipelineFile := filepath.Join(tmpDir, "pipeline.yaml")
	if err := os.WriteFile(pipelineFile, []byte("kind: Pipeline\n"), 0o644); err != nil {
		t.Fatalf("Failed to write pipeline file: %v", err)
	}

	plan := &Plan{}
	plan.Append(Upgrade{DepName: testRepo},
		[]bundle.Migration{testMigration("0.2", "#!/bin/sh\nexec sleep 30\n")},
		[]string{pipelineFile})

	r := &Runner{WorkDir: tmpDir}
	err := r.Run(context.Background(), plan)
	if !errkind.Is(err, errkind.MigrationFailed) {
		t.Fatalf("Expected MigrationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Expected a timeout reason, got %v", err)
	}
}

func TestRunner_ScriptFileRemoved(t *testing.T) {
	entry := PlanEntry{Migration: testMigration("0.2", "#!/bin/sh\nexit 0\n"), File: "x.yaml"}
	path, cleanup, err := writeScript(entry)
	if err != nil {
		t.Fatalf("writeScript failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Script file missing: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("Expected mode 0700, got %v", info.Mode().Perm())
	}
	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Script file not removed")
	}
}

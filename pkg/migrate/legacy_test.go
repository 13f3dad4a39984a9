package migrate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLegacyResolver_VersionWindow(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, LegacyDir, "clone")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create migrations dir: %v", err)
	}
	for _, v := range []string{"0.1", "0.2", "0.3", "0.10"} {
		if err := os.WriteFile(filepath.Join(dir, v+".sh"), []byte("echo "+v), 0o644); err != nil {
			t.Fatalf("Failed to write script: %v", err)
		}
	}

	r := &LegacyResolver{Root: root}
	migrations, err := r.Resolve(Upgrade{
		DepName:      "quay.io/konflux-ci/task-clone",
		CurrentValue: "0.1",
		NewValue:     "0.10",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	var tags []string
	for _, m := range migrations {
		tags = append(tags, m.Ref.Tag)
	}
	want := []string{"0.2", "0.3", "0.10"}
	if len(tags) != len(want) {
		t.Fatalf("Expected %v, got %v", want, tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, tags)
		}
	}
	if string(migrations[0].Script) != "echo 0.2" {
		t.Errorf("Unexpected script content: %s", migrations[0].Script)
	}
}

func TestLegacyResolver_NoDirectory(t *testing.T) {
	r := &LegacyResolver{Root: t.TempDir()}
	migrations, err := r.Resolve(Upgrade{DepName: "quay.io/ns/task-x", CurrentValue: "0.1", NewValue: "0.2"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("Expected no migrations, got %d", len(migrations))
	}
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"0.1", "0.2", -1},
		{"0.2", "0.2", 0},
		{"0.10", "0.2", 1},
		{"1.0", "0.9", 1},
		{"0.1", "0.1.1", -1},
	}
	for _, c := range cases {
		if got := compareVersions(c.a, c.b); got != c.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

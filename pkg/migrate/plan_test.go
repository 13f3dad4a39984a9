package migrate

import (
	"reflect"
	"testing"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/bundle"
)

func TestPlan_OrderIsUpgradeThenMigrationThenFile(t *testing.T) {
	upgradeA := Upgrade{DepName: "quay.io/ns/task-a"}
	upgradeB := Upgrade{DepName: "quay.io/ns/task-b"}
	migA := testMigration("0.2", "a")
	migB1 := testMigration("0.2", "b1")
	migB2 := testMigration("0.3", "b2")

	plan := &Plan{}
	plan.Append(upgradeA, []bundle.Migration{migA}, []string{"b.yaml", "a.yaml"})
	plan.Append(upgradeB, []bundle.Migration{migB1, migB2}, []string{"c.yaml"})

	var got []string
	for _, e := range plan.Entries {
		got = append(got, e.Upgrade.DepName+"/"+e.Migration.Ref.Tag+"/"+e.File)
	}
	want := []string{
		"quay.io/ns/task-a/0.2/a.yaml",
		"quay.io/ns/task-a/0.2/b.yaml",
		"quay.io/ns/task-b/0.2/c.yaml",
		"quay.io/ns/task-b/0.3/c.yaml",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unexpected plan order:\n got: %v\nwant: %v", got, want)
	}
}

func TestPlan_SwappedInputSwapsOrder(t *testing.T) {
	upgradeA := Upgrade{DepName: "quay.io/ns/task-a"}
	upgradeB := Upgrade{DepName: "quay.io/ns/task-b"}
	mig := testMigration("0.2", "x")

	forward := &Plan{}
	forward.Append(upgradeA, []bundle.Migration{mig}, []string{"p.yaml"})
	forward.Append(upgradeB, []bundle.Migration{mig}, []string{"p.yaml"})

	reversed := &Plan{}
	reversed.Append(upgradeB, []bundle.Migration{mig}, []string{"p.yaml"})
	reversed.Append(upgradeA, []bundle.Migration{mig}, []string{"p.yaml"})

	if forward.Entries[0].Upgrade.DepName != reversed.Entries[1].Upgrade.DepName {
		t.Errorf("Plan order must follow upgrade input order")
	}
}

func TestPlan_Summary(t *testing.T) {
	plan := &Plan{}
	plan.Append(Upgrade{DepName: testRepo},
		[]bundle.Migration{testMigration("0.2", "x")},
		[]string{"a.yaml", "b.yaml"})

	lines := plan.Summary()
	if len(lines) != 1 {
		t.Fatalf("Expected 1 summary line, got %d", len(lines))
	}
	want := "applied migration of " + testRepo + ":0.2@sha256:0.2 to 2 file(s)"
	if lines[0] != want {
		t.Errorf("Expected %q, got %q", want, lines[0])
	}
}

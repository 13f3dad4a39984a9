package migrate

import (
	"fmt"
	"sort"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/bundle"
)

// PlanEntry pairs a migration with one pipeline file to run it against.
type PlanEntry struct {
	Migration bundle.Migration
	File      string
	Upgrade   Upgrade
}

// Plan is the ordered execution sequence: upgrades in input order, each
// upgrade's migrations in chronological order, and within one migration the
// affected files sorted lexicographically for reproducibility.
type Plan struct {
	Entries []PlanEntry
}

// Empty reports whether there is nothing to run.
func (p *Plan) Empty() bool {
	return len(p.Entries) == 0
}

// Append adds one upgrade's migrations for the given files.
func (p *Plan) Append(u Upgrade, migrations []bundle.Migration, files []string) {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)

	for _, m := range migrations {
		for _, f := range sorted {
			p.Entries = append(p.Entries, PlanEntry{Migration: m, File: f, Upgrade: u})
		}
	}
}

// Summary renders one line per applied migration.
func (p *Plan) Summary() []string {
	var lines []string
	var last string
	count := 0
	flush := func() {
		if last != "" {
			lines = append(lines, fmt.Sprintf("applied migration of %s to %d file(s)", last, count))
		}
	}
	for _, e := range p.Entries {
		ref := e.Migration.Ref.String()
		if ref != last {
			flush()
			last = ref
			count = 0
		}
		count++
	}
	flush()
	return lines
}

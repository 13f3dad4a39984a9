package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/bundle"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

// LegacyDir is the development-only directory layout holding migration
// scripts as migrations/<task-name>/<version>.sh.
const LegacyDir = "migrations"

// LegacyResolver reads migrations from the versioned directory layout
// instead of the registry. Development use only; window semantics mirror
// the registry resolver but order by version string rather than timestamps.
type LegacyResolver struct {
	Root string
}

// Resolve returns the scripts for versions in (currentValue, newValue],
// ordered oldest first.
func (r *LegacyResolver) Resolve(u Upgrade) ([]bundle.Migration, error) {
	ref := bundle.Ref{Repository: u.DepName}
	dir := filepath.Join(r.Root, LegacyDir, ref.TaskName())

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sh") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(e.Name(), ".sh"))
	}
	sort.Slice(versions, func(i, j int) bool {
		return compareVersions(versions[i], versions[j]) < 0
	})

	var migrations []bundle.Migration
	for _, v := range versions {
		if compareVersions(v, u.CurrentValue) <= 0 || compareVersions(v, u.NewValue) > 0 {
			continue
		}
		path := filepath.Join(dir, v+".sh")
		script, err := os.ReadFile(path)
		if err != nil {
			return nil, errkind.Wrap(errkind.Internal, err, "failed to read migration %s", path)
		}
		migrations = append(migrations, bundle.Migration{
			Ref:    bundle.Ref{Repository: u.DepName, Tag: v, Digest: u.NewDigest},
			Script: script,
			Name:   fmt.Sprintf("%s-%s.sh", ref.TaskName(), v),
		})
	}
	return migrations, nil
}

// compareVersions orders dotted numeric versions; non-numeric segments fall
// back to string comparison.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		default:
			if sa != sb {
				if sa < sb {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}

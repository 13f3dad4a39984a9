// Package migrate resolves which migrations an upgrade requires and runs
// them against the affected pipeline files.
package migrate

import (
	"encoding/json"
	"fmt"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

// TaskBundleDepType is the Renovate depType marking a task-bundle upgrade.
const TaskBundleDepType = "tekton-bundle"

// Upgrade is one dependency bump as emitted by the upstream bump tool.
// Unknown fields in the input are ignored.
type Upgrade struct {
	DepName       string   `json:"depName"`
	CurrentValue  string   `json:"currentValue"`
	CurrentDigest string   `json:"currentDigest"`
	NewValue      string   `json:"newValue"`
	NewDigest     string   `json:"newDigest"`
	PackageFile   string   `json:"packageFile"`
	ParentDir     string   `json:"parentDir"`
	DepTypes      []string `json:"depTypes"`
}

// IsTaskBundle reports whether the upgrade concerns a task bundle.
func (u Upgrade) IsTaskBundle() bool {
	for _, t := range u.DepTypes {
		if t == TaskBundleDepType {
			return true
		}
	}
	return false
}

// Key identifies an upgrade for de-duplication.
func (u Upgrade) Key() string {
	return fmt.Sprintf("%s\x00%s\x00%s", u.DepName, u.CurrentDigest, u.NewDigest)
}

// ParseUpgrades parses and validates the upgrades JSON payload. Validation
// failures cite the failing element.
func ParseUpgrades(data []byte) ([]Upgrade, error) {
	var upgrades []Upgrade
	if err := json.Unmarshal(data, &upgrades); err != nil {
		return nil, errkind.Wrap(errkind.InvalidInput, err, "upgrades is not a JSON array")
	}
	for i, u := range upgrades {
		if err := validateUpgrade(u); err != nil {
			return nil, errkind.Wrap(errkind.InvalidInput, err, "upgrades[%d]", i)
		}
	}
	return upgrades, nil
}

func validateUpgrade(u Upgrade) error {
	required := []struct {
		name  string
		value string
	}{
		{"depName", u.DepName},
		{"currentValue", u.CurrentValue},
		{"currentDigest", u.CurrentDigest},
		{"newValue", u.NewValue},
		{"newDigest", u.NewDigest},
		{"packageFile", u.PackageFile},
		{"parentDir", u.ParentDir},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("missing required field %s", f.name)
		}
	}
	if u.DepTypes == nil {
		return fmt.Errorf("missing required field depTypes")
	}
	return nil
}

// FilterTaskBundleUpgrades keeps task-bundle upgrades, de-duplicated by
// (depName, currentDigest, newDigest), preserving input order.
func FilterTaskBundleUpgrades(upgrades []Upgrade) []Upgrade {
	seen := make(map[string]bool)
	var out []Upgrade
	for _, u := range upgrades {
		if !u.IsTaskBundle() {
			continue
		}
		if seen[u.Key()] {
			continue
		}
		seen[u.Key()] = true
		out = append(out, u)
	}
	return out
}

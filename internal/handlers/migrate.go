// Package handlers holds the business logic behind each subcommand.
package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/logging"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/bundle"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/migrate"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/pipeline"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/registry"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/yamlpatch"
)

// MigrateRequest represents the parameters of the migrate subcommand.
type MigrateRequest struct {
	UpgradesJSON    string
	NewBundles      []string
	PipelineFiles   []string
	UseLegacySearch bool
}

// MigrateHandler wires discovery, resolution and execution together.
type MigrateHandler struct {
	resolver *migrate.Resolver
	legacy   *migrate.LegacyResolver
	runner   *migrate.Runner
}

// NewMigrateHandler builds the handler with live, cached registry
// collaborators.
func NewMigrateHandler() (*MigrateHandler, error) {
	client, err := registry.NewClient()
	if err != nil {
		return nil, err
	}
	lister, err := registry.NewQuayTagLister()
	if err != nil {
		return nil, err
	}
	cachedRegistry := registry.NewCachedRegistry(client)
	cachedTags := registry.NewCachedTagLister(lister)
	inspector := bundle.NewInspector(cachedRegistry)

	return &MigrateHandler{
		resolver: migrate.NewResolver(cachedTags, inspector),
		legacy:   &migrate.LegacyResolver{Root: "."},
		runner:   &migrate.Runner{},
	}, nil
}

// Migrate executes the request: either the upgrades-driven migration flow
// or the manual bundle replacement when --new-bundle is used.
func (h *MigrateHandler) Migrate(ctx context.Context, req MigrateRequest) error {
	if len(req.NewBundles) > 0 {
		if req.UpgradesJSON != "" {
			return errkind.New(errkind.InvalidInput, "--upgrades and --new-bundle are mutually exclusive")
		}
		return h.replaceBundles(req)
	}
	if req.UpgradesJSON == "" {
		return errkind.New(errkind.InvalidInput, "either --upgrades or --new-bundle is required")
	}

	upgrades, err := migrate.ParseUpgrades([]byte(req.UpgradesJSON))
	if err != nil {
		return err
	}
	bundleUpgrades := migrate.FilterTaskBundleUpgrades(upgrades)
	if len(bundleUpgrades) == 0 {
		fmt.Println("no task bundle upgrades, nothing to do")
		return nil
	}

	plan := &migrate.Plan{}
	planned := false
	for _, u := range bundleUpgrades {
		migrations, err := h.resolveMigrations(ctx, req, u)
		if err != nil {
			return err
		}
		if len(migrations) == 0 {
			continue
		}
		planned = true

		files, err := h.targetFiles(req, u)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			logging.Logger().Warnw("no pipeline files for upgrade", "dep", u.DepName)
			continue
		}
		plan.Append(u, migrations, files)
	}

	if planned && plan.Empty() {
		return errkind.New(errkind.InvalidInput, "every pipeline file in the plan was skipped")
	}
	if plan.Empty() {
		fmt.Println("no migrations to apply")
		return nil
	}

	if err := h.runner.Run(ctx, plan); err != nil {
		return err
	}
	for _, line := range plan.Summary() {
		fmt.Println(line)
	}
	return nil
}

func (h *MigrateHandler) resolveMigrations(ctx context.Context, req MigrateRequest, u migrate.Upgrade) ([]bundle.Migration, error) {
	if req.UseLegacySearch {
		return h.legacy.Resolve(u)
	}
	return h.resolver.Resolve(ctx, u)
}

// targetFiles computes the pipeline files affected by one upgrade: the
// files discovered under its parentDir with the upgrade's packageFile
// always included, or the explicit --pipeline-file list when given.
func (h *MigrateHandler) targetFiles(req MigrateRequest, u migrate.Upgrade) ([]string, error) {
	if len(req.PipelineFiles) > 0 {
		files, err := pipeline.Discover("", req.PipelineFiles)
		if err != nil {
			return nil, err
		}
		return paths(files), nil
	}

	root := u.ParentDir
	if root == "" {
		root = pipeline.DefaultRoot
	}
	files, err := pipeline.Discover(root, nil)
	if err != nil {
		return nil, err
	}
	result := paths(files)

	if !contains(result, u.PackageFile) {
		extra, err := pipeline.Discover("", []string{u.PackageFile})
		if err != nil {
			return nil, err
		}
		result = append(result, paths(extra)...)
	}
	return result, nil
}

// replaceBundles performs the manual replacement path: pin each given
// bundle into every affected pipeline file without running migrations.
func (h *MigrateHandler) replaceBundles(req MigrateRequest) error {
	refs := make([]bundle.Ref, 0, len(req.NewBundles))
	for _, s := range req.NewBundles {
		ref, err := bundle.ParseRef(s)
		if err != nil {
			return errkind.Wrap(errkind.InvalidInput, err, "bad --new-bundle value")
		}
		if !ref.Pinned() {
			return errkind.New(errkind.InvalidInput,
				"--new-bundle %s must carry both tag and digest", s)
		}
		refs = append(refs, ref)
	}

	root := pipeline.DefaultRoot
	files, err := pipeline.Discover(root, req.PipelineFiles)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errkind.New(errkind.InvalidInput, "no pipeline files found under %s", root)
	}

	for _, f := range files {
		src, err := os.ReadFile(f.Path)
		if err != nil {
			return errkind.Wrap(errkind.PipelineFileUnreadable, err, "%s", f.Path)
		}
		changed := false
		for _, ref := range refs {
			updated, didChange, err := yamlpatch.ReplaceBundleRefs(src, ref.Repository, ref.String())
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", f.Path, err)
			}
			src = updated
			changed = changed || didChange
		}
		if !changed {
			continue
		}
		if err := writeFilePreservingMode(f.Path, src); err != nil {
			return err
		}
		fmt.Printf("updated bundle references in %s\n", f.Path)
	}
	return nil
}

func writeFilePreservingMode(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func paths(files []pipeline.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

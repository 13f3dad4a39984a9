package migrate

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/envcfg"
	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/logging"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/bundle"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/registry"
)

// Resolver turns one upgrade into the ordered list of migrations to apply.
type Resolver struct {
	tags      registry.TagLister
	inspector *bundle.Inspector
}

// NewResolver builds a Resolver. Both collaborators are expected to be the
// cached variants so a window is walked off the network at most once.
func NewResolver(tags registry.TagLister, inspector *bundle.Inspector) *Resolver {
	return &Resolver{tags: tags, inspector: inspector}
}

// Resolve returns the migrations of every bundle strictly after the
// upgrade's old digest up to and including the new digest, in chronological
// order. The old bundle's migration was applied on a prior upgrade and is
// never included.
func (r *Resolver) Resolve(ctx context.Context, u Upgrade) ([]bundle.Migration, error) {
	records, err := r.tags.ListTags(ctx, u.DepName)
	if err != nil {
		return nil, err
	}

	window, err := migrationWindow(records, u)
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return nil, nil
	}

	refs := make([]bundle.Ref, len(window))
	for i, rec := range window {
		refs[i] = bundle.Ref{Repository: u.DepName, Tag: rec.Name, Digest: rec.Digest}
	}
	return r.fetchMigrations(ctx, refs)
}

// migrationWindow computes the (old, new] slice of the tag history in
// chronological order, eliding re-tagged digests to their earliest
// occurrence.
func migrationWindow(records []registry.TagRecord, u Upgrade) ([]registry.TagRecord, error) {
	// Tag histories arrive newest first; flip to chronological order.
	chrono := make([]registry.TagRecord, len(records))
	for i, rec := range records {
		chrono[len(records)-1-i] = rec
	}
	sort.SliceStable(chrono, func(i, j int) bool {
		// Zero timestamps keep the reversed listing order.
		return chrono[i].StartTS < chrono[j].StartTS
	})

	// The canonical position of a re-tagged digest is its earliest
	// occurrence; later duplicates are elided.
	seen := make(map[string]bool)
	canonical := chrono[:0]
	for _, rec := range chrono {
		if seen[rec.Digest] {
			continue
		}
		seen[rec.Digest] = true
		canonical = append(canonical, rec)
	}

	oldIdx, newIdx := -1, -1
	for i, rec := range canonical {
		if rec.Digest == u.CurrentDigest {
			oldIdx = i
		}
		if rec.Digest == u.NewDigest {
			newIdx = i
		}
	}
	if oldIdx < 0 {
		return nil, errkind.New(errkind.UpgradeEndpointNotFound,
			"digest %s of %s not found in tag history", u.CurrentDigest, u.DepName)
	}
	if newIdx < 0 {
		return nil, errkind.New(errkind.UpgradeEndpointNotFound,
			"digest %s of %s not found in tag history", u.NewDigest, u.DepName)
	}

	checkTagHint(canonical[oldIdx], u.CurrentValue, u.DepName)
	checkTagHint(canonical[newIdx], u.NewValue, u.DepName)

	if newIdx == oldIdx {
		return nil, nil
	}
	if newIdx < oldIdx {
		logging.Logger().Warnw("new bundle is older than current bundle, not applying migrations",
			"dep", u.DepName, "current", u.CurrentValue, "new", u.NewValue)
		return nil, nil
	}
	return canonical[oldIdx+1 : newIdx+1], nil
}

// checkTagHint warns when the digest-derived tag disagrees with the value
// reported by the bump tool. The digest wins.
func checkTagHint(rec registry.TagRecord, hint, dep string) {
	if hint != "" && rec.Name != hint {
		logging.Logger().Warnw("tag from digest does not match reported value",
			"dep", dep, "tag", rec.Name, "reported", hint)
	}
}

// fetchMigrations inspects the window's bundles with bounded parallelism
// and assembles migrations back in window order.
func (r *Resolver) fetchMigrations(ctx context.Context, refs []bundle.Ref) ([]bundle.Migration, error) {
	results := make([]*bundle.Migration, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(envcfg.RegistryConcurrency())
	for i, ref := range refs {
		g.Go(func() error {
			m, err := r.inspector.FetchMigration(gctx, ref)
			if err != nil {
				return err
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var migrations []bundle.Migration
	for _, m := range results {
		if m != nil {
			migrations = append(migrations, *m)
		}
	}
	return migrations, nil
}

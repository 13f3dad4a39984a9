// Package bundle inspects Konflux task bundles: reference handling,
// migration annotations and the migration script attached as a referrer.
package bundle

import (
	"context"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/registry"
)

const (
	// HasMigrationAnnotation marks a bundle manifest that has a migration
	// attached.
	HasMigrationAnnotation = "dev.konflux-ci.task.has-migration"
	// IsMigrationAnnotation marks the referrer artifact carrying the script.
	IsMigrationAnnotation = "dev.konflux-ci.task.is-migration"
	// MigrationArtifactType is the artifact type of a migration referrer.
	MigrationArtifactType = "text/x-shellscript"
)

// Migration is a shell script attached to a bundle, to be run against each
// affected pipeline file.
type Migration struct {
	Ref    Ref
	Script []byte
	Name   string
}

// Inspector answers migration questions about bundles.
type Inspector struct {
	registry registry.Registry
}

// NewInspector builds an Inspector on top of reg, which is expected to be
// the cached registry so repeated inspections stay off the network.
func NewInspector(reg registry.Registry) *Inspector {
	return &Inspector{registry: reg}
}

// HasMigration reports whether the bundle manifest declares an attached
// migration.
func (i *Inspector) HasMigration(ctx context.Context, ref Ref) (bool, error) {
	reference := ref.Digest
	if reference == "" {
		reference = ref.Tag
	}
	manifest, err := i.registry.Manifest(ctx, ref.Repository, reference)
	if err != nil {
		return false, fmt.Errorf("failed to get manifest of %s: %w", ref, err)
	}
	return manifest.Annotations[HasMigrationAnnotation] == "true", nil
}

// FetchMigration returns the bundle's migration, or nil when the bundle has
// none. A bundle that declares a migration must have exactly one referrer of
// the migration artifact type; anything else is a malformed bundle.
func (i *Inspector) FetchMigration(ctx context.Context, ref Ref) (*Migration, error) {
	has, err := i.HasMigration(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}

	referrers, err := i.registry.Referrers(ctx, ref.Repository, ref.Digest)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrers of %s: %w", ref, err)
	}

	matches := selectMigrationReferrers(referrers)
	if len(matches) != 1 {
		return nil, errkind.New(errkind.MalformedBundle,
			"bundle %s declares a migration but has %d migration referrers", ref, len(matches))
	}

	scriptManifest, err := i.registry.Manifest(ctx, ref.Repository, matches[0].Digest.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get migration manifest of %s: %w", ref, err)
	}
	if len(scriptManifest.Layers) != 1 {
		return nil, errkind.New(errkind.MalformedBundle,
			"migration artifact of %s has %d layers, expected 1", ref, len(scriptManifest.Layers))
	}

	script, err := i.registry.Blob(ctx, ref.Repository, scriptManifest.Layers[0].Digest.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch migration script of %s: %w", ref, err)
	}

	return &Migration{
		Ref:    ref,
		Script: script,
		Name:   fmt.Sprintf("%s-%s.sh", ref.TaskName(), ref.Tag),
	}, nil
}

// selectMigrationReferrers filters referrer descriptors to migration
// artifacts, eliding duplicate digests first-wins in listing order.
func selectMigrationReferrers(referrers []ocispec.Descriptor) []ocispec.Descriptor {
	var matches []ocispec.Descriptor
	seen := make(map[string]bool)
	for _, d := range referrers {
		if d.ArtifactType != MigrationArtifactType {
			continue
		}
		if d.Annotations[IsMigrationAnnotation] != "true" {
			continue
		}
		key := d.Digest.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		matches = append(matches, d)
	}
	return matches
}

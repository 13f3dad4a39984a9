package bundle

import (
	"fmt"
	"strings"

	"github.com/containers/image/v5/docker/reference"
	"github.com/opencontainers/go-digest"
)

// Ref identifies a task bundle. The digest is the identity; the tag is a
// version hint used for discovery and ordering.
type Ref struct {
	Repository string
	Tag        string
	Digest     string
}

// ParseRef parses an image reference of the forms repo, repo:tag,
// repo@digest or repo:tag@digest.
func ParseRef(s string) (Ref, error) {
	ref, err := reference.ParseAnyReference(s)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to parse bundle reference %q: %w", s, err)
	}

	named, ok := ref.(reference.Named)
	if !ok {
		return Ref{}, fmt.Errorf("bundle reference %q has no repository name", s)
	}

	out := Ref{Repository: named.Name()}
	if tagged, ok := named.(reference.Tagged); ok {
		out.Tag = tagged.Tag()
	}
	if digested, ok := named.(reference.Digested); ok {
		out.Digest = digested.Digest().String()
	}
	return out, nil
}

// String renders the reference with whichever of tag and digest are set.
func (r Ref) String() string {
	var b strings.Builder
	b.WriteString(r.Repository)
	if r.Tag != "" {
		b.WriteString(":")
		b.WriteString(r.Tag)
	}
	if r.Digest != "" {
		b.WriteString("@")
		b.WriteString(r.Digest)
	}
	return b.String()
}

// Pinned reports whether the reference carries both tag and digest, the
// form required for executing a migration.
func (r Ref) Pinned() bool {
	return r.Tag != "" && r.Digest != ""
}

// Validate checks the digest is well formed when present.
func (r Ref) Validate() error {
	if r.Repository == "" {
		return fmt.Errorf("bundle reference has empty repository")
	}
	if r.Digest != "" {
		if _, err := digest.Parse(r.Digest); err != nil {
			return fmt.Errorf("bundle reference %s: %w", r.Repository, err)
		}
	}
	return nil
}

// TaskName derives the task name from the repository, stripping the
// conventional task- prefix Konflux task repositories carry.
func (r Ref) TaskName() string {
	name := r.Repository
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimPrefix(name, "task-")
}

// WithDigest returns a copy of the reference pinned to the given digest.
func (r Ref) WithDigest(dgst string) Ref {
	r.Digest = dgst
	return r
}

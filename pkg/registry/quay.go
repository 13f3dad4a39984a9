package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/envcfg"
	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/logging"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

// TagRecord is one entry of a repository's tag history.
type TagRecord struct {
	Name string
	// Digest of the manifest the tag points at.
	Digest string
	// StartTS is the tag's creation time as a unix timestamp. Zero when the
	// registry does not report one.
	StartTS int64
}

// TagLister lists the tag history of a repository, newest first.
type TagLister interface {
	ListTags(ctx context.Context, repository string) ([]TagRecord, error)
}

const quayAPIBase = "https://quay.io/api/v1/repository"

// QuayTagLister lists tags via Quay's public repository API, which reports
// creation timestamps and is paginated newest-first. Non-quay repositories
// (development only) fall back to the OCI distribution tag list.
type QuayTagLister struct {
	httpClient *http.Client
	apiBase    string
	keychain   authn.Keychain
}

// NewQuayTagLister builds a lister using the ambient registry auth for the
// distribution-endpoint fallback.
func NewQuayTagLister() (*QuayTagLister, error) {
	kc, err := ambientKeychain()
	if err != nil {
		return nil, err
	}
	return &QuayTagLister{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    quayAPIBase,
		keychain:   kc,
	}, nil
}

type quayTag struct {
	Name           string `json:"name"`
	ManifestDigest string `json:"manifest_digest"`
	StartTS        int64  `json:"start_ts"`
}

type quayTagPage struct {
	Tags          []quayTag `json:"tags"`
	Page          int       `json:"page"`
	HasAdditional bool      `json:"has_additional"`
}

// ListTags returns the repository's tag history newest first, with tags
// matching the referrers fallback pattern removed.
func (q *QuayTagLister) ListTags(ctx context.Context, repository string) ([]TagRecord, error) {
	host, path, found := strings.Cut(repository, "/")
	if !found {
		return nil, errkind.New(errkind.InvalidInput, "repository %q has no namespace", repository)
	}
	if host != "quay.io" {
		if !envcfg.LocalTest() {
			return nil, errkind.New(errkind.InvalidInput,
				"repository %s is not hosted on quay.io (set %s for development registries)",
				repository, envcfg.LocalTestVar)
		}
		return q.listTagsDistribution(ctx, repository)
	}

	var records []TagRecord
	for page := 1; ; page++ {
		var result quayTagPage
		err := withRetry(ctx, fmt.Sprintf("list tags %s page %d", repository, page), func() error {
			return q.fetchPage(ctx, path, page, &result)
		})
		if err != nil {
			return nil, err
		}
		for _, t := range result.Tags {
			if isReferrersFallbackTag(t.Name) {
				continue
			}
			records = append(records, TagRecord{
				Name:    t.Name,
				Digest:  t.ManifestDigest,
				StartTS: t.StartTS,
			})
		}
		if !result.HasAdditional {
			break
		}
	}
	return records, nil
}

func (q *QuayTagLister) fetchPage(ctx context.Context, repoPath string, page int, out *quayTagPage) error {
	u := fmt.Sprintf("%s/%s/tag/?%s", q.apiBase, repoPath, url.Values{
		"page":           []string{fmt.Sprintf("%d", page)},
		"onlyActiveTags": []string{"true"},
	}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{status: resp.StatusCode, url: u}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// listTagsDistribution synthesizes tag records from the OCI distribution
// tag-listing endpoint. Timestamps are unavailable there, so the listed
// order is treated as oldest-first and reversed; this path exists for
// development registries only.
func (q *QuayTagLister) listTagsDistribution(ctx context.Context, repository string) ([]TagRecord, error) {
	repo, err := name.NewRepository(repository, name.Insecure)
	if err != nil {
		return nil, errkind.Wrap(errkind.InvalidInput, err, "bad repository %q", repository)
	}
	opts := []remote.Option{remote.WithContext(ctx), remote.WithAuthFromKeychain(q.keychain)}

	var tags []string
	err = withRetry(ctx, fmt.Sprintf("list tags %s", repository), func() error {
		tags, err = remote.List(repo, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.Logger().Debugw("tag timestamps unavailable, ordering by listing position",
		"repository", repository)

	var records []TagRecord
	for i := len(tags) - 1; i >= 0; i-- {
		tag := tags[i]
		if isReferrersFallbackTag(tag) {
			continue
		}
		var dgst string
		err := withRetry(ctx, fmt.Sprintf("resolve tag %s:%s", repository, tag), func() error {
			desc, err := remote.Head(repo.Tag(tag), opts...)
			if err != nil {
				return err
			}
			dgst = desc.Digest.String()
			return nil
		})
		if err != nil {
			return nil, err
		}
		records = append(records, TagRecord{Name: tag, Digest: dgst})
	}
	return records, nil
}

// isReferrersFallbackTag matches tags of the sha256-<hex> convention used to
// publish referrer indexes on registries without the referrers endpoint.
func isReferrersFallbackTag(tag string) bool {
	rest, found := strings.CutPrefix(tag, "sha256-")
	if !found {
		return false
	}
	// The bare digest form, optionally with an artifact-type suffix such as
	// sha256-<hex>.sig.
	hex, _, _ := strings.Cut(rest, ".")
	if len(hex) != 64 {
		return false
	}
	for _, c := range hex {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// httpStatusError lets the retry policy distinguish client from server
// failures on the Quay API.
type httpStatusError struct {
	status int
	url    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.status, e.url)
}

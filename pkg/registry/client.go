// Package registry talks to OCI registries: manifests, blobs, referrers and
// tag histories, with retries and a process-scoped request cache.
package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/envcfg"
	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/logging"
	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

// Registry is the manifest/referrer/blob surface the rest of the tool
// consumes. The cache layer and test fakes implement the same interface.
// A reference is either a tag or a sha256 digest.
type Registry interface {
	Manifest(ctx context.Context, repository, reference string) (*ocispec.Manifest, error)
	Referrers(ctx context.Context, repository, dgst string) ([]ocispec.Descriptor, error)
	Blob(ctx context.Context, repository, dgst string) ([]byte, error)
}

const (
	retryInitialInterval = 1 * time.Second
	retryMultiplier      = 2
	retryMaxInterval     = 30 * time.Second
	retryMaxAttempts     = 5
)

// Client implements Registry against a live registry using
// go-containerregistry's remote package.
type Client struct {
	keychain authn.Keychain
	insecure bool
}

// NewClient builds a Client authenticating with the ambient registry auth
// configuration (REGISTRY_AUTH_JSON, falling back to the default keychain).
func NewClient() (*Client, error) {
	kc, err := ambientKeychain()
	if err != nil {
		return nil, err
	}
	return &Client{keychain: kc, insecure: envcfg.LocalTest()}, nil
}

func ambientKeychain() (authn.Keychain, error) {
	path := envcfg.RegistryAuthFile()
	if path == "" {
		return authn.DefaultKeychain, nil
	}
	kc, err := keychainFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry auth from %s: %w", path, err)
	}
	return kc, nil
}

// fileKeychain resolves credentials from a dockerconfigjson file.
type fileKeychain struct {
	auths map[string]dockerAuthEntry
}

type dockerAuthEntry struct {
	Auth     string `json:"auth"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func keychainFromFile(path string) (authn.Keychain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg struct {
		Auths map[string]dockerAuthEntry `json:"auths"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("not a dockerconfigjson file: %w", err)
	}
	return &fileKeychain{auths: cfg.Auths}, nil
}

func (kc *fileKeychain) Resolve(res authn.Resource) (authn.Authenticator, error) {
	for _, key := range []string{res.String(), res.RegistryStr()} {
		entry, ok := kc.auths[key]
		if !ok {
			continue
		}
		username, password := entry.Username, entry.Password
		if entry.Auth != "" {
			decoded, err := base64.StdEncoding.DecodeString(entry.Auth)
			if err != nil {
				return nil, fmt.Errorf("bad auth entry for %s: %w", key, err)
			}
			user, pass, found := strings.Cut(string(decoded), ":")
			if !found {
				return nil, fmt.Errorf("bad auth entry for %s: missing separator", key)
			}
			username, password = user, pass
		}
		return authn.FromConfig(authn.AuthConfig{Username: username, Password: password}), nil
	}
	return authn.Anonymous, nil
}

func (c *Client) options(ctx context.Context) []remote.Option {
	return []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(c.keychain),
	}
}

func (c *Client) repository(repo string) (name.Repository, error) {
	var opts []name.Option
	if c.insecure {
		opts = append(opts, name.Insecure)
	}
	r, err := name.NewRepository(repo, opts...)
	if err != nil {
		return name.Repository{}, errkind.Wrap(errkind.InvalidInput, err, "bad repository %q", repo)
	}
	if !c.insecure && r.RegistryStr() != "quay.io" {
		return name.Repository{}, errkind.New(errkind.InvalidInput,
			"repository %s is not hosted on quay.io (set %s for development registries)",
			repo, envcfg.LocalTestVar)
	}
	return r, nil
}

// Manifest fetches the OCI manifest for repository at reference, a tag or a
// sha256 digest.
func (c *Client) Manifest(ctx context.Context, repository, reference string) (*ocispec.Manifest, error) {
	repo, err := c.repository(repository)
	if err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, errkind.New(errkind.InvalidInput, "reference for %s is empty", repository)
	}
	var target name.Reference
	if strings.HasPrefix(reference, "sha256:") {
		target = repo.Digest(reference)
	} else {
		target = repo.Tag(reference)
	}

	var manifest ocispec.Manifest
	err = c.retry(ctx, fmt.Sprintf("get manifest %s", target), func() error {
		desc, err := remote.Get(target, c.options(ctx)...)
		if err != nil {
			return err
		}
		return json.Unmarshal(desc.Manifest, &manifest)
	})
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

// Referrers lists the referrers of repository@dgst. go-containerregistry
// already falls back to the sha256-<hex> tag scheme when the registry does
// not implement the referrers endpoint; an empty result from the endpoint is
// re-checked against the fallback tag as well.
func (c *Client) Referrers(ctx context.Context, repository, dgst string) ([]ocispec.Descriptor, error) {
	repo, err := c.repository(repository)
	if err != nil {
		return nil, err
	}
	target := repo.Digest(dgst)

	var index *v1.IndexManifest
	err = c.retry(ctx, fmt.Sprintf("list referrers %s", target), func() error {
		idx, err := remote.Referrers(target, c.options(ctx)...)
		if err != nil {
			return err
		}
		index, err = idx.IndexManifest()
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(index.Manifests) == 0 {
		if fallback, err := c.referrersFromFallbackTag(ctx, repo, dgst); err == nil {
			return fallback, nil
		}
	}

	out := make([]ocispec.Descriptor, 0, len(index.Manifests))
	for _, m := range index.Manifests {
		out = append(out, convertDescriptor(m))
	}
	return out, nil
}

// referrersFromFallbackTag reads the referrers index published under the
// sha256-<hex> tag convention.
func (c *Client) referrersFromFallbackTag(ctx context.Context, repo name.Repository, dgst string) ([]ocispec.Descriptor, error) {
	tag := strings.Replace(dgst, ":", "-", 1)
	desc, err := remote.Get(repo.Tag(tag), c.options(ctx)...)
	if err != nil {
		return nil, err
	}
	var index ocispec.Index
	if err := json.Unmarshal(desc.Manifest, &index); err != nil {
		return nil, err
	}
	return index.Manifests, nil
}

// Blob fetches a blob by digest.
func (c *Client) Blob(ctx context.Context, repository, dgst string) ([]byte, error) {
	repo, err := c.repository(repository)
	if err != nil {
		return nil, err
	}
	target := repo.Digest(dgst)

	var data []byte
	err = c.retry(ctx, fmt.Sprintf("fetch blob %s", target), func() error {
		layer, err := remote.Layer(target, c.options(ctx)...)
		if err != nil {
			return err
		}
		rc, err := layer.Compressed()
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err = io.ReadAll(rc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) retry(ctx context.Context, what string, op func() error) error {
	return withRetry(ctx, what, op)
}

// withRetry runs op under the capped exponential backoff policy. 401/403/404
// are permanent; everything transient (5xx, 429, connection errors) retries
// up to retryMaxAttempts within the context deadline.
func withRetry(ctx context.Context, what string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.Multiplier = retryMultiplier
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if permanentRegistryError(err) {
			return backoff.Permanent(err)
		}
		logging.Logger().Warnw("retrying registry operation",
			"op", what, "attempt", attempt, "error", err)
		return err
	}

	err := backoff.Retry(wrapped,
		backoff.WithMaxRetries(backoff.WithContext(b, ctx), retryMaxAttempts-1))
	if err == nil {
		return nil
	}
	if permanentRegistryError(err) {
		return err
	}
	return errkind.Wrap(errkind.RegistryUnavailable, err, "%s failed after %d attempts", what, attempt)
}

// permanentRegistryError reports whether err must not be retried.
func permanentRegistryError(err error) bool {
	var te *transport.Error
	if errors.As(err, &te) {
		return permanentStatus(te.StatusCode)
	}
	var se *httpStatusError
	if errors.As(err, &se) {
		return permanentStatus(se.status)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return false
	}
	// JSON decoding failures and similar are not transient.
	return !errors.Is(err, io.ErrUnexpectedEOF)
}

func permanentStatus(code int) bool {
	switch code {
	case 401, 403, 404:
		return true
	case 429:
		return false
	}
	return code < 500
}

func convertDescriptor(d v1.Descriptor) ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType:    string(d.MediaType),
		ArtifactType: d.ArtifactType,
		Digest:       digest.Digest(d.Digest.String()),
		Size:         d.Size,
		Annotations:  d.Annotations,
	}
}

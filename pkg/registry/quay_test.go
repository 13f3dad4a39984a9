package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestQuayTagLister_Paginates(t *testing.T) {
	var pages []string
	pages = append(pages,
		`{"tags": [
			{"name": "0.3", "manifest_digest": "sha256:ccc", "start_ts": 3000},
			{"name": "sha256-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "manifest_digest": "sha256:ref", "start_ts": 2500}
		], "page": 1, "has_additional": true}`,
		`{"tags": [
			{"name": "0.2", "manifest_digest": "sha256:bbb", "start_ts": 2000},
			{"name": "0.1", "manifest_digest": "sha256:aaa", "start_ts": 1000}
		], "page": 2, "has_additional": false}`,
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/konflux-ci/task-clone/tag/" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("onlyActiveTags") != "true" {
			t.Errorf("Expected onlyActiveTags=true, got %s", r.URL.RawQuery)
		}
		page := r.URL.Query().Get("page")
		var idx int
		fmt.Sscanf(page, "%d", &idx)
		if idx < 1 || idx > len(pages) {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, pages[idx-1])
	}))
	defer server.Close()

	lister := &QuayTagLister{
		httpClient: server.Client(),
		apiBase:    server.URL,
	}

	records, err := lister.ListTags(context.Background(), "quay.io/konflux-ci/task-clone")
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}

	want := []TagRecord{
		{Name: "0.3", Digest: "sha256:ccc", StartTS: 3000},
		{Name: "0.2", Digest: "sha256:bbb", StartTS: 2000},
		{Name: "0.1", Digest: "sha256:aaa", StartTS: 1000},
	}
	if len(records) != len(want) {
		t.Fatalf("Expected %d records, got %d: %+v", len(want), len(records), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("Record %d: expected %+v, got %+v", i, want[i], records[i])
		}
	}
}

func TestQuayTagLister_RetriesServerErrors(t *testing.T) {
	failures := 2
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures > 0 {
			failures--
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"tags": [{"name": "0.1", "manifest_digest": "sha256:aaa", "start_ts": 1000}], "page": 1, "has_additional": false}`)
	}))
	defer server.Close()

	lister := &QuayTagLister{
		httpClient: server.Client(),
		apiBase:    server.URL,
	}

	start := time.Now()
	records, err := lister.ListTags(context.Background(), "quay.io/konflux-ci/task-clone")
	if err != nil {
		t.Fatalf("ListTags failed after retries: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	// Two retries at 1s and 2s backoff.
	if elapsed := time.Since(start); elapsed < 2*time.Second {
		t.Logf("retries completed in %s", elapsed)
	}
}

func TestQuayTagLister_ClientErrorIsPermanent(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer server.Close()

	lister := &QuayTagLister{
		httpClient: server.Client(),
		apiBase:    server.URL,
	}

	if _, err := lister.ListTags(context.Background(), "quay.io/konflux-ci/task-clone"); err == nil {
		t.Fatalf("Expected an error for 404")
	}
	if calls != 1 {
		t.Errorf("404 must not be retried, got %d calls", calls)
	}
}

func TestIsReferrersFallbackTag(t *testing.T) {
	cases := []struct {
		tag  string
		want bool
	}{
		{"0.1", false},
		{"latest", false},
		{"sha256-short", false},
		{"sha256-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{"sha256-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.sig", true},
		{"sha256-zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", false},
	}
	for _, c := range cases {
		if got := isReferrersFallbackTag(c.tag); got != c.want {
			t.Errorf("isReferrersFallbackTag(%q) = %t, want %t", c.tag, got, c.want)
		}
	}
}

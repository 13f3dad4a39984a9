package bundle

import "testing"

func TestParseRef(t *testing.T) {
	cases := []struct {
		in   string
		want Ref
	}{
		{
			in:   "quay.io/konflux-ci/task-clone:0.2",
			want: Ref{Repository: "quay.io/konflux-ci/task-clone", Tag: "0.2"},
		},
		{
			in: "quay.io/konflux-ci/task-clone@sha256:0f48501871803b6b032e06368ff3b2054608a921c4b097952b53ded929bb7fbc",
			want: Ref{
				Repository: "quay.io/konflux-ci/task-clone",
				Digest:     "sha256:0f48501871803b6b032e06368ff3b2054608a921c4b097952b53ded929bb7fbc",
			},
		},
		{
			in: "quay.io/konflux-ci/task-clone:0.2@sha256:0f48501871803b6b032e06368ff3b2054608a921c4b097952b53ded929bb7fbc",
			want: Ref{
				Repository: "quay.io/konflux-ci/task-clone",
				Tag:        "0.2",
				Digest:     "sha256:0f48501871803b6b032e06368ff3b2054608a921c4b097952b53ded929bb7fbc",
			},
		},
	}
	for _, c := range cases {
		got, err := ParseRef(c.in)
		if err != nil {
			t.Fatalf("ParseRef(%q) failed: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseRef(%q) = %+v, want %+v", c.in, got, c.want)
		}
		if got.String() != c.in {
			t.Errorf("String() = %q, want %q", got.String(), c.in)
		}
	}
}

func TestParseRef_Invalid(t *testing.T) {
	for _, in := range []string{"", "UPPERCASE/repo:tag", "quay.io/ns/name@sha256:short"} {
		if _, err := ParseRef(in); err == nil {
			t.Errorf("ParseRef(%q) should fail", in)
		}
	}
}

func TestRef_Pinned(t *testing.T) {
	pinned := Ref{Repository: "quay.io/ns/task-a", Tag: "0.1", Digest: "sha256:aaa"}
	if !pinned.Pinned() {
		t.Errorf("Expected pinned")
	}
	for _, r := range []Ref{
		{Repository: "quay.io/ns/task-a", Tag: "0.1"},
		{Repository: "quay.io/ns/task-a", Digest: "sha256:aaa"},
	} {
		if r.Pinned() {
			t.Errorf("%+v must not be pinned", r)
		}
	}
}

func TestRef_TaskName(t *testing.T) {
	cases := map[string]string{
		"quay.io/konflux-ci/task-clone": "clone",
		"quay.io/konflux-ci/summary":    "summary",
		"localhost:5000/ns/task-init":   "init",
	}
	for repo, want := range cases {
		r := Ref{Repository: repo}
		if got := r.TaskName(); got != want {
			t.Errorf("TaskName(%s) = %q, want %q", repo, got, want)
		}
	}
}

package yamlpatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytes_RoundTrip(t *testing.T) {
	for name, src := range map[string]string{
		"pipeline":      pipelineSrc,
		"flow pipeline": flowPipelineSrc,
		"no final newline": `apiVersion: tekton.dev/v1
kind: Pipeline
metadata:
  name: x`,
		"comments and blanks": `# leading comment
apiVersion: tekton.dev/v1

kind: Pipeline # trailing

metadata:
  name: x
`,
	} {
		t.Run(name, func(t *testing.T) {
			d, err := Load([]byte(src))
			require.NoError(t, err)
			assert.Equal(t, src, string(d.Bytes()))
		})
	}
}

func TestLoad_EmptyDocument(t *testing.T) {
	_, err := Load([]byte(""))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load([]byte("a: [unclosed"))
	assert.Error(t, err)
}

func TestAddParam_IndentlessSequenceStyle(t *testing.T) {
	// Some pipelines put sequence dashes at the key's own indent; edits
	// must follow the file's style, not the tool's preference.
	src := `apiVersion: tekton.dev/v1
kind: Pipeline
metadata:
  name: zero
spec:
  tasks:
  - name: init
    params:
    - name: skip-checks
      value: "false"
`
	got, err := AddParam([]byte(src), "init", "deprecated", "true", false)
	require.NoError(t, err)

	want := `apiVersion: tekton.dev/v1
kind: Pipeline
metadata:
  name: zero
spec:
  tasks:
  - name: init
    params:
    - name: skip-checks
      value: "false"
    - name: deprecated
      value: "true"
`
	assert.Equal(t, want, string(got))
}

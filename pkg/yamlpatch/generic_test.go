package yamlpatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konflux-ci-forks/pipeline-migration-tool/pkg/errkind"
)

func TestInsert_MappingKey(t *testing.T) {
	value, err := ParseValue("app: demo")
	require.NoError(t, err)

	got, err := Insert([]byte(pipelineSrc), KeyPath("metadata", "labels"), value)
	require.NoError(t, err)

	want := strings.Replace(pipelineSrc,
		`  name: build # main build pipeline
`,
		`  name: build # main build pipeline
  labels:
    app: demo
`, 1)
	assert.Equal(t, want, string(got))
}

func TestInsert_ExistingKeyConflicts(t *testing.T) {
	value, err := ParseValue("other")
	require.NoError(t, err)

	_, err = Insert([]byte(pipelineSrc), KeyPath("metadata", "name"), value)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.YAMLSurgeryConflict))
}

func TestInsert_SequenceBeforeIndex(t *testing.T) {
	value, err := ParseValue("name: extra\nvalue: x")
	require.NoError(t, err)

	path := []Step{KeyStep("spec"), KeyStep("tasks"), IndexStep(0),
		KeyStep("taskRef"), KeyStep("params"), IndexStep(1)}
	got, err := Insert([]byte(pipelineSrc), path, value)
	require.NoError(t, err)

	want := strings.Replace(pipelineSrc,
		`          - name: name
            value: init
`,
		`          - name: extra
            value: x
          - name: name
            value: init
`, 1)
	assert.Equal(t, want, string(got))
}

func TestInsert_SequenceIndexBeyondEndAppends(t *testing.T) {
	value, err := ParseValue("name: extra\nvalue: x")
	require.NoError(t, err)

	path := []Step{KeyStep("spec"), KeyStep("tasks"), IndexStep(0),
		KeyStep("taskRef"), KeyStep("params"), IndexStep(99)}
	got, err := Insert([]byte(pipelineSrc), path, value)
	require.NoError(t, err)

	want := strings.Replace(pipelineSrc,
		`          - name: kind
            value: task
      params:
        - name: skip-checks
`,
		`          - name: kind
            value: task
          - name: extra
            value: x
      params:
        - name: skip-checks
`, 1)
	assert.Equal(t, want, string(got))
}

func TestReplace_ScalarKeepsTrailingComment(t *testing.T) {
	value, err := ParseValue("release")
	require.NoError(t, err)

	got, err := Replace([]byte(pipelineSrc), KeyPath("metadata", "name"), value)
	require.NoError(t, err)

	want := strings.Replace(pipelineSrc,
		`  name: build # main build pipeline`,
		`  name: release # main build pipeline`, 1)
	assert.Equal(t, want, string(got))
}

func TestReplace_MissingPath(t *testing.T) {
	value, err := ParseValue("x")
	require.NoError(t, err)

	_, err = Replace([]byte(pipelineSrc), KeyPath("metadata", "missing"), value)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.YAMLSurgeryConflict))
}

func TestReplace_IndexOutOfRange(t *testing.T) {
	value, err := ParseValue("x")
	require.NoError(t, err)

	path := []Step{KeyStep("spec"), KeyStep("tasks"), IndexStep(9)}
	_, err = Replace([]byte(pipelineSrc), path, value)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.YAMLSurgeryConflict))
}

func TestReplace_InsideFlowRewritesBlock(t *testing.T) {
	value, err := ParseValue("maybe")
	require.NoError(t, err)

	path := []Step{KeyStep("spec"), KeyStep("tasks"), IndexStep(0),
		KeyStep("params"), IndexStep(0), KeyStep("value")}
	got, err := Replace([]byte(flowPipelineSrc), path, value)
	require.NoError(t, err)

	want := strings.Replace(flowPipelineSrc,
		`      params: [{name: skip, value: "no"}]
`,
		`      params:
        - name: skip
          value: maybe
`, 1)
	assert.Equal(t, want, string(got))
}

func TestRemove_MappingEntry(t *testing.T) {
	path := []Step{KeyStep("spec"), KeyStep("tasks"), IndexStep(0), KeyStep("params")}
	got, err := Remove([]byte(pipelineSrc), path)
	require.NoError(t, err)

	want := strings.Replace(pipelineSrc,
		`      params:
        - name: skip-checks
          value: "false"
`, "", 1)
	assert.Equal(t, want, string(got))
}

func TestRemove_SequenceItem(t *testing.T) {
	path := []Step{KeyStep("spec"), KeyStep("tasks"), IndexStep(0),
		KeyStep("taskRef"), KeyStep("params"), IndexStep(2)}
	got, err := Remove([]byte(pipelineSrc), path)
	require.NoError(t, err)

	want := strings.Replace(pipelineSrc,
		`          - name: kind
            value: task
      params:
`,
		`      params:
`, 1)
	assert.Equal(t, want, string(got))
}

func TestRemove_MissingPath(t *testing.T) {
	_, err := Remove([]byte(pipelineSrc), KeyPath("spec", "missing"))
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.YAMLSurgeryConflict))
}

func TestParsePath(t *testing.T) {
	steps, err := ParsePath(`["spec", "tasks", 0, "name"]`)
	require.NoError(t, err)
	assert.Equal(t, []Step{KeyStep("spec"), KeyStep("tasks"), IndexStep(0), KeyStep("name")}, steps)

	for _, bad := range []string{``, `{}`, `[]`, `[true]`, `[-1]`, `[1.5]`} {
		_, err := ParsePath(bad)
		assert.Error(t, err, "ParsePath(%q)", bad)
	}
}

// Package pipeline discovers and classifies Tekton pipeline files.
package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	kyaml "k8s.io/apimachinery/pkg/runtime/serializer/yaml"

	"github.com/konflux-ci-forks/pipeline-migration-tool/internal/logging"
)

// DefaultRoot is where pipeline definitions conventionally live.
const DefaultRoot = ".tekton"

// Kind classifies a discovered YAML file.
type Kind int

const (
	// KindOther is a YAML file that is not a Tekton pipeline resource.
	KindOther Kind = iota
	// KindPipeline has tasks under spec.tasks.
	KindPipeline
	// KindPipelineRunInline has tasks under spec.pipelineSpec.tasks.
	KindPipelineRunInline
	// KindPipelineRunRef references its pipeline and carries no editable
	// task list.
	KindPipelineRunRef
)

// File is a discovered pipeline file.
type File struct {
	Path string
	Kind Kind
}

// TasksPath returns the YAML path to the file's task list, nil when the
// file has none.
func (f File) TasksPath() []string {
	switch f.Kind {
	case KindPipeline:
		return []string{"spec", "tasks"}
	case KindPipelineRunInline:
		return []string{"spec", "pipelineSpec", "tasks"}
	default:
		return nil
	}
}

// Discover enumerates pipeline files under root, or classifies the explicit
// file list when one is given. Unreadable or unparseable files are logged
// and skipped; non-pipeline YAML is skipped silently.
func Discover(root string, explicit []string) ([]File, error) {
	paths := explicit
	if len(paths) == 0 {
		found, err := findYAMLFiles(root)
		if err != nil {
			return nil, err
		}
		paths = found
	}

	var files []File
	for _, path := range paths {
		f, ok := classifyFile(path)
		if !ok {
			continue
		}
		switch f.Kind {
		case KindOther:
			// Not a pipeline resource.
		case KindPipelineRunRef:
			logging.Logger().Warnw("PipelineRun references its pipeline, skipping",
				"file", path)
		default:
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func findYAMLFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return paths, nil
}

// classifyFile parses the first non-empty YAML document of path and decides
// its kind. The bool result is false when the file had to be skipped.
func classifyFile(path string) (File, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		logging.Logger().Warnw("cannot read pipeline file, skipping", "file", path, "error", err)
		return File{}, false
	}

	doc, err := FirstDocument(content)
	if err != nil {
		logging.Logger().Warnw("cannot parse pipeline file, skipping", "file", path, "error", err)
		return File{}, false
	}
	if doc == nil {
		return File{Path: path, Kind: KindOther}, true
	}

	obj := &unstructured.Unstructured{}
	dec := kyaml.NewDecodingSerializer(unstructured.UnstructuredJSONScheme)
	if _, _, err := dec.Decode(doc, nil, obj); err != nil {
		logging.Logger().Warnw("cannot decode pipeline file, skipping", "file", path, "error", err)
		return File{}, false
	}

	return File{Path: path, Kind: classify(obj)}, true
}

func classify(obj *unstructured.Unstructured) Kind {
	if !strings.HasPrefix(obj.GetAPIVersion(), "tekton.dev/") {
		return KindOther
	}
	switch obj.GetKind() {
	case "Pipeline":
		return KindPipeline
	case "PipelineRun":
		if _, found, _ := unstructured.NestedMap(obj.Object, "spec", "pipelineSpec"); found {
			return KindPipelineRunInline
		}
		if _, found, _ := unstructured.NestedFieldNoCopy(obj.Object, "spec", "pipelineRef"); found {
			return KindPipelineRunRef
		}
		return KindPipelineRunRef
	default:
		return KindOther
	}
}

// FirstDocument extracts the raw bytes of the first non-empty document of a
// possibly multi-document YAML stream. Returns nil when every document is
// empty.
func FirstDocument(content []byte) ([]byte, error) {
	docs := splitDocuments(content)
	for _, doc := range docs {
		var probe interface{}
		if err := yaml.Unmarshal(doc, &probe); err != nil {
			return nil, err
		}
		if probe != nil {
			return doc, nil
		}
	}
	return nil, nil
}

func splitDocuments(content []byte) [][]byte {
	lines := strings.Split(string(content), "\n")
	var docs [][]byte
	var current []string
	flush := func() {
		if len(current) > 0 {
			docs = append(docs, []byte(strings.Join(current, "\n")))
			current = nil
		}
	}
	for _, line := range lines {
		if strings.TrimRight(line, " \t") == "---" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	if len(docs) == 0 {
		docs = append(docs, content)
	}
	return docs
}

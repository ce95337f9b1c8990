// Package rewrite transforms a workflow specification that passes files
// between steps through artifacts into an equivalent specification that
// passes them through a single shared mounted volume, addressed by
// per-step subpath parameters.
package rewrite

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/me/volpass/pkg/argo"
)

const (
	// SharedVolumeName is the fixed name of the volume added to the
	// workflow and referenced by every generated mount entry. It must not
	// collide with a volume the workflow already declares.
	SharedVolumeName = "data-storage"

	// SubpathSuffix is appended to an artifact name to form the name of
	// the parameter carrying its on-volume path fragment.
	SubpathSuffix = "-subpath"

	// DefaultPathPrefix is the root under which per-execution output
	// directories are generated on the shared volume.
	DefaultPathPrefix = "artifact_data/"
)

// Options tunes the rewrite.
type Options struct {
	// PathPrefix overrides DefaultPathPrefix when non-empty.
	PathPrefix string
}

// Rewriter rewrites artifact passing to volume passing. It is stateless
// across invocations and safe to use concurrently: every call works on its
// own deep copy of the input.
type Rewriter struct {
	logger *slog.Logger
	opts   Options
}

// New creates a Rewriter with the given logger.
func New(logger *slog.Logger, opts Options) *Rewriter {
	if opts.PathPrefix == "" {
		opts.PathPrefix = DefaultPathPrefix
	}
	return &Rewriter{
		logger: logger.With("component", "rewriter"),
		opts:   opts,
	}
}

// Rewrite returns a copy of workflow in which every artifact exchange goes
// through the shared volume described by the volume descriptor. The
// descriptor's name is overwritten to SharedVolumeName before it is added
// to the workflow's volume declarations. The caller's workflow and volume
// values are never mutated.
//
// Fatal conditions (constant artifact arguments, subpath parameter name
// collisions, structurally malformed templates) abort the rewrite with no
// partial result.
func (r *Rewriter) Rewrite(workflow argo.Document, volume map[string]any) (argo.Document, error) {
	wf := workflow.Clone()

	vol := argo.CopyTree(volume).(map[string]any)
	vol["name"] = SharedVolumeName
	if err := wf.AppendVolume(vol); err != nil {
		return nil, err
	}

	// Per-execution directory on the shared volume. Workflow and pod
	// identity stay symbolic; the execution engine resolves them.
	execDataDir := r.opts.PathPrefix + "{{workflow.uid}}_{{pod.name}}/"

	// Every artifact is expected to resolve to the same file basename on
	// disk, because downstream consumers address files by convention. The
	// accumulator feeds the divergence check after both passes.
	basenames := make(map[string]bool)

	for _, tmpl := range wf.Templates() {
		if tmpl.Kind() != argo.KindContainer {
			continue
		}
		if err := r.rewriteContainerTemplate(tmpl, execDataDir, basenames); err != nil {
			return nil, err
		}
	}

	for _, tmpl := range wf.Templates() {
		switch tmpl.Kind() {
		case argo.KindDAG, argo.KindSteps:
			if err := r.rewriteGraphTemplate(tmpl); err != nil {
				return nil, err
			}
		}
	}

	if len(basenames) > 1 {
		names := make([]string, 0, len(basenames))
		for name := range basenames {
			names = append(names, name)
		}
		sort.Strings(names)
		r.logger.Warn("detected different artifact file names; the workflow can fail at runtime, use the same file name (e.g. \"data\") for all artifacts",
			"file_names", strings.Join(names, ", "))
	}

	if len(wf.ArgumentArtifacts()) > 0 {
		return nil, &UnsupportedConstructError{Scope: "workflow"}
	}

	return wf, nil
}

// rewriteContainerTemplate replaces a container template's artifact
// declarations with volume mounts plus subpath parameters.
func (r *Rewriter) rewriteContainerTemplate(tmpl argo.Template, execDataDir string, basenames map[string]bool) error {
	for _, art := range tmpl.InputArtifacts() {
		name, dir, err := artifactNameAndDir(tmpl, "input", art, basenames)
		if err != nil {
			return err
		}
		subpathParam := name + SubpathSuffix
		if tmpl.HasInputParameter(subpathParam) {
			return &ParameterCollisionError{Template: tmpl.Name(), Parameter: subpathParam}
		}
		tmpl.AddVolumeMount(map[string]any{
			"mountPath": dir,
			"name":      SharedVolumeName,
			"subPath":   "{{inputs.parameters." + subpathParam + "}}",
			"readOnly":  true,
		})
		// No value: the subpath is supplied by whoever invokes the template.
		tmpl.AddInputParameter(map[string]any{"name": subpathParam})
	}
	tmpl.RemoveInputArtifacts()

	for _, art := range tmpl.OutputArtifacts() {
		name, dir, err := artifactNameAndDir(tmpl, "output", art, basenames)
		if err != nil {
			return err
		}
		subpathParam := name + SubpathSuffix
		if tmpl.HasOutputParameter(subpathParam) {
			return &ParameterCollisionError{Template: tmpl.Name(), Parameter: subpathParam}
		}
		outputSubpath := execDataDir + name
		tmpl.AddVolumeMount(map[string]any{
			"mountPath": dir,
			"name":      SharedVolumeName,
			"subPath":   outputSubpath,
		})
		tmpl.AddOutputParameter(map[string]any{
			"name":  subpathParam,
			"value": outputSubpath,
		})
	}
	tmpl.RemoveOutputArtifacts()

	return nil
}

// rewriteGraphTemplate threads subpath parameters through a DAG or steps
// template and translates task artifact arguments. Mounts exist only at
// container granularity, so this level only re-exposes parameters.
func (r *Rewriter) rewriteGraphTemplate(tmpl argo.Template) error {
	for _, art := range tmpl.InputArtifacts() {
		name := art.Name()
		if name == "" {
			return fmt.Errorf("template %q: input artifact missing name", tmpl.Name())
		}
		subpathParam := name + SubpathSuffix
		if tmpl.HasInputParameter(subpathParam) {
			return &ParameterCollisionError{Template: tmpl.Name(), Parameter: subpathParam}
		}
		tmpl.AddInputParameter(map[string]any{"name": subpathParam})
	}
	tmpl.RemoveInputArtifacts()

	for _, art := range tmpl.OutputArtifacts() {
		name := art.Name()
		if name == "" {
			return fmt.Errorf("template %q: output artifact missing name", tmpl.Name())
		}
		from := art.From()
		if from == "" {
			return fmt.Errorf("template %q: output artifact %q missing from reference", tmpl.Name(), name)
		}
		subpathParam := name + SubpathSuffix
		if tmpl.HasOutputParameter(subpathParam) {
			return &ParameterCollisionError{Template: tmpl.Name(), Parameter: subpathParam}
		}
		tmpl.AddOutputParameter(map[string]any{
			"name": subpathParam,
			"valueFrom": map[string]any{
				"parameter": argo.TranslateArtifactReference(from, SubpathSuffix),
			},
		})
	}
	tmpl.RemoveOutputArtifacts()

	for _, task := range tmpl.Tasks() {
		for _, art := range task.ArgumentArtifacts() {
			name := art.Name()
			if name == "" {
				return fmt.Errorf("template %q task %q: argument artifact missing name", tmpl.Name(), task.Name())
			}
			if !art.HasFrom() {
				return &UnsupportedConstructError{
					Scope:    "task",
					Template: tmpl.Name(),
					Task:     task.Name(),
					Artifact: name,
				}
			}
			from := art.From()
			if from == "" {
				return fmt.Errorf("template %q task %q: argument artifact %q has a non-string from reference",
					tmpl.Name(), task.Name(), name)
			}
			subpathParam := name + SubpathSuffix
			if task.HasArgumentParameter(subpathParam) {
				return &ParameterCollisionError{Template: tmpl.Name(), Task: task.Name(), Parameter: subpathParam}
			}
			task.AddArgumentParameter(map[string]any{
				"name":  subpathParam,
				"value": argo.TranslateArtifactReference(from, SubpathSuffix),
			})
		}
		task.RemoveArgumentArtifacts()
	}

	// Any other artifact references inside a DAG/steps template would be
	// malformed input; only parameter references remain at this point.

	return nil
}

// VolumeTree reduces a volume descriptor to the structured-tree form
// Rewrite accepts. Already-structured trees are deep-copied; typed volume
// objects (structs with JSON tags) are reduced through their JSON
// serialization.
func VolumeTree(volume any) (map[string]any, error) {
	if m, ok := volume.(map[string]any); ok {
		return argo.CopyTree(m).(map[string]any), nil
	}
	data, err := json.Marshal(volume)
	if err != nil {
		return nil, fmt.Errorf("serialize volume descriptor: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("volume descriptor is not a mapping: %w", err)
	}
	return tree, nil
}

// artifactNameAndDir validates a container-template artifact entry and
// records its file basename in the accumulator.
func artifactNameAndDir(tmpl argo.Template, kind string, art argo.Artifact, basenames map[string]bool) (name, dir string, err error) {
	name = art.Name()
	if name == "" {
		return "", "", fmt.Errorf("template %q: %s artifact missing name", tmpl.Name(), kind)
	}
	p := art.Path()
	if p == "" {
		return "", "", fmt.Errorf("template %q: %s artifact %q missing path", tmpl.Name(), kind, name)
	}
	basenames[path.Base(p)] = true
	return name, path.Dir(p), nil
}

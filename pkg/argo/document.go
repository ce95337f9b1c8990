package argo

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document represents a raw workflow specification (or any fragment of one,
// such as a volume descriptor). Fields the rewrite does not understand pass
// through untouched.
type Document map[string]any

// Load parses a YAML workflow specification into a Document.
func Load(data []byte) (Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	return Document(raw), nil
}

// Dump serializes the document back to YAML.
func (d Document) Dump() ([]byte, error) {
	return yaml.Marshal(map[string]any(d))
}

// Clone deep-copies the document.
func (d Document) Clone() Document {
	return Document(CopyTree(map[string]any(d)).(map[string]any))
}

// Name returns metadata.name, if present.
func (d Document) Name() string {
	return stringAt(mapAt(d, "metadata"), "name")
}

// Spec returns the spec mapping, or nil if absent.
func (d Document) Spec() map[string]any {
	return mapAt(d, "spec")
}

// Templates returns all template nodes under spec.templates.
func (d Document) Templates() []Template {
	var templates []Template
	for _, m := range mapEntries(sliceAt(d.Spec(), "templates")) {
		templates = append(templates, Template{raw: m})
	}
	return templates
}

// AppendVolume adds a volume declaration under spec.volumes, creating the
// list if the workflow declared none.
func (d Document) AppendVolume(volume map[string]any) error {
	spec := d.Spec()
	if spec == nil {
		return fmt.Errorf("workflow has no spec")
	}
	appendAt(spec, "volumes", volume)
	return nil
}

// Volumes returns the volume declarations under spec.volumes.
func (d Document) Volumes() []map[string]any {
	return mapEntries(sliceAt(d.Spec(), "volumes"))
}

// ArgumentArtifacts returns the workflow-level constant artifact arguments
// under spec.arguments.artifacts.
func (d Document) ArgumentArtifacts() []Artifact {
	return artifactEntries(sliceAt(mapAt(d.Spec(), "arguments"), "artifacts"))
}

package argo

// Artifact wraps an artifact entry from a template's inputs or outputs, or
// from a task's arguments.
type Artifact struct {
	raw map[string]any
}

// Name returns the artifact's name field.
func (a Artifact) Name() string {
	return stringAt(a.raw, "name")
}

// Path returns the mount path the artifact is staged at.
func (a Artifact) Path() string {
	return stringAt(a.raw, "path")
}

// From returns the templated reference the artifact is passed from, or ""
// if the entry has no from field or it is not a string.
func (a Artifact) From() string {
	return stringAt(a.raw, "from")
}

// HasFrom reports whether the artifact carries a from field at all. An
// artifact argument without one is a constant value, which volume-based
// passing cannot express.
func (a Artifact) HasFrom() bool {
	_, ok := a.raw["from"]
	return ok
}

func artifactEntries(entries []any) []Artifact {
	var result []Artifact
	for _, m := range mapEntries(entries) {
		result = append(result, Artifact{raw: m})
	}
	return result
}

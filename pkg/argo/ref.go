package argo

import "regexp"

// artifactRefPattern matches a templated artifact reference such as
// {{tasks.producer.outputs.artifacts.data}}. The prefix before .artifacts.
// varies (inputs, workflow, tasks.<id>.outputs, steps.<id>.outputs); only
// the .artifacts.<name> tail is rewritten.
var artifactRefPattern = regexp.MustCompile(`\{\{([^}]+)\.artifacts\.([^}]+)\}\}`)

// TranslateArtifactReference rewrites every artifact reference in ref to the
// equivalent parameter reference carrying the artifact's subpath: the
// .artifacts.<name> segment becomes .parameters.<name><suffix>. Text that is
// not a well-formed artifact reference is returned unchanged.
func TranslateArtifactReference(ref, suffix string) string {
	return artifactRefPattern.ReplaceAllString(ref, `{{${1}.parameters.${2}`+suffix+`}}`)
}

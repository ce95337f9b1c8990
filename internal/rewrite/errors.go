package rewrite

import "fmt"

// UnsupportedConstructError reports a constant (non-reference) artifact
// argument. Volume-based passing can only carry a path to existing bytes,
// not stage literal content, so these abort the rewrite.
type UnsupportedConstructError struct {
	Scope    string // "workflow" or "task"
	Template string
	Task     string
	Artifact string
}

func (e *UnsupportedConstructError) Error() string {
	if e.Scope == "workflow" {
		return "volume-based data passing does not support constant workflow artifact arguments; only references can be passed"
	}
	return fmt.Sprintf("volume-based data passing does not support constant artifact arguments (template %q, task %q, artifact %q); only references can be passed",
		e.Template, e.Task, e.Artifact)
}

// ParameterCollisionError reports that a synthesized subpath parameter name
// collides with a parameter already declared in the same list.
type ParameterCollisionError struct {
	Template  string
	Task      string
	Parameter string
}

func (e *ParameterCollisionError) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("template %q task %q: subpath parameter %q collides with an existing parameter",
			e.Template, e.Task, e.Parameter)
	}
	return fmt.Sprintf("template %q: subpath parameter %q collides with an existing parameter",
		e.Template, e.Parameter)
}

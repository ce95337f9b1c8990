package argo

// TemplateKind classifies a template node by which marker field it carries.
// The three kinds are mutually exclusive in well-formed specifications.
type TemplateKind int

const (
	KindUnknown TemplateKind = iota
	KindContainer              // container or script execution unit
	KindDAG
	KindSteps
)

// String returns the kind's marker-field name.
func (k TemplateKind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindDAG:
		return "dag"
	case KindSteps:
		return "steps"
	default:
		return "unknown"
	}
}

// Template wraps a single template node. Mutations write through to the
// underlying workflow tree.
type Template struct {
	raw map[string]any
}

// Name returns the template's name field.
func (t Template) Name() string {
	return stringAt(t.raw, "name")
}

// Kind classifies the template. Script templates count as container-bearing:
// both wrap a single execution unit that takes volume mounts.
func (t Template) Kind() TemplateKind {
	switch {
	case t.raw["container"] != nil, t.raw["script"] != nil:
		return KindContainer
	case t.raw["dag"] != nil:
		return KindDAG
	case t.raw["steps"] != nil:
		return KindSteps
	default:
		return KindUnknown
	}
}

// ExecSpec returns the execution unit (container or script block) of a
// container-bearing template, or nil for other kinds.
func (t Template) ExecSpec() map[string]any {
	if c := mapAt(t.raw, "container"); c != nil {
		return c
	}
	return mapAt(t.raw, "script")
}

// AddVolumeMount appends a mount entry to the execution unit's mount list.
func (t Template) AddVolumeMount(mount map[string]any) {
	appendAt(t.ExecSpec(), "volumeMounts", mount)
}

// VolumeMounts returns the execution unit's mount entries.
func (t Template) VolumeMounts() []map[string]any {
	return mapEntries(sliceAt(t.ExecSpec(), "volumeMounts"))
}

// InputArtifacts returns the entries under inputs.artifacts.
func (t Template) InputArtifacts() []Artifact {
	return artifactEntries(sliceAt(mapAt(t.raw, "inputs"), "artifacts"))
}

// OutputArtifacts returns the entries under outputs.artifacts.
func (t Template) OutputArtifacts() []Artifact {
	return artifactEntries(sliceAt(mapAt(t.raw, "outputs"), "artifacts"))
}

// AddInputParameter appends a parameter to inputs.parameters, creating the
// intermediate nodes as needed.
func (t Template) AddInputParameter(param map[string]any) {
	appendAt(ensureMap(t.raw, "inputs"), "parameters", param)
}

// AddOutputParameter appends a parameter to outputs.parameters.
func (t Template) AddOutputParameter(param map[string]any) {
	appendAt(ensureMap(t.raw, "outputs"), "parameters", param)
}

// InputParameters returns the entries under inputs.parameters.
func (t Template) InputParameters() []map[string]any {
	return mapEntries(sliceAt(mapAt(t.raw, "inputs"), "parameters"))
}

// OutputParameters returns the entries under outputs.parameters.
func (t Template) OutputParameters() []map[string]any {
	return mapEntries(sliceAt(mapAt(t.raw, "outputs"), "parameters"))
}

// HasInputParameter reports whether inputs.parameters declares name.
func (t Template) HasInputParameter(name string) bool {
	return hasNamedEntry(sliceAt(mapAt(t.raw, "inputs"), "parameters"), name)
}

// HasOutputParameter reports whether outputs.parameters declares name.
func (t Template) HasOutputParameter(name string) bool {
	return hasNamedEntry(sliceAt(mapAt(t.raw, "outputs"), "parameters"), name)
}

// RemoveInputArtifacts drops the inputs.artifacts list. Used once the
// artifacts have been superseded by subpath parameters.
func (t Template) RemoveInputArtifacts() {
	if inputs := mapAt(t.raw, "inputs"); inputs != nil {
		delete(inputs, "artifacts")
	}
}

// RemoveOutputArtifacts drops the outputs.artifacts list.
func (t Template) RemoveOutputArtifacts() {
	if outputs := mapAt(t.raw, "outputs"); outputs != nil {
		delete(outputs, "artifacts")
	}
}

// Tasks returns every task of a DAG template or every step of a steps
// template, flattening step groups. Steps and tasks are structurally
// equivalent for argument rewriting.
func (t Template) Tasks() []Task {
	var tasks []Task
	for _, m := range mapEntries(sliceAt(mapAt(t.raw, "dag"), "tasks")) {
		tasks = append(tasks, Task{raw: m})
	}
	for _, group := range sliceAt(t.raw, "steps") {
		if g, ok := group.([]any); ok {
			for _, m := range mapEntries(g) {
				tasks = append(tasks, Task{raw: m})
			}
		}
	}
	return tasks
}

// Task wraps a DAG task or steps step node.
type Task struct {
	raw map[string]any
}

// Name returns the task's name field.
func (t Task) Name() string {
	return stringAt(t.raw, "name")
}

// ArgumentArtifacts returns the entries under arguments.artifacts.
func (t Task) ArgumentArtifacts() []Artifact {
	return artifactEntries(sliceAt(mapAt(t.raw, "arguments"), "artifacts"))
}

// AddArgumentParameter appends a parameter to arguments.parameters.
func (t Task) AddArgumentParameter(param map[string]any) {
	appendAt(ensureMap(t.raw, "arguments"), "parameters", param)
}

// ArgumentParameters returns the entries under arguments.parameters.
func (t Task) ArgumentParameters() []map[string]any {
	return mapEntries(sliceAt(mapAt(t.raw, "arguments"), "parameters"))
}

// HasArgumentParameter reports whether arguments.parameters declares name.
func (t Task) HasArgumentParameter(name string) bool {
	return hasNamedEntry(sliceAt(mapAt(t.raw, "arguments"), "parameters"), name)
}

// RemoveArgumentArtifacts drops the arguments.artifacts list.
func (t Task) RemoveArgumentArtifacts() {
	if args := mapAt(t.raw, "arguments"); args != nil {
		delete(args, "artifacts")
	}
}

func hasNamedEntry(entries []any, name string) bool {
	for _, m := range mapEntries(entries) {
		if stringAt(m, "name") == name {
			return true
		}
	}
	return false
}

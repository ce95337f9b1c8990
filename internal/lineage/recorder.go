package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Record vocabulary. Executions are typed per component; one context type
// covers all workflow runs.
const (
	RunContextTypeName  = "WorkflowRun"
	ExecutionTypePrefix = "components."

	// Property names shared with downstream consumers of the store.
	PipelineNameProperty = "pipeline_name"
	RunIDProperty        = "run_id"
	ComponentIDProperty  = "component_id"
	PodNameProperty      = "pod_name"
	IONameProperty       = "name"
)

// Recorder writes lineage records for workflow runs: one context per run,
// one execution per step, and artifact records linked by events.
type Recorder struct {
	store  MetadataStore
	logger *slog.Logger
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(store MetadataStore, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With("component", "lineage-recorder"),
	}
}

// GetOrCreateRunContext returns the context for runID, creating it on first
// use. Context names are unique, so concurrent creators converge on one row.
func (r *Recorder) GetOrCreateRunContext(ctx context.Context, runID string) (*Context, error) {
	existing, err := r.store.GetContextByName(ctx, runID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	typeID, err := r.store.GetOrCreateContextType(ctx, RunContextTypeName)
	if err != nil {
		return nil, err
	}
	c := &Context{
		TypeID: typeID,
		Name:   runID,
		Properties: map[string]any{
			PipelineNameProperty: runID,
			RunIDProperty:        runID,
		},
	}
	if _, err := r.store.PutContext(ctx, c); err != nil {
		// Lost a race: someone else created the run context first.
		if existing, lookupErr := r.store.GetContextByName(ctx, runID); lookupErr == nil {
			return existing, nil
		}
		return nil, err
	}
	r.logger.Debug("created run context", "run_id", runID, "context_id", c.ID)
	return c, nil
}

// CreateExecutionInRunContext records one step execution inside a run
// context and associates it with the context. componentID identifies the
// step's template; podName identifies the executing pod.
func (r *Recorder) CreateExecutionInRunContext(ctx context.Context, runContext *Context, componentID, podName string, customProperties map[string]any) (*Execution, error) {
	typeID, err := r.store.GetOrCreateExecutionType(ctx, ExecutionTypePrefix+componentID)
	if err != nil {
		return nil, err
	}

	custom := make(map[string]any, len(customProperties)+1)
	for k, v := range customProperties {
		custom[k] = v
	}
	custom[PodNameProperty] = podName

	execution := &Execution{
		TypeID: typeID,
		Properties: map[string]any{
			PipelineNameProperty: runContext.Name,
			RunIDProperty:        runContext.Name,
			ComponentIDProperty:  componentID,
		},
		CustomProperties: custom,
	}
	if _, err := r.store.PutExecution(ctx, execution); err != nil {
		return nil, err
	}

	if err := r.store.PutAttributionsAndAssociations(ctx, nil, []Association{
		{ContextID: runContext.ID, ExecutionID: execution.ID},
	}); err != nil {
		return nil, err
	}

	r.logger.Debug("created execution", "component_id", componentID,
		"execution_id", execution.ID, "context_id", runContext.ID)
	return execution, nil
}

// RecordOutputArtifact records an artifact produced by an execution: the
// artifact row, an OUTPUT event naming the output slot, and an attribution
// to the run context.
func (r *Recorder) RecordOutputArtifact(ctx context.Context, execution *Execution, runContext *Context, uri, typeName, outputName string) (*Artifact, error) {
	typeID, err := r.store.GetOrCreateArtifactType(ctx, typeName)
	if err != nil {
		return nil, err
	}

	artifact := &Artifact{
		TypeID: typeID,
		URI:    uri,
		CustomProperties: map[string]any{
			IONameProperty:       outputName,
			PipelineNameProperty: runContext.Name,
			RunIDProperty:        runContext.Name,
		},
	}
	if _, err := r.store.PutArtifact(ctx, artifact); err != nil {
		return nil, err
	}

	if err := r.store.PutEvents(ctx, Event{
		ExecutionID: execution.ID,
		ArtifactID:  artifact.ID,
		Type:        EventOutput,
		Path:        outputName,
	}); err != nil {
		return nil, err
	}

	if err := r.store.PutAttributionsAndAssociations(ctx, []Attribution{
		{ContextID: runContext.ID, ArtifactID: artifact.ID},
	}, nil); err != nil {
		return nil, err
	}

	r.logger.Debug("recorded output artifact", "uri", uri, "output", outputName,
		"artifact_id", artifact.ID)
	return artifact, nil
}

// LinkInputArtifact records that an execution consumed the artifact at uri,
// using the most recently recorded artifact when several share the URI.
func (r *Recorder) LinkInputArtifact(ctx context.Context, execution *Execution, uri, inputName string) (*Artifact, error) {
	artifacts, err := r.store.GetArtifactsByURI(ctx, uri)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("no upstream artifact with uri %q: %w", uri, ErrNotFound)
	}
	if len(artifacts) > 1 {
		r.logger.Warn("multiple artifacts share a uri, linking the latest",
			"uri", uri, "count", len(artifacts))
	}
	artifact := artifacts[len(artifacts)-1]

	if err := r.store.PutEvents(ctx, Event{
		ExecutionID: execution.ID,
		ArtifactID:  artifact.ID,
		Type:        EventInput,
		Path:        inputName,
	}); err != nil {
		return nil, err
	}
	return artifact, nil
}

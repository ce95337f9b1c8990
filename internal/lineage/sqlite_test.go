package lineage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestGetOrCreateType_ReturnsSameID(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	first, err := st.GetOrCreateArtifactType(ctx, "Dataset")
	if err != nil {
		t.Fatalf("create artifact type: %v", err)
	}
	second, err := st.GetOrCreateArtifactType(ctx, "Dataset")
	if err != nil {
		t.Fatalf("get artifact type: %v", err)
	}
	if first != second {
		t.Errorf("type ids differ: %d vs %d", first, second)
	}
}

func TestGetOrCreateType_KindsAreSeparate(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	artID, err := st.GetOrCreateArtifactType(ctx, "Run")
	if err != nil {
		t.Fatalf("artifact type: %v", err)
	}
	execID, err := st.GetOrCreateExecutionType(ctx, "Run")
	if err != nil {
		t.Fatalf("execution type: %v", err)
	}
	ctxID, err := st.GetOrCreateContextType(ctx, "Run")
	if err != nil {
		t.Fatalf("context type: %v", err)
	}
	if artID == execID || execID == ctxID {
		t.Errorf("same name in different kinds must get distinct ids: %d, %d, %d", artID, execID, ctxID)
	}
}

func TestPutContext_GetByName(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	typeID, err := st.GetOrCreateContextType(ctx, RunContextTypeName)
	if err != nil {
		t.Fatalf("context type: %v", err)
	}
	c := &Context{
		TypeID:     typeID,
		Name:       "run-1",
		Properties: map[string]any{RunIDProperty: "run-1"},
	}
	id, err := st.PutContext(ctx, c)
	if err != nil {
		t.Fatalf("put context: %v", err)
	}
	if id == 0 {
		t.Error("context id not assigned")
	}

	got, err := st.GetContextByName(ctx, "run-1")
	if err != nil {
		t.Fatalf("get context: %v", err)
	}
	if got.ID != id || got.TypeID != typeID {
		t.Errorf("got context %+v", got)
	}
	if got.Properties[RunIDProperty] != "run-1" {
		t.Errorf("properties not round-tripped: %v", got.Properties)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestGetContextByName_NotFound(t *testing.T) {
	st := testStore(t)

	_, err := st.GetContextByName(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutContext_DuplicateNameFails(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	typeID, _ := st.GetOrCreateContextType(ctx, RunContextTypeName)
	if _, err := st.PutContext(ctx, &Context{TypeID: typeID, Name: "run-1"}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := st.PutContext(ctx, &Context{TypeID: typeID, Name: "run-1"}); err == nil {
		t.Fatal("expected unique-name violation")
	}
}

func TestGetArtifactsByURI_OrderedByID(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	typeID, err := st.GetOrCreateArtifactType(ctx, "Dataset")
	if err != nil {
		t.Fatalf("artifact type: %v", err)
	}

	uri := "volume://data-storage/run_pod/data"
	first, err := st.PutArtifact(ctx, &Artifact{TypeID: typeID, URI: uri})
	if err != nil {
		t.Fatalf("put artifact: %v", err)
	}
	second, err := st.PutArtifact(ctx, &Artifact{TypeID: typeID, URI: uri})
	if err != nil {
		t.Fatalf("put artifact: %v", err)
	}

	artifacts, err := st.GetArtifactsByURI(ctx, uri)
	if err != nil {
		t.Fatalf("get by uri: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("artifacts count = %d, want 2", len(artifacts))
	}
	if artifacts[0].ID != first || artifacts[1].ID != second {
		t.Errorf("order = [%d, %d], want [%d, %d]",
			artifacts[0].ID, artifacts[1].ID, first, second)
	}

	none, err := st.GetArtifactsByURI(ctx, "volume://other")
	if err != nil {
		t.Fatalf("get by uri: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unexpected artifacts: %v", none)
	}
}

func TestPutAttributionsAndAssociations_Idempotent(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	ctxTypeID, err := st.GetOrCreateContextType(ctx, RunContextTypeName)
	if err != nil {
		t.Fatalf("context type: %v", err)
	}
	runCtx := &Context{TypeID: ctxTypeID, Name: "run-1"}
	if _, err := st.PutContext(ctx, runCtx); err != nil {
		t.Fatalf("put context: %v", err)
	}

	artTypeID, err := st.GetOrCreateArtifactType(ctx, "Dataset")
	if err != nil {
		t.Fatalf("artifact type: %v", err)
	}
	artifact := &Artifact{TypeID: artTypeID, URI: "volume://data-storage/a"}
	if _, err := st.PutArtifact(ctx, artifact); err != nil {
		t.Fatalf("put artifact: %v", err)
	}

	execTypeID, err := st.GetOrCreateExecutionType(ctx, "components.step")
	if err != nil {
		t.Fatalf("execution type: %v", err)
	}
	execution := &Execution{TypeID: execTypeID}
	if _, err := st.PutExecution(ctx, execution); err != nil {
		t.Fatalf("put execution: %v", err)
	}

	attrs := []Attribution{{ContextID: runCtx.ID, ArtifactID: artifact.ID}}
	assocs := []Association{{ContextID: runCtx.ID, ExecutionID: execution.ID}}
	if err := st.PutAttributionsAndAssociations(ctx, attrs, assocs); err != nil {
		t.Fatalf("first put: %v", err)
	}
	// Re-putting the same links must not fail.
	if err := st.PutAttributionsAndAssociations(ctx, attrs, assocs); err != nil {
		t.Fatalf("second put: %v", err)
	}
}

func TestPutEvents(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	artTypeID, _ := st.GetOrCreateArtifactType(ctx, "Dataset")
	artifact := &Artifact{TypeID: artTypeID, URI: "volume://data-storage/a"}
	if _, err := st.PutArtifact(ctx, artifact); err != nil {
		t.Fatalf("put artifact: %v", err)
	}
	execTypeID, _ := st.GetOrCreateExecutionType(ctx, "components.step")
	execution := &Execution{TypeID: execTypeID}
	if _, err := st.PutExecution(ctx, execution); err != nil {
		t.Fatalf("put execution: %v", err)
	}

	err := st.PutEvents(ctx,
		Event{ExecutionID: execution.ID, ArtifactID: artifact.ID, Type: EventOutput, Path: "data"},
		Event{ExecutionID: execution.ID, ArtifactID: artifact.ID, Type: EventInput, Path: "data"},
	)
	if err != nil {
		t.Fatalf("put events: %v", err)
	}
}

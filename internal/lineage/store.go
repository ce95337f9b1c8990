// Package lineage records data lineage for rewritten workflow runs: typed
// records for runs (contexts), step executions, and artifacts, linked by
// events, attributions, and associations.
package lineage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("lineage: record not found")

// Artifact is a file (or other addressable value) produced or consumed by
// an execution, identified by its URI.
type Artifact struct {
	ID               int64
	TypeID           int64
	URI              string
	Properties       map[string]any
	CustomProperties map[string]any
	CreatedAt        time.Time
}

// Execution is one run of a workflow step.
type Execution struct {
	ID               int64
	TypeID           int64
	Properties       map[string]any
	CustomProperties map[string]any
	CreatedAt        time.Time
}

// Context groups executions and artifacts; one context per workflow run.
// Context names are unique.
type Context struct {
	ID               int64
	TypeID           int64
	Name             string
	Properties       map[string]any
	CustomProperties map[string]any
	CreatedAt        time.Time
}

// EventType distinguishes input from output edges between executions and
// artifacts.
type EventType string

const (
	EventInput  EventType = "INPUT"
	EventOutput EventType = "OUTPUT"
)

// Event links an execution to an artifact it consumed or produced. Path
// names the input/output slot the artifact filled.
type Event struct {
	ExecutionID int64
	ArtifactID  int64
	Type        EventType
	Path        string
}

// Attribution links an artifact to a context.
type Attribution struct {
	ContextID  int64
	ArtifactID int64
}

// Association links an execution to a context.
type Association struct {
	ContextID   int64
	ExecutionID int64
}

// MetadataStore is the persistence surface for lineage records. Records are
// keyed by integer identifiers assigned on first put.
type MetadataStore interface {
	// Type registry: get-or-create, keyed by name per record kind.
	GetOrCreateArtifactType(ctx context.Context, name string) (int64, error)
	GetOrCreateExecutionType(ctx context.Context, name string) (int64, error)
	GetOrCreateContextType(ctx context.Context, name string) (int64, error)

	// Record puts; each returns the assigned id.
	PutArtifact(ctx context.Context, artifact *Artifact) (int64, error)
	PutExecution(ctx context.Context, execution *Execution) (int64, error)
	PutContext(ctx context.Context, c *Context) (int64, error)

	// Lookups.
	GetContextByName(ctx context.Context, name string) (*Context, error)
	GetArtifactsByURI(ctx context.Context, uri string) ([]*Artifact, error)

	// Links.
	PutEvents(ctx context.Context, events ...Event) error
	PutAttributionsAndAssociations(ctx context.Context, attributions []Attribution, associations []Association) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

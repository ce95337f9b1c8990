package lineage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements MetadataStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a MetadataStore. Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "lineage-store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Type registry ---

func (s *SQLiteStore) GetOrCreateArtifactType(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateType(ctx, "artifact", name)
}

func (s *SQLiteStore) GetOrCreateExecutionType(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateType(ctx, "execution", name)
}

func (s *SQLiteStore) GetOrCreateContextType(ctx context.Context, name string) (int64, error) {
	return s.getOrCreateType(ctx, "context", name)
}

func (s *SQLiteStore) getOrCreateType(ctx context.Context, kind, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM types WHERE kind = ? AND name = ?`, kind, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup %s type %q: %w", kind, name, err)
	}

	s.logger.Debug("sql", "op", "insert", "table", "types", "kind", kind, "name", name)
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO types (kind, name) VALUES (?, ?)`, kind, name)
	if err != nil {
		// Lost a race against a concurrent insert; the row exists now.
		if lookupErr := s.db.QueryRowContext(ctx,
			`SELECT id FROM types WHERE kind = ? AND name = ?`, kind, name).Scan(&id); lookupErr == nil {
			return id, nil
		}
		return 0, fmt.Errorf("create %s type %q: %w", kind, name, err)
	}
	return result.LastInsertId()
}

// --- Record puts ---

func (s *SQLiteStore) PutArtifact(ctx context.Context, artifact *Artifact) (int64, error) {
	s.logger.Debug("sql", "op", "insert", "table", "artifacts", "uri", artifact.URI)

	props, custom, err := marshalProperties(artifact.Properties, artifact.CustomProperties)
	if err != nil {
		return 0, err
	}
	createdAt := recordTime(artifact.CreatedAt)

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (type_id, uri, properties, custom_properties, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		artifact.TypeID, artifact.URI, props, custom, createdAt)
	if err != nil {
		return 0, fmt.Errorf("insert artifact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	artifact.ID = id
	return id, nil
}

func (s *SQLiteStore) PutExecution(ctx context.Context, execution *Execution) (int64, error) {
	s.logger.Debug("sql", "op", "insert", "table", "executions", "type_id", execution.TypeID)

	props, custom, err := marshalProperties(execution.Properties, execution.CustomProperties)
	if err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (type_id, properties, custom_properties, created_at)
		 VALUES (?, ?, ?, ?)`,
		execution.TypeID, props, custom, recordTime(execution.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert execution: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	execution.ID = id
	return id, nil
}

func (s *SQLiteStore) PutContext(ctx context.Context, c *Context) (int64, error) {
	s.logger.Debug("sql", "op", "insert", "table", "contexts", "name", c.Name)

	props, custom, err := marshalProperties(c.Properties, c.CustomProperties)
	if err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO contexts (type_id, name, properties, custom_properties, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.TypeID, c.Name, props, custom, recordTime(c.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert context %q: %w", c.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

// --- Lookups ---

func (s *SQLiteStore) GetContextByName(ctx context.Context, name string) (*Context, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type_id, name, properties, custom_properties, created_at
		 FROM contexts WHERE name = ?`, name)

	var c Context
	var props, custom, createdAt string
	if err := row.Scan(&c.ID, &c.TypeID, &c.Name, &props, &custom, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("context %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get context %q: %w", name, err)
	}
	if err := unmarshalRecord(props, custom, createdAt, &c.Properties, &c.CustomProperties, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) GetArtifactsByURI(ctx context.Context, uri string) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type_id, uri, properties, custom_properties, created_at
		 FROM artifacts WHERE uri = ? ORDER BY id`, uri)
	if err != nil {
		return nil, fmt.Errorf("get artifacts by uri %q: %w", uri, err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		var a Artifact
		var props, custom, createdAt string
		if err := rows.Scan(&a.ID, &a.TypeID, &a.URI, &props, &custom, &createdAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if err := unmarshalRecord(props, custom, createdAt, &a.Properties, &a.CustomProperties, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}

// --- Links ---

func (s *SQLiteStore) PutEvents(ctx context.Context, events ...Event) error {
	for _, e := range events {
		s.logger.Debug("sql", "op", "insert", "table", "events",
			"execution_id", e.ExecutionID, "artifact_id", e.ArtifactID, "type", string(e.Type))
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO events (execution_id, artifact_id, type, path, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			e.ExecutionID, e.ArtifactID, string(e.Type), e.Path, recordTime(time.Time{})); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) PutAttributionsAndAssociations(ctx context.Context, attributions []Attribution, associations []Association) error {
	for _, attr := range attributions {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO attributions (context_id, artifact_id) VALUES (?, ?)`,
			attr.ContextID, attr.ArtifactID); err != nil {
			return fmt.Errorf("insert attribution: %w", err)
		}
	}
	for _, assoc := range associations {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO associations (context_id, execution_id) VALUES (?, ?)`,
			assoc.ContextID, assoc.ExecutionID); err != nil {
			return fmt.Errorf("insert association: %w", err)
		}
	}
	return nil
}

// --- Row helpers ---

func marshalProperties(properties, custom map[string]any) (string, string, error) {
	propsJSON, err := json.Marshal(orEmpty(properties))
	if err != nil {
		return "", "", fmt.Errorf("marshal properties: %w", err)
	}
	customJSON, err := json.Marshal(orEmpty(custom))
	if err != nil {
		return "", "", fmt.Errorf("marshal custom properties: %w", err)
	}
	return string(propsJSON), string(customJSON), nil
}

func unmarshalRecord(props, custom, createdAt string, propsOut, customOut *map[string]any, createdOut *time.Time) error {
	if err := json.Unmarshal([]byte(props), propsOut); err != nil {
		return fmt.Errorf("unmarshal properties: %w", err)
	}
	if err := json.Unmarshal([]byte(custom), customOut); err != nil {
		return fmt.Errorf("unmarshal custom properties: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}
	*createdOut = t
	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func recordTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.Format(time.RFC3339Nano)
}

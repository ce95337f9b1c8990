// Package volpass assembles the data-passing rewriter and its collaborators
// (lineage store, cluster client, snapshot manager) from one configuration.
package volpass

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/volpass/internal/cluster"
	"github.com/me/volpass/internal/config"
	"github.com/me/volpass/internal/lineage"
	"github.com/me/volpass/internal/logging"
	"github.com/me/volpass/internal/rewrite"
	"github.com/me/volpass/internal/snapshot"
)

// System holds the wired components. All share one logger; component
// loggers are derived from it.
type System struct {
	Logger    *slog.Logger
	Rewriter  *rewrite.Rewriter
	Store     lineage.MetadataStore
	Lineage   *lineage.Recorder
	Cluster   *cluster.Client
	Snapshots *snapshot.Manager
}

// New builds a System from cfg. The lineage database is opened and migrated
// before returning; the cluster client stays unconnected until first use.
func New(ctx context.Context, cfg config.Config) (*System, error) {
	logger := logging.FromSettings(cfg.LogLevel, cfg.LogFormat)

	if cfg.MetadataDBPath == "" {
		return nil, fmt.Errorf("config: metadata db path is required")
	}
	store, err := lineage.NewSQLiteStore(cfg.MetadataDBPath, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate lineage store: %w", err)
	}

	clusterCfg := cluster.DefaultConfig()
	clusterCfg.BaseURL = cfg.ClusterAPIURL
	clusterCfg.Token = cfg.ClusterToken
	clusterCfg.Namespace = cfg.Namespace
	client := cluster.NewClient(clusterCfg, logger)

	return &System{
		Logger:    logger,
		Rewriter:  rewrite.New(logger, rewrite.Options{PathPrefix: cfg.PathPrefix}),
		Store:     store,
		Lineage:   lineage.NewRecorder(store, logger),
		Cluster:   client,
		Snapshots: snapshot.NewManager(client, cfg.StorageClass, logger),
	}, nil
}

// Close releases the lineage store.
func (s *System) Close() error {
	return s.Store.Close()
}

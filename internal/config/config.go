package config

// Config holds static configuration for the VolPass components.
type Config struct {
	// PathPrefix is the root under which per-execution output directories
	// are generated on the shared data volume.
	PathPrefix string

	// MetadataDBPath is the SQLite database path for the lineage store
	// (":memory:" for testing).
	MetadataDBPath string

	// ClusterAPIURL is the Kubernetes API server address.
	ClusterAPIURL string
	// ClusterToken is the bearer token for API server requests.
	ClusterToken string
	// Namespace scopes all namespaced cluster operations.
	Namespace string
	// StorageClass names the class used for generated workflow claims.
	StorageClass string

	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		PathPrefix:   "artifact_data/",
		Namespace:    "default",
		StorageClass: "longhorn",
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ApplyDefaults fills in zero-valued fields with sensible defaults, mirroring
// the teacher's ApplyDefaults-then-Validate sequencing: defaults run first so
// Validate only ever has to reject a value the caller set explicitly.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.WritablePath == "" {
		cfg.WritablePath = defaultWritablePath()
	}

	applyMetadataStoreDefaults(&cfg.MetadataStore, cfg.WritablePath)
	applyBlobStoreDefaults(&cfg.BlobStore, cfg.WritablePath)
	applyBlobStoreDefaults(&cfg.ServerBlobStore, cfg.WritablePath)

	cfg.Database.ApplyDefaults()
	// cfg.API's defaults are applied by api.NewServer itself; lockbookd
	// never needs to duplicate that here.
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetadataStoreDefaults(cfg *MetadataStoreConfig, writablePath string) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}
	if cfg.Type == "badger" && cfg.Badger.Path == "" {
		cfg.Badger.Path = filepath.Join(writablePath, "metadata")
	}
}

func applyBlobStoreDefaults(cfg *BlobStoreConfig, writablePath string) {
	if cfg.Type == "" {
		cfg.Type = "fs"
	}
	if cfg.Type == "fs" && cfg.Filesystem.BasePath == "" {
		cfg.Filesystem.BasePath = filepath.Join(writablePath, "documents")
	}
}

// defaultWritablePath follows the teacher's getConfigDir XDG-fallback
// pattern, rooted at the lockbook data directory instead of a config
// directory.
func defaultWritablePath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "lockbook")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lockbook"
	}
	return filepath.Join(home, ".lockbook")
}

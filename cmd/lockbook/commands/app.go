package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lockbook/lockbook-core/internal/logger"
	"github.com/lockbook/lockbook-core/pkg/config"
	"github.com/lockbook/lockbook-core/pkg/engine"
)

// globalFlags stores the persistent flag values set on rootCmd, synced
// in rootCmd's PersistentPreRun the way dfsctl's cmdutil.Flags is.
var globalFlags = struct {
	ConfigPath   string
	WritablePath string
	APIURL       string
}{}

// loadConfig resolves this invocation's configuration: the config file
// named by --config (or the default search path), overridden by
// --writable-path/--api-url when given explicitly on the command line.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if globalFlags.WritablePath != "" {
		cfg.WritablePath = globalFlags.WritablePath
	}
	if globalFlags.APIURL != "" {
		cfg.APIURL = globalFlags.APIURL
	}
	if err := logger.Init(cfg.Logging.ToLoggerConfig()); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return cfg, nil
}

// accountFilePath is where the exported account string lives between
// invocations: one process runs one command and exits, so the identity
// and sync watermark must round-trip through disk rather than memory.
func accountFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.WritablePath, "account.txt")
}

func cursorFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.WritablePath, "cursor.json")
}

func hasAccount(cfg *config.Config) bool {
	_, err := os.Stat(accountFilePath(cfg))
	return err == nil
}

func saveAccountString(cfg *config.Config, s string) error {
	if err := os.MkdirAll(cfg.WritablePath, 0o700); err != nil {
		return err
	}
	return os.WriteFile(accountFilePath(cfg), []byte(s), 0o600)
}

func readAccountString(cfg *config.Config) (string, error) {
	raw, err := os.ReadFile(accountFilePath(cfg))
	if err != nil {
		return "", fmt.Errorf("no account found at %s: run 'lockbook new-account' or 'lockbook import-account' first", cfg.WritablePath)
	}
	return string(raw), nil
}

// openEngine builds the engine this invocation's command runs against:
// the base/local metadata layers and document store named by cfg,
// rehydrated with the identity saved by a previous new-account/
// import-account call.
func openEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
	accountStr, err := readAccountString(cfg)
	if err != nil {
		return nil, err
	}

	base, err := config.CreateMetadataStore(cfg.MetadataStore, "base")
	if err != nil {
		return nil, fmt.Errorf("open base metadata store: %w", err)
	}
	local, err := config.CreateMetadataStore(cfg.MetadataStore, "local")
	if err != nil {
		return nil, fmt.Errorf("open local metadata store: %w", err)
	}
	blobs, err := config.CreateBlobStore(ctx, cfg.BlobStore)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	cursor := engine.NewFileCursor(cursorFilePath(cfg))

	return engine.ImportAccount(accountStr, base, local, blobs, cursor)
}

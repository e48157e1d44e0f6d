// Command lockbookd is the reference Lockbook sync server: the HTTP
// endpoint set pkg/syncclient talks to, backed by a SQL metadata store
// and a pluggable document blob store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lockbook/lockbook-core/internal/logger"
	"github.com/lockbook/lockbook-core/pkg/config"
	"github.com/lockbook/lockbook-core/pkg/server/api"
	"github.com/lockbook/lockbook-core/pkg/server/store"
)

var (
	version = "dev"
	commit  = "none"
)

const usage = `lockbookd - reference Lockbook sync server

Usage:
  lockbookd <command> [flags]

Commands:
  start    Start the server
  version  Show version information

Flags:
  --config string    Path to config file (default: search standard locations)

Examples:
  lockbookd start
  lockbookd start --config /etc/lockbookd/config.yaml

  # Any configuration key can be overridden via environment variables,
  # using the LOCKBOOK_<SECTION>_<KEY> naming convention:
  LOCKBOOK_API_PORT=9090 lockbookd start
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		runStart()
	case "version", "--version", "-v":
		fmt.Printf("lockbookd %s (commit: %s)\n", version, commit)
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runStart() {
	startFlags := flag.NewFlagSet("start", flag.ExitOnError)
	configFile := startFlags.String("config", "", "Path to config file")
	if err := startFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	cfg, err := config.MustLoad(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Logging.ToLoggerConfig()); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to open metadata store: %v", err)
	}

	blobs, err := config.CreateBlobStore(ctx, cfg.ServerBlobStore)
	if err != nil {
		log.Fatalf("failed to open blob store: %v", err)
	}

	svc := api.NewService(db, blobs, cfg.API.DataCapBytes.Uint64())
	srv, err := api.NewServer(cfg.API, svc)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("lockbookd running", "port", srv.Port())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			os.Exit(1)
		}
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/pesit-e/pesitengine/internal/config"
	"github.com/pesit-e/pesitengine/internal/driver"
	"github.com/pesit-e/pesitengine/internal/logging"
	"github.com/pesit-e/pesitengine/internal/storage"
	syncpkg "github.com/pesit-e/pesitengine/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the PeSIT-E server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen_addr", ":6969", "address to listen on")
	serveCmd.Flags().String("server_id", "PESITSRV", "PI_04 identity this server answers as")
	serveCmd.Flags().String("storage_backend", "local", "storage backend (local|s3)")
	serveCmd.Flags().String("storage_root", "./data", "root directory for local storage")
	serveCmd.Flags().Int("max_entity_size", 4096, "max FPDU entity size to negotiate")
	serveCmd.Flags().Int("sync_interval_kb", 1024, "KB of file data between sync points")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	defer logger.Sync()

	lookup, err := config.LoadPartners(cfg.PartnersFile)
	if err != nil {
		return err
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	restarts, cleanup, err := buildRestartStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := driver.NewServer(driver.ServerConfig{
		ListenAddr:     cfg.ListenAddr,
		ServerID:       cfg.ServerID,
		Lookup:         lookup,
		Store:          store,
		Restarts:       restarts,
		MaxEntitySize:  cfg.MaxEntitySize,
		SyncIntervalKB: uint16(cfg.SyncIntervalKB),
	}, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Infof("signal received: %s, shutting down gracefully...", sig)
		if err := srv.Stop(5 * time.Second); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("daemon shut down cleanly")
		return nil
	}
}

func buildStore(cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		return storage.NewS3Store(s3.NewFromConfig(awsCfg), storage.S3Config{
			Bucket:    cfg.S3Bucket,
			KeyPrefix: cfg.S3KeyPrefix,
		}), nil
	default:
		return storage.NewLocalStore(cfg.StorageRoot), nil
	}
}

func buildRestartStore(cfg *config.Config) (syncpkg.RestartStore, func(), error) {
	if cfg.RestartStoreBackend != "badger" {
		return syncpkg.NewMemoryRestartStore(), func() {}, nil
	}
	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerPath).WithLogger(nil))
	if err != nil {
		return nil, nil, fmt.Errorf("opening restart store at %s: %w", cfg.BadgerPath, err)
	}
	return syncpkg.NewBadgerRestartStore(db), func() { db.Close() }, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"photosync/pkg/bus"
	gos3 "photosync/pkg/s3"
	"photosync/pkg/telemetry"
	"photosync/services/exporter"
	"photosync/services/status"
	"photosync/services/syncer"
)

const manifestFileName = "manifest.json"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "photoctl",
		Short:         "Synchronize remote image collections into the local content store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newSyncCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newExportCommand())
	return cmd
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass over every configured collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync()
		},
	}
}

func runSync() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, _, logger, err := telemetry.Init(ctx, "photosync")
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "photosync: telemetry shutdown error: %v\n", err)
		}
	}()

	cfg, err := syncer.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := gos3.NewClientFromEnv()
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}

	manifestPath := filepath.Join(cfg.StoreRoot, manifestFileName)
	manifest, err := syncer.LoadManifest(manifestPath)
	if err != nil {
		// Unreadable history means every asset looks new this run; that is
		// degraded but recoverable, not fatal.
		logger.Printf("WARN: manifest %s unreadable, starting with empty history: %v", manifestPath, err)
	}

	var events syncer.Publisher
	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		defer b.Close()
		events = b
	}

	orch, err := syncer.NewOrchestrator(cfg, store, manifest, events, logger)
	if err != nil {
		return err
	}

	report, err := orch.Run(ctx)
	if report != nil {
		for _, res := range report.Collections {
			fmt.Printf("%s: %s (%d current, %d archived, %d failed)\n",
				res.Key, res.State, res.CurrentCount, res.ArchivedCount, res.FailedCount)
		}
	}
	return err
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve collection summaries, health, and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, "photosync-status")
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "photosync-status: telemetry shutdown error: %v\n", err)
		}
	}()

	cfg, err := syncer.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	keys := make([]string, 0, len(cfg.Collections))
	for _, col := range cfg.Collections {
		keys = append(keys, col.Key)
	}

	server, err := status.NewServer(cfg.StoreRoot, keys, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(middleware),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("INFO: status server listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newExportCommand() *cobra.Command {
	var (
		collectionKey string
		output        string
		uploadBucket  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Bundle a collection's archived assets into a tar.zst archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := syncer.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			exportCfg := exporter.Config{
				StoreRoot:     cfg.StoreRoot,
				CollectionKey: collectionKey,
				Output:        output,
				Stdout:        os.Stdout,
			}
			if uploadBucket != "" {
				uploader, err := gos3.NewClientFromEnv()
				if err != nil {
					return fmt.Errorf("s3 client: %w", err)
				}
				exportCfg.Uploader = uploader
				exportCfg.UploadBucket = uploadBucket
			}

			_, err = exporter.Export(ctx, exportCfg)
			return err
		},
	}

	cmd.Flags().StringVar(&collectionKey, "collection", "", "Collection key whose archive area to bundle")
	cmd.Flags().StringVar(&output, "output", "", "Destination bundle file (tar.zst)")
	cmd.Flags().StringVar(&uploadBucket, "upload-bucket", "", "Optional bucket to upload the bundle to")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

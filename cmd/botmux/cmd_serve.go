package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/botmux/internal/audit"
	"github.com/user/botmux/internal/commands"
	"github.com/user/botmux/internal/httpapi"
	"github.com/user/botmux/internal/manager"
	"github.com/user/botmux/internal/platform"
	"github.com/user/botmux/internal/platform/telegram"
	"github.com/user/botmux/internal/regsync"
	"github.com/user/botmux/internal/sandbox"
	"github.com/user/botmux/internal/scheduler"
	"github.com/user/botmux/internal/store"
	"github.com/user/botmux/internal/vault"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the botmux daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if cfg.Vault.Key == "" {
		return fmt.Errorf("vault.key is not set; run 'botmux vault keygen' and add it to the config")
	}
	v, err := vault.New(cfg.Vault.Key)
	if err != nil {
		return fmt.Errorf("load vault key: %w", err)
	}

	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	commandStore := store.NewCommandStore(db)
	sessionStore := store.NewSessionStore(db)
	logStore := store.NewLogStore(db)
	emitter := audit.New(logStore)

	platforms := platform.NewRegistry()
	platforms.Register("telegram", platform.Adapter{
		Client:    telegram.NewClient(),
		Registrar: telegram.NewRegistrar(),
	})
	adapter, err := platforms.Lookup(cfg.Platform.Name)
	if err != nil {
		return err
	}

	table := commands.New(commandStore)
	syncer := regsync.New(commandStore, sessionStore, v, adapter.Registrar, emitter)
	runner := sandbox.New(emitter, cfg.Sandbox.Timeout)

	mgr := manager.New(manager.Config{
		Client:        adapter.Client,
		Vault:         v,
		Commands:      commandStore,
		Sessions:      sessionStore,
		Syncer:        syncer,
		Recorder:      table,
		Scripts:       runner,
		Audit:         emitter,
		PrivateMarker: cfg.Commands.PrivateMarker,
	})
	table.SetSyncer(mgr)

	sched := scheduler.New(mgr, mgr, cfg.Sync.Schedule)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}
	defer sched.Stop()

	api := httpapi.NewServer(mgr, table, logStore)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Listen,
		Handler: api,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin API listening", "addr", cfg.HTTP.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("botmux started",
		"data_dir", cfg.DataDir,
		"database", cfg.Database.DSN,
		"platform", cfg.Platform.Name,
		"sync_schedule", cfg.Sync.Schedule,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		slog.Error("admin API failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("admin API shutdown failed", "error", err)
	}
	if err := mgr.ShutdownAll(shutdownCtx); err != nil {
		slog.Warn("session shutdown incomplete", "error", err)
	}
	return nil
}

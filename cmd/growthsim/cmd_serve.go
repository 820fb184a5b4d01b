package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/growthsim/internal/api"
	"github.com/talgya/growthsim/internal/config"
	"github.com/talgya/growthsim/internal/entropy"
	"github.com/talgya/growthsim/internal/persistence"
	"github.com/talgya/growthsim/internal/scenario"
)

const sessionTTL = 2 * time.Hour

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulator HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				cfg.Logging.Level = lvl
			}
			setupLogging(cfg.Logging.Level)

			// ── Scenario ──────────────────────────────────────────────
			src := entropy.NewSource(cfg.Scenario.Seed)
			sc, err := scenario.LoadFile(cfg.Scenario.Path, src)
			if err != nil {
				return fmt.Errorf("load scenario: %w", err)
			}
			slog.Info("scenario loaded",
				"chapters", len(sc.Chapters),
				"decisions", sc.NonTerminalCount(),
				"seed", sc.Seed,
			)

			// ── Run archive ───────────────────────────────────────────
			var db *persistence.DB
			if cfg.Database.Path != "" {
				if dir := filepath.Dir(cfg.Database.Path); dir != "." {
					os.MkdirAll(dir, 0755)
				}
				db, err = persistence.Open(cfg.Database.Path)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer db.Close()
				db.SaveMeta("scenario_seed", strconv.FormatInt(sc.Seed, 10))
				slog.Info("run archive opened", "path", cfg.Database.Path)
			} else {
				slog.Warn("no database path configured, runs will not be archived")
			}

			// ── HTTP API ──────────────────────────────────────────────
			server := &api.Server{
				Scenario:    sc,
				Sessions:    api.NewSessionManager(cfg.Server.MaxSessions, sessionTTL),
				DB:          db,
				Port:        cfg.Server.Port,
				CORSOrigins: cfg.Server.CORSOrigins,
			}
			server.Start()

			fmt.Printf("growthsim serving %d chapters on http://localhost:%d/api/v1/status\n",
				len(sc.Chapters), cfg.Server.Port)
			fmt.Println("Ctrl+C to stop")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			slog.Info("received signal, shutting down", "signal", sig)
			return nil
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sipeed/uptimebot/pkg/bus"
	"github.com/sipeed/uptimebot/pkg/channels"
	"github.com/sipeed/uptimebot/pkg/commands"
	"github.com/sipeed/uptimebot/pkg/config"
	"github.com/sipeed/uptimebot/pkg/health"
	"github.com/sipeed/uptimebot/pkg/heartbeat"
	"github.com/sipeed/uptimebot/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var envFile string

var rootCmd = &cobra.Command{
	Use:           "uptimebot",
	Short:         "Discord command bot with a keep-alive endpoint",
	Long:          "Connects to the Discord gateway, answers !ping, !help and !status, and serves GET / for uptime monitors.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := run(ctx, envFile)
		switch {
		case errors.Is(err, config.ErrMissingToken):
			logger.ErrorC("main", "FATAL ERROR: DISCORD_TOKEN environment variable is not set. Please add it to the environment settings.")
		case err != nil:
			logger.ErrorCF("main", "Fatal error", map[string]any{"error": err.Error()})
		}
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "uptimebot", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(versionCmd)
}

// loadEnvFile applies path to the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.DebugCF("main", "No env file found, using process environment", map[string]any{"path": path})
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// run starts every component and blocks until ctx is done. Configuration
// and port binding are checked before any gateway connection is attempted.
func run(ctx context.Context, envPath string) error {
	if err := loadEnvFile(envPath); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Logging); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	liveness := health.NewServer(cfg.Server)
	if err := liveness.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := liveness.Shutdown(shutdownCtx); err != nil {
			logger.WarnCF("main", "Liveness shutdown failed", map[string]any{"error": err.Error()})
		}
	}()

	mb := bus.NewMessageBus()
	defer mb.Close()

	discord, err := channels.NewDiscordChannel(cfg.Discord, mb)
	if err != nil {
		return err
	}

	var hb *heartbeat.Service
	if cfg.Heartbeat.Enabled {
		if hb, err = heartbeat.NewService(cfg.Heartbeat, discord, startedAt); err != nil {
			return err
		}
	}

	if err := discord.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := discord.Stop(context.Background()); err != nil {
			logger.WarnCF("main", "Discord shutdown failed", map[string]any{"error": err.Error()})
		}
	}()

	if hb != nil {
		go func() {
			if err := hb.Run(ctx); err != nil {
				logger.ErrorCF("main", "Heartbeat failed", map[string]any{"error": err.Error()})
			}
		}()
	}

	dispatcher := commands.NewDispatcher(discord, discord, commands.WithStartTime(startedAt))
	return dispatcher.Run(ctx, mb)
}

// nochan bridges NapCatQQ chats to the OpenCode CLI: it runs the OneBot 11
// WebSocket server, routes messages through the dispatch pipeline, and keeps
// per-chat conversation state in an embedded libsql database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nochan-bot/nochan/nochan/agent"
	"github.com/nochan-bot/nochan/nochan/config"
	"github.com/nochan-bot/nochan/nochan/conversation"
	"github.com/nochan-bot/nochan/nochan/db"
	"github.com/nochan-bot/nochan/nochan/dispatch"
	ports "github.com/nochan-bot/nochan/nochan/dispatch/ports"
	"github.com/nochan-bot/nochan/nochan/gateway"
	"github.com/nochan-bot/nochan/nochan/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "nochan:", err)
		os.Exit(1)
	}
}

func run() error {
	// Usage: nochan [config_path]
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	logger.Info().Str("config", configPath).Msg("nochan starting up")

	// Console log level follows config file edits without a restart
	config.OnReload(func(updated *config.Config) {
		logging.SetConsoleLevel(updated.Logging.Level)
		logger.Info().Str("level", updated.Logging.Level).Msg("Console log level reloaded")
	})

	workDir, err := expandHome(cfg.Agent.WorkDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create agent work directory %s: %w", workDir, err)
	}
	logger.Info().Str("work_dir", workDir).Msg("Agent work directory ready")

	database, err := db.Connect(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()
	logger.Info().Str("db", cfg.Database.Path).Msg("Database ready")

	store := conversation.NewStore(database, logger)

	client := agent.NewClient(cfg.Agent.Command, workDir, cfg.Agent.MaxConcurrent, logger)
	logger.Info().Int("max_concurrent", cfg.Agent.MaxConcurrent).Msg("Agent backend ready")

	// The gateway needs the orchestrator and the orchestrator needs the
	// gateway's reply sink; the forward declaration breaks the tie.
	var server *gateway.Server
	orchestrator := dispatch.NewOrchestrator(store, client,
		func(ctx context.Context, msg ports.Message, text string) error {
			return server.Reply(ctx, msg, text)
		}, logger)
	server = gateway.NewServer(cfg.Server.Host, cfg.Server.Port, orchestrator, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = server.Run(ctx)
	logger.Info().Msg("nochan shut down")
	return err
}

// expandHome resolves a leading ~ to the current user's home directory.
func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

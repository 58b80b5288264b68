// Command mcprepl-server runs a worker in a project directory: it binds the
// project's well-known socket, writes the pid marker next to it, and serves
// registered tools until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcprepl/mcprepl/internal/config"
	"github.com/mcprepl/mcprepl/internal/discover"
	"github.com/mcprepl/mcprepl/internal/logger"
	"github.com/mcprepl/mcprepl/internal/mcp"
	"github.com/mcprepl/mcprepl/internal/server"
	"github.com/mcprepl/mcprepl/internal/tools"
	"github.com/mcprepl/mcprepl/pkg/version"
)

var (
	flagDir       string
	flagLogLevel  string
	flagLogFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "mcprepl-server",
		Short:   "Per-project REPL worker serving tools over a unix socket",
		Version: version.Version,
		RunE:    run,
	}

	rootCmd.Flags().StringVar(&flagDir, "dir", ".", "project directory to serve")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&flagLogFormat, "log-format", "", "log format: text or json")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	logCfg.Format = cfg.LogFormat
	logger.Init(logCfg)

	dir, err := filepath.Abs(flagDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	pidFile := discover.NewPIDFile(filepath.Join(dir, cfg.PIDName))
	if pidFile.IsProcessAlive() {
		fmt.Println("Worker already running in", dir)
		return nil
	}

	if err := pidFile.Write(); err != nil {
		return fmt.Errorf("write pid marker: %w", err)
	}
	defer pidFile.Remove()

	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewHealthTool()); err != nil {
		return err
	}

	srv := server.New(registry, filepath.Join(dir, cfg.SocketName), mcp.ServerInfo{
		Name:    "mcp-repl-server",
		Version: version.Version,
	})
	srv.SetMaxClients(cfg.MaxClients)
	if err := srv.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	return srv.Stop()
}

// Command mcprepl is the relay: an MCP server that forwards tool calls to
// per-project REPL workers discovered through their unix sockets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcprepl/mcprepl/internal/config"
	"github.com/mcprepl/mcprepl/internal/discover"
	"github.com/mcprepl/mcprepl/internal/logger"
	"github.com/mcprepl/mcprepl/internal/mcp"
	"github.com/mcprepl/mcprepl/internal/relay"
	"github.com/mcprepl/mcprepl/internal/tools"
	"github.com/mcprepl/mcprepl/internal/transport"
	"github.com/mcprepl/mcprepl/pkg/version"
)

var (
	flagTransport string
	flagPort      int
	flagLogLevel  string
	flagLogFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "mcprepl",
		Short:   "MCP relay for per-project REPL workers",
		Version: version.Version,
		RunE:    run,
	}

	rootCmd.Flags().StringVar(&flagTransport, "transport", "stdio", "transport mode: stdio or http")
	rootCmd.Flags().IntVar(&flagPort, "port", 0, "port for http mode (defaults to config)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&flagLogFormat, "log-format", "", "log format: text or json")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if flagPort != 0 {
		cfg.HTTPPort = flagPort
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	logCfg.Format = cfg.LogFormat
	logger.Init(logCfg)

	cache := discover.NewCache(cfg.SocketName, cfg.DiscoveryTTL)
	fwd := relay.NewForwarder(cache, cfg.PIDName, cfg.SocketTimeout)

	registry := tools.NewRegistry()
	for _, tool := range relay.GetTools(fwd) {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("register %s: %w", tool.Name(), err)
		}
	}

	handler := mcp.NewHandler(registry, mcp.ServerInfo{
		Name:    "mcp-repl-relay",
		Version: version.Version,
	})

	switch flagTransport {
	case "stdio":
		return transport.NewStdio(handler).Run(os.Stdin, os.Stdout)
	case "http":
		return runHTTP(handler, cfg.HTTPPort)
	default:
		return fmt.Errorf("unknown transport: %s (want stdio or http)", flagTransport)
	}
}

func runHTTP(handler *mcp.Handler, port int) error {
	srv := transport.NewHTTP(handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(port)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

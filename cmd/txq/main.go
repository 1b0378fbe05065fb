package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/txq/internal/cmd/client"
	serverrun "github.com/rzbill/txq/internal/cmd/server"
	cfgpkg "github.com/rzbill/txq/internal/config"
	pebblestore "github.com/rzbill/txq/internal/storage/pebble"
	logpkg "github.com/rzbill/txq/pkg/log"
)

func main() {
	// Respect TXQ_LOG_LEVEL for both CLI and server start output
	level := os.Getenv("TXQ_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)
	gin.SetMode(gin.ReleaseMode)

	rootCmd := clientcmd.NewRoot()
	rootCmd.Short = "txq reliable transaction-delivery pipeline"
	rootCmd.Long = "txq stores transactions in priority lanes and delivers them downstream behind a circuit breaker, with retries and a dead-letter lane."

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start txq server (workers, gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			httpAddr, _ := cmd.Flags().GetString("http")
			configPath, _ := cmd.Flags().GetString("config")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			noWorkers, _ := cmd.Flags().GetBool("no-workers")

			mode, err := pebblestore.ParseFsyncMode(fsyncMode)
			if err != nil {
				return err
			}

			cfg := cfgpkg.Default()
			if configPath != "" {
				loaded, err := cfgpkg.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			cfgpkg.FromEnv(&cfg)
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:        dataDir,
				GRPCAddr:       grpcAddr,
				HTTPAddr:       httpAddr,
				Fsync:          mode,
				Config:         cfg,
				DisableWorkers: noWorkers,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("data-dir", os.Getenv("TXQ_DATA_DIR"), "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("config", os.Getenv("TXQ_CONFIG"), "Config file (.json, .yaml or .yml)")
	serverStartCmd.Flags().String("grpc", ":50051", "gRPC listen address")
	serverStartCmd.Flags().String("http", ":8080", "HTTP listen address")
	serverStartCmd.Flags().String("fsync", "always", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error (overrides config)")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json (overrides config)")
	serverStartCmd.Flags().Bool("no-workers", false, "Do not start lane workers; drain lanes through the process API only")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

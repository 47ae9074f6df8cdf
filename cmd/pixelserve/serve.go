package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pixelserve/config"
	"github.com/jpalmerr/pixelserve/internal/logging"
	"github.com/jpalmerr/pixelserve/internal/watch"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	reloadDebounce  = 250 * time.Millisecond
)

// serveCmd starts the file server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a directory over HTTP",
	Long: `Serve a directory over HTTP for a pixel display.

The server will:
  - Load settings from the given YAML file (defaults if it does not exist)
  - Apply PIXELSERVE_* environment overrides, then command line flags
  - Start serving the configured directory
  - Restart when the settings file changes

With --idle the server only starts when auto_start is set in the settings.

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  pixelserve serve -c pixelserve.yaml
  pixelserve serve --dir ./gifs --port 8000 --bind 0.0.0.0`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to settings file")
	serveCmd.Flags().String("dir", "", "directory to serve (overrides settings)")
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides settings)")
	serveCmd.Flags().String("bind", "", "address to bind (overrides settings)")
	serveCmd.Flags().Bool("idle", false, "start only if auto_start is set")
}

// flagOverrides collects the flags the user actually set.
func flagOverrides(cmd *cobra.Command) overrides {
	var o overrides
	flags := cmd.Flags()
	if flags.Changed("dir") {
		v, _ := flags.GetString("dir")
		o.dir = &v
	}
	if flags.Changed("port") {
		v, _ := flags.GetInt("port")
		o.port = &v
	}
	if flags.Changed("bind") {
		v, _ := flags.GetString("bind")
		o.bind = &v
	}
	return o
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	idle, _ := cmd.Flags().GetBool("idle")
	o := flagOverrides(cmd)

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := o.apply(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Info("config loaded",
		"path", configFile,
		"directory", cfg.Server.Directory,
		"port", cfg.Server.Port,
		"bind_address", cfg.Server.BindAddress,
	)

	h, err := newHost(cfg, o, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !idle || cfg.Server.AutoStart {
		if err := h.start(); err != nil {
			h.shutdown()
			return fmt.Errorf("server error: %w", err)
		}
	} else {
		logger.Info("server idle, waiting for auto_start")
	}

	if configFile != "" {
		w, err := watch.New(configFile, reloadDebounce, logger)
		if err != nil {
			logger.Warn("settings file will not be watched", "error", err)
		} else {
			go func() {
				_ = w.Run(ctx, func() { h.reload(configFile) })
			}()
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	// wait for graceful shutdown with timeout
	done := make(chan struct{})
	go func() {
		h.shutdown()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out",
			"timeout", shutdownTimeout.String(),
			"action", "forcing exit",
		)
	}
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/jpalmerr/pixelserve/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a settings file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a settings file",
	Long: `Validate a pixelserve settings file without starting the server.

This command parses the YAML, expands environment variables, applies
PIXELSERVE_* overrides, and validates all fields. It also reports whether
the configured directory exists.

Exit codes:
  0 - Settings are valid
  1 - Settings are invalid (error details printed to stderr)

Example:
  pixelserve validate -c pixelserve.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to settings file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	// Load treats a missing file as defaults; validate must not
	if _, err := os.Stat(configFile); err != nil {
		return fmt.Errorf("invalid config: failed to read config file: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	s := cfg.Server
	rate := "off"
	if s.RateLimit.RequestsPerSecond > 0 {
		rate = fmt.Sprintf("%g/s (burst %d)", s.RateLimit.RequestsPerSecond, s.RateLimit.Burst)
	}
	dirStatus := "ok"
	if info, err := os.Stat(s.Directory); err != nil {
		dirStatus = "missing"
	} else if !info.IsDir() {
		dirStatus = "not a directory"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Directory:     %s (%s)\n", s.Directory, dirStatus)
	fmt.Fprintf(out, "  Address:       %s:%d\n", s.BindAddress, s.Port)
	fmt.Fprintf(out, "  Auto start:    %t\n", s.AutoStart)
	fmt.Fprintf(out, "  Timeouts:      start %s, stop %s\n", s.StartupTimeout.Duration(), s.StopTimeout.Duration())
	fmt.Fprintf(out, "  Rate limit:    %s\n", rate)
	fmt.Fprintf(out, "  Logging:       %s/%s\n", cfg.Logging.Level, cfg.Logging.Format)

	return nil
}

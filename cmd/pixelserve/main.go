// Package main is the entry point for the pixelserve CLI.
//
// pixelserve can be embedded as a library (the GUI tray host does this) or
// run as a standalone binary with YAML settings. This CLI provides the
// standalone binary approach.
//
// Usage:
//
//	pixelserve serve -c pixelserve.yaml    # Serve the configured directory
//	pixelserve serve --dir ./gifs --port 8000
//	pixelserve validate -c pixelserve.yaml # Validate settings
//	pixelserve version                     # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "pixelserve",
	Short: "Serve a folder of GIFs to a pixel display",
	Long: `pixelserve serves one local directory over HTTP so a networked pixel
display can fetch GIFs from it.

Requests are confined to the directory: paths that resolve outside it,
including through symbolic links, are redirected to "/".

Quick start:
  1. Create a settings file (pixelserve.yaml)
  2. Run: pixelserve serve -c pixelserve.yaml
  3. Point the display at the printed URL

Example settings:
  server:
    directory: ${HOME}/gifs
    port: 8000
    bind_address: 0.0.0.0`,
	SilenceUsage: true,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this pixelserve binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pixelserve %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

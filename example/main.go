// Command example runs pixelserve the way a tray host does: commands are
// fire-and-forget and results arrive as callbacks.
//
// It serves a generated demo folder and starts a mock display that keeps
// fetching a GIF from it (see mock_display.go).
//
//	go run ./example
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jpalmerr/pixelserve"
)

// demoGIF is a 1x1 transparent GIF.
var demoGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0xff,
	0xff, 0xff, 0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00,
	0x3b,
}

func main() {
	dir, err := os.MkdirTemp("", "pixelserve-demo-")
	if err != nil {
		slog.Error("failed to create demo folder", "error", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	for _, name := range []string{"heart.gif", "smile.gif"} {
		if err := os.WriteFile(filepath.Join(dir, name), demoGIF, 0o644); err != nil {
			slog.Error("failed to write demo gif", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the host's "event loop": callbacks post here instead of touching UI state
	urls := make(chan string, 1)

	sup, err := pixelserve.New(
		pixelserve.WithStartedCallback(func(url string) { urls <- url }),
		pixelserve.WithStoppedCallback(func() { fmt.Println("  server stopped") }),
		pixelserve.WithErrorCallback(func(msg string) {
			slog.Error("server error", "message", msg)
			stop()
		}),
	)
	if err != nil {
		slog.Error("failed to create supervisor", "error", err)
		os.Exit(1)
	}
	defer sup.Shutdown()

	sup.StartServer(dir, 8000)

	select {
	case url := <-urls:
		fmt.Println()
		fmt.Println("  pixelserve demo")
		fmt.Println()
		fmt.Printf("  Serving %s\n", dir)
		fmt.Printf("  Open %s/ in your browser\n", url)
		fmt.Println()
		fmt.Println("  Press Ctrl+C to stop")
		fmt.Println()

		go RunMockDisplay(ctx, url+"/heart.gif")
	case <-ctx.Done():
	}

	<-ctx.Done()
	sup.StopServer()
}

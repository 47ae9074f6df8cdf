// Standalone mock display for testing the CLI.
//
// Usage:
//
//	go run ./cmd/pixelserve serve --dir ./gifs --port 8000
//
// Then in another terminal:
//
//	go run ./example/cmd/mockdisplay http://localhost:8000/cat.gif
//
// The mock display fetches the GIF every few seconds and reports what the
// server answered, including redirects for paths outside the served folder.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: mockdisplay <gif-url>")
		os.Exit(2)
	}
	url := os.Args[1]

	fmt.Printf("Mock display fetching %s every 3s\n", url)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{
		Timeout: 10 * time.Second,
		// report redirects instead of following them
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		fetch(ctx, client, url)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func fetch(ctx context.Context, client *http.Client, url string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Error("bad url", "url", url, "error", err)
		os.Exit(2)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("fetch failed", "error", err)
		}
		return
	}
	defer resp.Body.Close()

	n, _ := io.Copy(io.Discard, resp.Body)
	slog.Info("fetched",
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"location", resp.Header.Get("Location"),
		"bytes", n,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// fetchInterval is how often the mock display pulls its GIF.
const fetchInterval = 5 * time.Second

// maxGIFSize bounds a single download.
const maxGIFSize = 1 << 20

// RunMockDisplay fetches url every few seconds like a networked pixel
// display polling for its next animation, until ctx is cancelled.
func RunMockDisplay(ctx context.Context, url string) {
	client := &http.Client{Timeout: 10 * time.Second}
	ticker := time.NewTicker(fetchInterval)
	defer ticker.Stop()

	for {
		n, status, err := fetchGIF(ctx, client, url)
		switch {
		case err != nil:
			slog.Warn("display fetch failed", "url", url, "error", err)
		default:
			slog.Info("display fetched gif", "url", url, "status", status, "bytes", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func fetchGIF(ctx context.Context, client *http.Client, url string) (int64, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxGIFSize))
	if err != nil {
		return n, resp.StatusCode, fmt.Errorf("failed to read body: %w", err)
	}
	return n, resp.StatusCode, nil
}

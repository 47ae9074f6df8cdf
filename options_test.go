package pixelserve

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	sup, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if sup.bindAddress != "127.0.0.1" {
		t.Errorf("bindAddress = %q, want 127.0.0.1", sup.bindAddress)
	}
	if sup.startupTimeout != 10*time.Second {
		t.Errorf("startupTimeout = %v, want 10s", sup.startupTimeout)
	}
	if sup.stopTimeout != 5*time.Second {
		t.Errorf("stopTimeout = %v, want 5s", sup.stopTimeout)
	}
	if len(sup.handlerOpts) != 0 {
		t.Errorf("len(handlerOpts) = %d, want 0 (rate limiting off)", len(sup.handlerOpts))
	}
	if sup.logger != slog.Default() {
		t.Error("logger should default to slog.Default()")
	}
	if sup.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", sup.State())
	}
	if sup.URL() != "" {
		t.Errorf("URL() = %q, want empty", sup.URL())
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr string
	}{
		{"empty bind address", WithBindAddress(""), "bind address cannot be empty"},
		{"zero startup timeout", WithStartupTimeout(0), "startup timeout must be positive"},
		{"negative startup timeout", WithStartupTimeout(-time.Second), "startup timeout must be positive"},
		{"zero stop timeout", WithStopTimeout(0), "stop timeout must be positive"},
		{"negative rate limit", WithRateLimit(-1, 10), "rate limit cannot be negative"},
		{"zero burst", WithRateLimit(5, 0), "burst must be at least 1"},
		{"nil logger", WithLogger(nil), "logger cannot be nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			if err == nil {
				t.Fatal("New() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_ValidOptions(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sup, err := New(
		WithBindAddress("0.0.0.0"),
		WithStartupTimeout(2*time.Second),
		WithStopTimeout(3*time.Second),
		WithRateLimit(20, 40),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if sup.bindAddress != "0.0.0.0" {
		t.Errorf("bindAddress = %q, want 0.0.0.0", sup.bindAddress)
	}
	if sup.startupTimeout != 2*time.Second {
		t.Errorf("startupTimeout = %v, want 2s", sup.startupTimeout)
	}
	if sup.stopTimeout != 3*time.Second {
		t.Errorf("stopTimeout = %v, want 3s", sup.stopTimeout)
	}
	if len(sup.handlerOpts) != 1 {
		t.Errorf("len(handlerOpts) = %d, want 1", len(sup.handlerOpts))
	}
	if sup.logger != logger {
		t.Error("logger was not applied")
	}
}

func TestWithRateLimit_ZeroDisables(t *testing.T) {
	sup, err := New(WithRateLimit(0, 0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(sup.handlerOpts) != 0 {
		t.Errorf("len(handlerOpts) = %d, want 0", len(sup.handlerOpts))
	}
}

func TestWithNotifier_NilIgnored(t *testing.T) {
	sup, err := New(
		WithNotifier(nil),
		WithStartedCallback(nil),
		WithStoppedCallback(nil),
		WithErrorCallback(nil),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(sup.notifiers) != 0 {
		t.Errorf("len(notifiers) = %d, want 0", len(sup.notifiers))
	}
}

func TestWithCallbacks_RegistrationOrder(t *testing.T) {
	var order []string

	sup, err := New(
		WithStoppedCallback(func() { order = append(order, "first") }),
		WithNotifier(NotifierFuncs{Stopped: func() { order = append(order, "second") }}),
		WithStoppedCallback(func() { order = append(order, "third") }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, n := range sup.notifiers {
		n.OnStopped()
		n.OnStarted("http://localhost:8000")
		n.OnError("ignored")
	}

	want := []string{"first", "second", "third"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestInvokeNotifierSafe_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	invokeNotifierSafe(logger, "started", func() { panic("test panic") })

	out := buf.String()
	if !strings.Contains(out, "notifier panicked") {
		t.Error("expected log to contain 'notifier panicked'")
	}
	if !strings.Contains(out, "notification=started") {
		t.Errorf("expected log to contain notification kind, got %q", out)
	}
}

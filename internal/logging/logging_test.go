package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoggerContextRoundTrip(t *testing.T) {
	t.Parallel()

	log := slog.Default().With(slog.String(KeyDocumentID, "jlg-1055-service"))
	ctx := WithLogger(context.Background(), log)

	if got := FromContext(ctx); got != log {
		t.Errorf("FromContext() returned a different logger than stored")
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	t.Parallel()

	if got := FromContext(context.Background()); got != slog.Default() {
		t.Errorf("FromContext(empty) = %v, want slog.Default()", got)
	}
}

func TestNewHonorsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "text")

	log := New()
	if log.Enabled(context.Background(), slog.LevelInfo) {
		t.Errorf("info enabled with LOG_LEVEL=warn")
	}
	if !log.Enabled(context.Background(), slog.LevelWarn) {
		t.Errorf("warn disabled with LOG_LEVEL=warn")
	}
}

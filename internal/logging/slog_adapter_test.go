// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogHandlerHandle(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	slogger := NewSlogLogger()
	slogger.Info("hello from slog", "service", "broadcast", "restarts", int64(3))

	output := buf.String()
	if !strings.Contains(output, "hello from slog") {
		t.Errorf("expected message in output, got: %s", output)
	}
	if !strings.Contains(output, `"service":"broadcast"`) {
		t.Errorf("expected string attr in output, got: %s", output)
	}
	if !strings.Contains(output, `"restarts":3`) {
		t.Errorf("expected int attr in output, got: %s", output)
	}
}

func TestSlogHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	slogger := NewSlogLogger().With("supervisor", "root")
	slogger.Warn("service restarting")

	output := buf.String()
	if !strings.Contains(output, `"supervisor":"root"`) {
		t.Errorf("expected pre-configured attr in output, got: %s", output)
	}
	if !strings.Contains(output, `"level":"warn"`) {
		t.Errorf("expected warn level in output, got: %s", output)
	}
}

func TestSlogHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	slogger := NewSlogLogger().WithGroup("tree")
	slogger.Info("group attrs", "depth", int64(2))

	if !strings.Contains(buf.String(), `"tree.depth":2`) {
		t.Errorf("expected grouped key in output, got: %s", buf.String())
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	handler := &SlogHandler{logger: zerolog.New(nil).Level(zerolog.WarnLevel)}

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	tests := []struct {
		input    slog.Level
		expected zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if got := slogToZerologLevel(tt.input); got != tt.expected {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

package core

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func captureStdLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})
	return &buf
}

func TestDefaultLogger_Format(t *testing.T) {
	buf := captureStdLog(t)
	logger := NewDefaultLogger()

	logger.Info("job system started", F("name", "sys"), F("workers", 4))

	got := strings.TrimSpace(buf.String())
	want := "[INFO] job system started {name: sys, workers: 4}"
	if got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestDefaultLogger_MinimumLevel(t *testing.T) {
	buf := captureStdLog(t)

	NewDefaultLogger().Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug logged at info level: %q", buf.String())
	}

	NewDefaultLoggerLevel(LevelError).Warn("hidden too")
	if buf.Len() != 0 {
		t.Errorf("warn logged at error level: %q", buf.String())
	}

	NewDefaultLoggerLevel(LevelDebug).Debug("shown")
	if !strings.Contains(buf.String(), "[DEBUG] shown") {
		t.Errorf("debug line missing: %q", buf.String())
	}
}

func TestNoOpLogger(t *testing.T) {
	var logger Logger = NewNoOpLogger()
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x", F("k", 1))
}

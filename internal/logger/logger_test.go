package logger

import (
	"strings"
	"testing"

	"sorter/internal/config"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := NewLogger(&config.Config{LogDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestLogger_TailReturnsMostRecentLines(t *testing.T) {
	l := newTestLogger(t)

	for i := 0; i < 5; i++ {
		l.Info("entry %d", i)
	}

	lines, err := l.Tail(LevelInfo, 2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], "entry 3") || !strings.HasSuffix(lines[1], "entry 4") {
		t.Errorf("unexpected tail: %q", lines)
	}
}

func TestLogger_LevelsAreSeparated(t *testing.T) {
	l := newTestLogger(t)

	l.Warning("careful")
	l.Error("broken")

	info, err := l.Tail(LevelInfo, 10)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(info) != 0 {
		t.Errorf("expected empty info log, got %q", info)
	}

	errs, err := l.Tail(LevelError, 10)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(errs) != 1 || !strings.Contains(errs[0], "broken") {
		t.Errorf("unexpected error log: %q", errs)
	}
}

func TestLogger_Clean(t *testing.T) {
	l := newTestLogger(t)
	l.Info("to be removed")

	if err := l.Clean(LevelInfo); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	lines, err := l.Tail(LevelInfo, 10)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected empty log after Clean, got %q", lines)
	}
}

func TestLogger_UnknownLevel(t *testing.T) {
	l := newTestLogger(t)

	if _, err := l.Tail("debug", 10); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := l.Clean("debug"); err == nil {
		t.Error("expected error for unknown level")
	}
}

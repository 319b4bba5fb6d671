package logger

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"sorter/internal/config"
)

// Level names double as log file names: info.log, warning.log, error.log.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Logger provides leveled logging to per-level files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      map[string]*os.File
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger writing under cfg.LogDirectory.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		logDir: cfg.LogDirectory,
		files:  make(map[string]*os.File),
	}
	if err := l.setupLoggers(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

func (l *Logger) setupLoggers() error {
	for _, level := range []string{LevelInfo, LevelWarning, LevelError} {
		file, err := os.OpenFile(l.path(level), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", l.path(level), err)
		}
		l.files[level] = file
	}

	l.infoLog = log.New(io.MultiWriter(os.Stdout, l.files[LevelInfo]), "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(io.MultiWriter(os.Stdout, l.files[LevelWarning]), "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(io.MultiWriter(os.Stderr, l.files[LevelError]), "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
	return nil
}

func (l *Logger) path(level string) string {
	return filepath.Join(l.logDir, level+".log")
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// Tail returns up to limit of the most recent lines of a level's log file.
func (l *Logger) Tail(level string, limit int) ([]string, error) {
	if _, ok := l.files[level]; !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	file, err := os.Open(l.path(level))
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	lines := make([]string, 0, limit)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if limit > 0 && len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return lines, nil
}

// Clean truncates a level's log file.
func (l *Logger) Clean(level string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, ok := l.files[level]
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate log file: %w", err)
	}
	return nil
}

// Close releases the log files.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, file := range l.files {
		file.Close()
	}
}

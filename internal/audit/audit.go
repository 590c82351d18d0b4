// Package audit writes one JSON line per console command and session event.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	Session   string                 `json:"session"`
	Remote    string                 `json:"remote,omitempty"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Code      string                 `json:"code"`
	LatencyMs float64                `json:"latencyMs"`
}

// Config controls the audit file and its rotation.
type Config struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger appends entries to a size-rotated JSONL file.
type Logger struct {
	mu     sync.Mutex
	path   string
	out    *lumberjack.Logger
	logger *zap.Logger
}

// NewLogger opens the audit log described by cfg.
func NewLogger(cfg Config, logger *zap.Logger) (*Logger, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("audit file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Logger{
		path: cfg.File,
		out: &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		},
		logger: logger.Named("audit"),
	}, nil
}

// LogCommand records a dispatched command and its outcome code.
func (l *Logger) LogCommand(ctx context.Context, function string, params map[string]interface{}, code string, latency time.Duration) {
	l.write(Entry{
		Timestamp: time.Now().UTC(),
		Session:   SessionFrom(ctx),
		Remote:    remoteFrom(ctx),
		Action:    function,
		Params:    params,
		Code:      code,
		LatencyMs: float64(latency) / float64(time.Millisecond),
	})
}

// LogSession records a connection lifecycle event such as "connect".
func (l *Logger) LogSession(ctx context.Context, event string) {
	l.write(Entry{
		Timestamp: time.Now().UTC(),
		Session:   SessionFrom(ctx),
		Remote:    remoteFrom(ctx),
		Action:    event,
		Code:      "SUCCESS",
	})
}

func (l *Logger) write(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("failed to marshal audit entry", zap.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		l.logger.Error("failed to write audit entry", zap.String("path", l.path), zap.Error(err))
	}
}

// Rotate closes the current file and starts a new one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Rotate()
}

// Path returns the audit file path.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the audit file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

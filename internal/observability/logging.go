// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// SetLogger replaces the logger used by repository loggers. Passing the
// context-aware request logger adds request ids to every line.
func SetLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = &Logger{Logger: l}
	}
}

// RepoLogger provides structured logging for repository writes.
type RepoLogger struct {
	tableName string
	enabled   bool
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName, enabled: true}
}

func (l *RepoLogger) log(ctx context.Context, operation string, attrs []slog.Attr) {
	if !l.enabled {
		return
	}
	base := []slog.Attr{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
	}
	GlobalLogger.LogAttrs(ctx, slog.LevelInfo, "repository "+operation, append(base, attrs...)...)
}

// LogCreate logs a repository create operation.
func (l *RepoLogger) LogCreate(ctx context.Context, attrs ...slog.Attr) {
	l.log(ctx, "create", attrs)
}

// LogUpdate logs a repository update operation.
func (l *RepoLogger) LogUpdate(ctx context.Context, attrs ...slog.Attr) {
	l.log(ctx, "update", attrs)
}

// LogDelete logs a repository delete operation.
func (l *RepoLogger) LogDelete(ctx context.Context, attrs ...slog.Attr) {
	l.log(ctx, "delete", attrs)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	if !l.enabled {
		return
	}
	GlobalLogger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

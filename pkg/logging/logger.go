package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LevelTrace LogLevel = iota - 5
	LevelDebug LogLevel = LogLevel(slog.LevelDebug)
	LevelInfo  LogLevel = LogLevel(slog.LevelInfo)
	LevelWarn  LogLevel = LogLevel(slog.LevelWarn)
	LevelError LogLevel = LogLevel(slog.LevelError)
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level       LogLevel
	Format      string // "json" or "text"
	Output      string // "stdout", "stderr", or a file path
	EnableAsync bool
	Writer      io.Writer // overrides Output when set (tests)
}

// DefaultLogConfig returns the configuration used by the CLI.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  LevelInfo,
		Format: "json",
		Output: "stderr",
	}
}

// ParseLevel maps LOG_LEVEL values onto LogLevel. Unknown values mean info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides structured logging with run/venue context support.
// Child loggers from With share the underlying sink.
type Logger struct {
	*sink
	fields []Field
}

type sink struct {
	config  LogConfig
	slogger *slog.Logger
	file    *os.File
	asyncCh chan entry
	wg      sync.WaitGroup
	once    sync.Once
}

type entry struct {
	ctx   context.Context
	level LogLevel
	msg   string
	attrs []slog.Attr
}

type ctxKey string

const (
	runIDKey   ctxKey = "run_id"
	venueIDKey ctxKey = "venue_id"
)

// WithRunID stores the batch run id on ctx for log correlation.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithVenueID stores the venue being processed on ctx.
func WithVenueID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, venueIDKey, id)
}

// RunID returns the run id stored by WithRunID, or "".
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// NewLogger creates a new structured logger
func NewLogger(config LogConfig) (*Logger, error) {
	l := &Logger{sink: &sink{config: config}}

	writer := config.Writer
	if writer == nil {
		switch config.Output {
		case "", "stderr":
			writer = os.Stderr
		case "stdout":
			writer = os.Stdout
		default:
			if err := os.MkdirAll(filepath.Dir(config.Output), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
			f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file: %w", err)
			}
			l.file = f
			writer = f
		}
	}

	opts := &slog.HandlerOptions{Level: slog.Level(config.Level)}
	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	l.slogger = slog.New(handler)

	if config.EnableAsync {
		l.asyncCh = make(chan entry, 1000)
		l.wg.Add(1)
		go l.asyncWorker()
	}
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l, _ := NewLogger(LogConfig{Level: LevelError + 4, Writer: io.Discard})
	return l
}

func (l *Logger) asyncWorker() {
	defer l.wg.Done()
	for e := range l.asyncCh {
		l.slogger.LogAttrs(e.ctx, slog.Level(e.level), e.msg, e.attrs...)
	}
}

// Close flushes async entries and closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		if l.asyncCh != nil {
			close(l.asyncCh)
			l.wg.Wait()
		}
	})
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// With returns a child logger that always carries fields.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{sink: l.sink, fields: append(append([]Field{}, l.fields...), fields...)}
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(component string) *ComponentLogger {
	return &ComponentLogger{logger: l, component: component}
}

// WithContext returns a logger that pulls run/venue ids from ctx.
func (l *Logger) WithContext(ctx context.Context) *ContextLogger {
	return &ContextLogger{logger: l, ctx: ctx}
}

func (l *Logger) Trace(msg string, fields ...Field) { l.log(context.Background(), LevelTrace, msg, nil, fields) }
func (l *Logger) Debug(msg string, fields ...Field) { l.log(context.Background(), LevelDebug, msg, nil, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(context.Background(), LevelInfo, msg, nil, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(context.Background(), LevelWarn, msg, nil, fields) }

// Error logs at error level with err attached under "error".
func (l *Logger) Error(msg string, err error, fields ...Field) {
	l.log(context.Background(), LevelError, msg, err, fields)
}

// ComponentLogger provides component-specific logging
type ComponentLogger struct {
	logger    *Logger
	component string
}

func (cl *ComponentLogger) Debug(msg string, fields ...Field) {
	cl.logger.log(context.Background(), LevelDebug, msg, nil, cl.tag(fields))
}

func (cl *ComponentLogger) Info(msg string, fields ...Field) {
	cl.logger.log(context.Background(), LevelInfo, msg, nil, cl.tag(fields))
}

func (cl *ComponentLogger) Warn(msg string, fields ...Field) {
	cl.logger.log(context.Background(), LevelWarn, msg, nil, cl.tag(fields))
}

func (cl *ComponentLogger) Error(msg string, err error, fields ...Field) {
	cl.logger.log(context.Background(), LevelError, msg, err, cl.tag(fields))
}

func (cl *ComponentLogger) tag(fields []Field) []Field {
	return append(fields, String("component", cl.component))
}

// ContextLogger provides context-aware logging
type ContextLogger struct {
	logger *Logger
	ctx    context.Context
}

func (cl *ContextLogger) Debug(msg string, fields ...Field) {
	cl.logger.log(cl.ctx, LevelDebug, msg, nil, fields)
}

func (cl *ContextLogger) Info(msg string, fields ...Field) {
	cl.logger.log(cl.ctx, LevelInfo, msg, nil, fields)
}

func (cl *ContextLogger) Warn(msg string, fields ...Field) {
	cl.logger.log(cl.ctx, LevelWarn, msg, nil, fields)
}

func (cl *ContextLogger) Error(msg string, err error, fields ...Field) {
	cl.logger.log(cl.ctx, LevelError, msg, err, fields)
}

func (l *Logger) log(ctx context.Context, level LogLevel, msg string, err error, fields []Field) {
	if l == nil || level < l.config.Level {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	attrs := make([]slog.Attr, 0, len(l.fields)+len(fields)+4)
	if id := RunID(ctx); id != "" {
		attrs = append(attrs, slog.String("run_id", id))
	}
	if id, ok := ctx.Value(venueIDKey).(int64); ok {
		attrs = append(attrs, slog.Int64("venue_id", id))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if level >= LevelWarn {
		if _, file, line, ok := runtime.Caller(3); ok {
			attrs = append(attrs, slog.String("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line)))
		}
	}
	for _, f := range l.fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}

	if l.asyncCh != nil {
		select {
		case l.asyncCh <- entry{ctx: ctx, level: level, msg: msg, attrs: attrs}:
			return
		default:
			// buffer full; fall through to a synchronous write
		}
	}
	l.slogger.LogAttrs(ctx, slog.Level(level), msg, attrs...)
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field            { return Field{Key: key, Value: value} }
func Int(key string, value int) Field           { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field       { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field   { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field         { return Field{Key: key, Value: value} }
func Duration(key string, v time.Duration) Field { return Field{Key: key, Value: v.String()} }
func Any(key string, value any) Field           { return Field{Key: key, Value: value} }

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

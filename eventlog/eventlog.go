// Package eventlog provides the append-only structured run log.
//
// Every stage emits at minimum a start and an end event per invocation into
// <run_dir>/logs.jsonl. Log writes are best effort: a logging failure must
// never abort the run, so open and write errors degrade to a no-op logger
// rather than propagating.
package eventlog

import (
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger appends JSON-lines event records to a run log.
type Logger struct {
	zap  *zap.Logger
	file *os.File
}

// Open creates a logger appending to the log file at path. On any failure a
// no-op logger is returned.
func Open(path string) *Logger {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &Logger{zap: zap.NewNop()}
	}
	return &Logger{zap: newEventLogger(swallowErrors{f}), file: f}
}

// Nop returns a logger that discards all events.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// NewWithSink creates a logger writing to an arbitrary sink (for tests).
func NewWithSink(w zapcore.WriteSyncer) *Logger {
	return &Logger{zap: newEventLogger(w)}
}

func newEventLogger(w zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:    "ts_utc",
		MessageKey: "event",
		LevelKey:   zapcore.OmitKey,
		EncodeTime: zapcore.RFC3339NanoTimeEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		w,
		zapcore.InfoLevel,
	)
	return zap.New(core)
}

// Event appends one record with the given stage name, event type, and
// fields. Field keys are emitted in sorted order so records are stable.
// Safe on a nil receiver: before the run directory exists there is no log
// to write to, and events are simply dropped.
func (l *Logger) Event(stage, event string, fields map[string]any) {
	if l == nil || l.zap == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields)+1)
	zf = append(zf, zap.String("stage", stage))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	l.zap.Info(event, zf...)
}

// StageStart emits the start event for a stage invocation.
func (l *Logger) StageStart(stage string, fields map[string]any) {
	l.Event(stage, "start", fields)
}

// StageEnd emits the end event with the elapsed stage duration.
func (l *Logger) StageEnd(stage string, elapsed time.Duration, fields map[string]any) {
	merged := map[string]any{"duration_s": elapsed.Seconds()}
	for k, v := range fields {
		merged[k] = v
	}
	l.Event(stage, "end", merged)
}

// Info emits an intermediate info event with a message.
func (l *Logger) Info(stage, message string, fields map[string]any) {
	merged := map[string]any{"message": message}
	for k, v := range fields {
		merged[k] = v
	}
	l.Event(stage, "info", merged)
}

// Error emits an error event with a message. This records a problem in the
// log; it does not affect control flow.
func (l *Logger) Error(stage, message string, fields map[string]any) {
	merged := map[string]any{"message": message}
	for k, v := range fields {
		merged[k] = v
	}
	l.Event(stage, "error", merged)
}

// Close flushes and closes the underlying file, discarding errors.
func (l *Logger) Close() {
	if l == nil || l.zap == nil {
		return
	}
	_ = l.zap.Sync()
	if l.file != nil {
		_ = l.file.Close()
	}
}

// swallowErrors makes log writes best effort: write and sync errors are
// discarded so they can never escalate into a run failure.
type swallowErrors struct {
	f *os.File
}

func (s swallowErrors) Write(p []byte) (int, error) {
	_, _ = s.f.Write(p)
	return len(p), nil
}

func (s swallowErrors) Sync() error {
	_ = s.f.Sync()
	return nil
}

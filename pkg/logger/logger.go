package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/perarneng/gmail2s3/pkg/interfaces"
)

type Options struct {
	JSON  bool
	Debug bool
	// Output defaults to stderr; stdout is reserved for command results.
	Output io.Writer
}

// NewLogger returns the console logger, or a zap JSON logger when opts.JSON is set.
func NewLogger(opts Options) interfaces.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.JSON {
		return newZapLogger(out, opts.Debug)
	}
	return &ColorLogger{out: out, debug: opts.Debug}
}

type ColorLogger struct {
	out    io.Writer
	debug  bool
	fields map[string]string
}

func (l *ColorLogger) log(level, message string, colorFunc func(...interface{}) string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(l.out, "%s %s %s%s\n", timestamp, colorFunc(level), message, l.suffix())
}

func (l *ColorLogger) suffix() string {
	if len(l.fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, l.fields[k])
	}
	return b.String()
}

func (l *ColorLogger) Info(message string) {
	l.log("INFO", message, color.New(color.FgGreen).SprintFunc())
}

func (l *ColorLogger) Error(message string) {
	l.log("ERROR", message, color.New(color.FgRed).SprintFunc())
}

func (l *ColorLogger) Warn(message string) {
	l.log("WARN", message, color.New(color.FgYellow).SprintFunc())
}

func (l *ColorLogger) Debug(message string) {
	if !l.debug {
		return
	}
	l.log("DEBUG", message, color.New(color.FgCyan).SprintFunc())
}

func (l *ColorLogger) With(key, value string) interfaces.Logger {
	fields := make(map[string]string, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &ColorLogger{out: l.out, debug: l.debug, fields: fields}
}

type ZapLogger struct {
	l *zap.Logger
}

func newZapLogger(out io.Writer, debug bool) *ZapLogger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(out), level)
	return &ZapLogger{l: zap.New(core)}
}

func (z *ZapLogger) Info(message string)  { z.l.Info(message) }
func (z *ZapLogger) Error(message string) { z.l.Error(message) }
func (z *ZapLogger) Warn(message string)  { z.l.Warn(message) }
func (z *ZapLogger) Debug(message string) { z.l.Debug(message) }

func (z *ZapLogger) With(key, value string) interfaces.Logger {
	return &ZapLogger{l: z.l.With(zap.String(key, value))}
}

func (z *ZapLogger) Sync() error { return z.l.Sync() }

// Sync flushes l when it buffers entries. Nil and unbuffered loggers are a no-op.
func Sync(l interfaces.Logger) error {
	if s, ok := l.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Discard drops everything. Used by tests.
func Discard() interfaces.Logger {
	return &ColorLogger{out: io.Discard}
}

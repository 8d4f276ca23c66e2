// Package common provides the logger, logging configuration and request
// context helpers shared by every layer of the server.
package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// Logger wraps arbor.ILogger to provide a consistent interface
type Logger struct {
	arbor.ILogger
}

// discardWriter implements writers.IWriter and discards all output.
// Used by NewSilentLogger to prevent dispatch to globally-registered writers.
type discardWriter struct{}

func (w *discardWriter) Write(p []byte) (int, error)           { return len(p), nil }
func (w *discardWriter) WithLevel(_ log.Level) writers.IWriter { return w }
func (w *discardWriter) GetFilePath() string                   { return "" }
func (w *discardWriter) Close() error                          { return nil }

// writerAdapter renders arbor's JSON events on an io.Writer, either as
// text lines or, when raw is set, as one JSON object per line.
type writerAdapter struct {
	out   io.Writer
	level log.Level
	raw   bool
}

func (w *writerAdapter) Write(p []byte) (int, error) {
	var evt models.LogEvent
	if err := json.Unmarshal(p, &evt); err != nil {
		return w.out.Write(p)
	}
	if evt.Level < w.level {
		return len(p), nil
	}
	if w.raw {
		line := bytes.TrimRight(p, "\n")
		if _, err := w.out.Write(append(line, '\n')); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	var b strings.Builder
	b.WriteString(evt.Message)
	for k, v := range evt.Fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	if evt.Error != "" {
		fmt.Fprintf(&b, " error=%s", evt.Error)
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(w.out, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *writerAdapter) WithLevel(level log.Level) writers.IWriter {
	w.level = level
	return w
}

func (w *writerAdapter) GetFilePath() string { return "" }
func (w *writerAdapter) Close() error        { return nil }

const (
	logTimeFormat   = time.RFC3339
	defaultLogFile  = "logs/weather-server.log"
	defaultLogLevel = "info"
)

// NewLogger creates a console logger at the given level.
func NewLogger(level string) *Logger {
	return NewLoggerFromConfig(LoggingConfig{Level: level})
}

// NewLoggerFromConfig builds a logger from cfg. Outputs may name "console"
// (stderr, text or JSON per Format) and "file" (rotating). A memory writer
// is always attached.
func NewLoggerFromConfig(cfg LoggingConfig) *Logger {
	level := cfg.Level
	if level == "" {
		level = defaultLogLevel
	}
	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"console"}
	}

	l := arbor.NewLogger()
	for _, out := range outputs {
		switch out {
		case "console":
			if strings.EqualFold(cfg.Format, "json") {
				arbor.RegisterWriter(arbor.WRITER_CONSOLE, &writerAdapter{out: os.Stderr, level: log.TraceLevel, raw: true})
				continue
			}
			l = l.WithConsoleWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeConsole,
				Writer:     os.Stderr,
				TimeFormat: logTimeFormat,
			})
		case "file":
			l = l.WithFileWriter(fileWriterConfig(cfg))
		}
	}

	l = l.WithMemoryWriter(models.WriterConfiguration{
		Type: models.LogWriterTypeMemory,
	}).WithLevelFromString(level)

	return &Logger{ILogger: l}
}

func fileWriterConfig(cfg LoggingConfig) models.WriterConfiguration {
	wc := models.WriterConfiguration{
		Type:       models.LogWriterTypeFile,
		FileName:   cfg.FilePath,
		MaxSize:    int64(cfg.MaxSizeMB) << 20,
		MaxBackups: cfg.MaxBackups,
		TimeFormat: logTimeFormat,
	}
	if wc.FileName == "" {
		wc.FileName = defaultLogFile
	}
	if wc.MaxSize <= 0 {
		wc.MaxSize = 10 << 20
	}
	if wc.MaxBackups <= 0 {
		wc.MaxBackups = 5
	}
	return wc
}

// NewLoggerWithOutput creates a logger writing text lines to w. Used by
// tests that assert on log output.
func NewLoggerWithOutput(level string, w io.Writer) *Logger {
	arbor.RegisterWriter(arbor.WRITER_CONSOLE, &writerAdapter{out: w, level: log.TraceLevel})

	return &Logger{ILogger: arbor.NewLogger().
		WithMemoryWriter(models.WriterConfiguration{Type: models.LogWriterTypeMemory}).
		WithLevelFromString(level)}
}

// NewSilentLogger creates a logger that discards all output.
func NewSilentLogger() *Logger {
	arborLogger := arbor.NewLogger().WithWriters([]writers.IWriter{&discardWriter{}})
	return &Logger{ILogger: arborLogger}
}

// WithCorrelationId returns a new Logger with a correlation ID set.
func (l *Logger) WithCorrelationId(id string) *Logger {
	return &Logger{ILogger: l.ILogger.WithCorrelationId(id)}
}

// TransportLogger adapts Logger to the Infof/Errorf shape the MCP
// transport expects.
type TransportLogger struct {
	logger *Logger
}

// NewTransportLogger wraps logger for the MCP transport.
func NewTransportLogger(logger *Logger) *TransportLogger {
	return &TransportLogger{logger: logger}
}

func (t *TransportLogger) Infof(format string, v ...any) {
	t.logger.Debug().Str("component", "mcp-transport").Msgf(format, v...)
}

func (t *TransportLogger) Errorf(format string, v ...any) {
	t.logger.Error().Str("component", "mcp-transport").Msgf(format, v...)
}

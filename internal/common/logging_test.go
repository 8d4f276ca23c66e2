package common

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestNewLogger_ReturnsNonNil(t *testing.T) {
	logger := NewLogger("info")
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}
}

func TestNewLogger_FluentAPI(t *testing.T) {
	// Must not panic
	logger := NewLogger("error")
	logger.Info().Str("key", "value").Msg("test message")
	logger.Warn().Int("count", 42).Msg("warning")
	logger.Error().Err(nil).Msg("error message")
	logger.Debug().Float64("rate", 3.14).Bool("ok", true).Msg("debug")
}

func TestNewLoggerFromConfig_FileOutput(t *testing.T) {
	dir := t.TempDir()
	logger := NewLoggerFromConfig(LoggingConfig{
		Level:    "debug",
		Outputs:  []string{"file"},
		FilePath: dir + "/server.log",
	})
	if logger == nil {
		t.Fatal("NewLoggerFromConfig returned nil")
	}
	logger.Info().Msg("written to file")
}

func TestNewLoggerWithOutput_WritesToProvidedWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput("info", &buf)
	logger.Info().Str("key", "value").Msg("hello")

	if buf.String() == "" {
		t.Error("Expected output to provided writer, got empty string")
	}
}

func TestNewSilentLogger_DiscardsOutput(t *testing.T) {
	logger := NewSilentLogger()
	if logger == nil {
		t.Fatal("NewSilentLogger returned nil")
	}
	logger.Info().Str("key", "value").Msg("should be discarded")
	logger.Error().Err(nil).Msg("should be discarded")
}

func TestWithCorrelationId_ReturnsNewLogger(t *testing.T) {
	logger := NewSilentLogger()
	scoped := logger.WithCorrelationId("abc-123")
	if scoped == nil || scoped == logger {
		t.Fatal("expected a distinct logger")
	}
	scoped.Info().Msg("scoped")
}

func TestTransportLogger(t *testing.T) {
	tl := NewTransportLogger(NewSilentLogger())
	// Must not panic
	tl.Infof("session %s", "x")
	tl.Errorf("failed: %v", "boom")
}

func TestWriterAdapter_PassesThroughNonJSON(t *testing.T) {
	var buf bytes.Buffer
	w := &writerAdapter{out: &buf}

	if _, err := w.Write([]byte("plain text")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.String() != "plain text" {
		t.Errorf("expected passthrough, got %q", buf.String())
	}
}

func TestContext_CorrelationID(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationIDFromContext(ctx); got != "" {
		t.Errorf("expected empty correlation id, got %q", got)
	}
	ctx = WithCorrelationID(ctx, "req-1")
	if got := CorrelationIDFromContext(ctx); got != "req-1" {
		t.Errorf("expected req-1, got %q", got)
	}
}

func TestContext_RequestBody(t *testing.T) {
	ctx := context.Background()
	if _, ok := RequestBodyFromContext(ctx); ok {
		t.Error("expected no body in empty context")
	}

	body := json.RawMessage(`{"jsonrpc":"2.0"}`)
	ctx = WithRequestBody(ctx, body)
	got, ok := RequestBodyFromContext(ctx)
	if !ok || string(got) != string(body) {
		t.Errorf("expected stored body, got %q ok=%v", got, ok)
	}
}

func TestWriterAdapter_RawPassesJSONThrough(t *testing.T) {
	var buf bytes.Buffer
	w := &writerAdapter{out: &buf, raw: true}

	event := []byte(`{"message":"hello"}`)
	n, err := w.Write(event)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(event) {
		t.Errorf("expected %d bytes reported, got %d", len(event), n)
	}
	if buf.String() != `{"message":"hello"}`+"\n" {
		t.Errorf("expected JSON line, got %q", buf.String())
	}
}

func TestFileWriterConfig_Defaults(t *testing.T) {
	wc := fileWriterConfig(LoggingConfig{})
	if wc.FileName != defaultLogFile {
		t.Errorf("expected %s, got %s", defaultLogFile, wc.FileName)
	}
	if wc.MaxSize != 10<<20 || wc.MaxBackups != 5 {
		t.Errorf("unexpected rotation defaults: size=%d backups=%d", wc.MaxSize, wc.MaxBackups)
	}

	wc = fileWriterConfig(LoggingConfig{FilePath: "x.log", MaxSizeMB: 2, MaxBackups: 3})
	if wc.FileName != "x.log" || wc.MaxSize != 2<<20 || wc.MaxBackups != 3 {
		t.Errorf("expected configured values, got %+v", wc)
	}
}

func TestNewLoggerFromConfig_JSONFormat(t *testing.T) {
	logger := NewLoggerFromConfig(LoggingConfig{Level: "error", Format: "json"})
	if logger == nil {
		t.Fatal("NewLoggerFromConfig returned nil")
	}
	logger.Error().Str("key", "value").Msg("json event")
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ATXP_CONNECTION", "PORT", "HOST", "ATXP_PAYEE_NAME", "ATXP_JWT_SECRET", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--version"}, &stdout, &stderr)

	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "weather-server version ") {
		t.Errorf("unexpected version output %q", stdout.String())
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--bogus"}, &stdout, &stderr); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestRun_MissingConnectionExitsBeforeBinding(t *testing.T) {
	clearEnv(t)
	port := freePort(t)

	// A server that bound would block until the deadline and exit 0.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"--host", "127.0.0.1", "-p", fmt.Sprint(port)}, &stdout, &stderr)

	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if ctx.Err() != nil {
		t.Fatal("run must fail fast instead of serving")
	}
	if !strings.Contains(stderr.String(), "ATXP_CONNECTION") {
		t.Errorf("expected ATXP_CONNECTION in error output, got %q", stderr.String())
	}

	if conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second); err == nil {
		conn.Close()
		t.Errorf("expected nothing listening on port %d", port)
	}
}

func TestRun_MalformedConnection(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATXP_CONNECTION", "not a url")

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--host", "127.0.0.1"}, &stdout, &stderr); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
}

func TestRun_BindFailure(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATXP_CONNECTION", "https://accounts.example?connection_token=tok&account_id=acct")
	t.Setenv("LOG_LEVEL", "error")

	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--host", "127.0.0.1", "-p", fmt.Sprint(port)}, &stdout, &stderr)

	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "failed to start server") {
		t.Errorf("unexpected error output %q", stderr.String())
	}
}

func TestRun_GracefulShutdown(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATXP_CONNECTION", "https://accounts.example?connection_token=tok&account_id=acct")
	t.Setenv("PORT", "0")
	t.Setenv("LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	code := run(cancelledContext(), []string{"--host", "127.0.0.1"}, &stdout, &stderr)

	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr.String())
	}
}

func TestRun_ConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "error")

	path := filepath.Join(t.TempDir(), "weather-server.toml")
	content := `
[server]
host = "127.0.0.1"
port = 0

[atxp]
connection = "https://accounts.example?connection_token=tok&account_id=acct"
jwt_secret = "secret"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := run(cancelledContext(), []string{"-c", path}, &stdout, &stderr)

	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr.String())
	}
}

func TestConfigSearchPaths_Deduplicated(t *testing.T) {
	paths := configSearchPaths()
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, _ := filepath.Abs(p)
		if seen[abs] {
			t.Errorf("duplicate search path %s", p)
		}
		seen[abs] = true
	}
	if len(paths) < 2 {
		t.Errorf("expected at least the working directory candidates, got %v", paths)
	}
}

package config

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	if v := GetVersion(); v != "dev" {
		t.Errorf("expected default version dev, got %s", v)
	}
}

func TestGetGitCommit_LinkTimeValueWins(t *testing.T) {
	orig := GitCommit
	t.Cleanup(func() { GitCommit = orig })

	GitCommit = "abc1234"
	if got := GetGitCommit(); got != "abc1234" {
		t.Errorf("expected abc1234, got %s", got)
	}
}

func TestGetGitCommit_NeverEmpty(t *testing.T) {
	if GetGitCommit() == "" {
		t.Error("expected a commit or unknown")
	}
}

func TestGetFullVersion(t *testing.T) {
	fv := GetFullVersion()
	if !strings.HasPrefix(fv, "dev (build: unknown, commit: ") {
		t.Errorf("unexpected full version %q", fv)
	}
	if !strings.Contains(fv, runtime.Version()) {
		t.Errorf("expected Go runtime version in %q", fv)
	}
}

func TestShortRevision(t *testing.T) {
	if got := shortRevision("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("expected 12 chars, got %s", got)
	}
	if got := shortRevision("abc"); got != "abc" {
		t.Errorf("expected abc, got %s", got)
	}
}

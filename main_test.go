package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"baristad/session"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tc := range cases {
		got, err := parseLogLevel(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseLogLevel(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseLogLevel(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRunConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := runConfigInit(path); err != nil {
		t.Fatalf("runConfigInit: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read generated config: %v", err)
	}
	var cfg session.Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		t.Fatalf("parse generated config: %v", err)
	}
	if cfg.Server.ListenAddr != session.DefaultListenAddr {
		t.Fatalf("unexpected listen addr: %q", cfg.Server.ListenAddr)
	}
	if !strings.Contains(string(b), "listen_addr") {
		t.Fatalf("expected yaml field names in output")
	}

	// A second init must refuse to clobber the file.
	if err := runConfigInit(path); err == nil {
		t.Fatalf("expected error when config already exists")
	}
}

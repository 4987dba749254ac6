package main

import (
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{name: "default info", raw: "", want: slog.LevelInfo},
		{name: "debug", raw: "debug", want: slog.LevelDebug},
		{name: "upper case", raw: "ERROR", want: slog.LevelError},
		{name: "warn", raw: "warn", want: slog.LevelWarn},
		{name: "warning alias", raw: "warning", want: slog.LevelWarn},
		{name: "numeric", raw: "-4", want: slog.LevelDebug},
		{name: "invalid", raw: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse level: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSelectedLogLevel(t *testing.T) {
	tests := []struct {
		flag, env, cfg string
		wantRaw        string
		wantSource     string
	}{
		{flag: "debug", env: "error", cfg: "warn", wantRaw: "debug", wantSource: "flag"},
		{env: "warn", cfg: "info", wantRaw: "warn", wantSource: "env"},
		{cfg: "error", wantRaw: "error", wantSource: "config"},
		{wantRaw: "", wantSource: "default"},
	}
	for _, tt := range tests {
		raw, source := selectedLogLevel(tt.flag, tt.env, tt.cfg)
		if raw != tt.wantRaw || source != tt.wantSource {
			t.Fatalf("selectedLogLevel(%q, %q, %q) = %q/%q, want %q/%q",
				tt.flag, tt.env, tt.cfg, raw, source, tt.wantRaw, tt.wantSource)
		}
	}
}

func TestConfigureLoggerForCLI(t *testing.T) {
	t.Run("flag overrides invalid env", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "invalid")
		warning, err := configureLoggerForCLI("debug", "info")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if warning != "" {
			t.Fatalf("expected no warning, got %q", warning)
		}
	})

	t.Run("invalid flag returns error", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		if _, err := configureLoggerForCLI("verbose", "info"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid env returns warning and fallback", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "verbose")
		warning, err := configureLoggerForCLI("", "info")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if !strings.Contains(warning, "defaulting to info") {
			t.Fatalf("expected fallback warning, got %q", warning)
		}
	})

	t.Run("invalid config returns warning", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		warning, err := configureLoggerForCLI("", "verbose")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if !strings.Contains(warning, "invalid log_level") {
			t.Fatalf("expected config warning, got %q", warning)
		}
	})

	t.Run("json format", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		t.Setenv(logFormatEnvKey, "json")
		if _, err := configureLoggerForCLI("warn", ""); err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if _, ok := slog.Default().Handler().(*slog.JSONHandler); !ok {
			t.Fatalf("expected JSON handler, got %T", slog.Default().Handler())
		}
	})
}

package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"json format", func(c *Config) { c.Format = "json" }, false},
		{"bad level", func(c *Config) { c.Level = "verbose" }, true},
		{"bad format", func(c *Config) { c.Format = "xml" }, true},
		{"empty field key", func(c *Config) { c.Fields = map[string]string{"": "x"} }, true},
		{"empty field value", func(c *Config) { c.Fields = map[string]string{"k": ""} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("extraction complete", zap.Int("rules", 7))
	_ = logger.Sync()

	out := buf.String()
	if !strings.Contains(out, `"extraction complete"`) {
		t.Errorf("missing message in output: %s", out)
	}
	if !strings.Contains(out, `"rules":7`) {
		t.Errorf("missing field in output: %s", out)
	}
	if !strings.Contains(out, `"service":"rulemap"`) {
		t.Errorf("missing constant field in output: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Level = "warn"
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if logger.Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled at warn level")
	}
	logger.Debug("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug entry leaked: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn entry missing: %s", out)
	}
}

func TestNamedAndWith(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Named("extract").With(zap.String("file", "a.sql")).Info("parsed")
	_ = logger.Sync()

	out := buf.String()
	if !strings.Contains(out, `"extract"`) {
		t.Errorf("missing logger name: %s", out)
	}
	if !strings.Contains(out, `"file":"a.sql"`) {
		t.Errorf("missing with-field: %s", out)
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Info("discarded")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
}

package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"portmsg/internal/config"
	"portmsg/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Dir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg, "portmsgd.log")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon started", logging.Service("svc"))

	content, err := os.ReadFile(filepath.Join(cfg.Logging.Dir, "portmsgd.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"service":"svc"`) {
		t.Fatalf("expected service field in log file, got %q", content)
	}
}

func TestJSONLoggerKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("reply received", logging.Duration("elapsed", 1500000))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg"} {
		if _, ok := record[key]; !ok {
			t.Fatalf("expected key %q in %v", key, record)
		}
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
	if record["elapsed"] != "1.5ms" {
		t.Fatalf("expected duration string, got %v", record["elapsed"])
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "ipc-server").Info("service registered", logging.Int("port", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
	if !strings.Contains(line, "INFO ipc-server: service registered port=3") {
		t.Fatalf("unexpected console line %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller", logging.Error(errors.New("boom here")))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", line)
	}
	if !strings.Contains(line, `error="boom here"`) {
		t.Fatalf("expected quoted error value, got %q", line)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "receive failed", "service_receive_failed",
		logging.Impact("one message dropped"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldEventType] != "service_receive_failed" {
		t.Fatalf("event_type missing: %v", record)
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("error_hint default missing: %v", record)
	}
	if record[logging.FieldImpact] != "one message dropped" {
		t.Fatalf("impact overwritten: %v", record)
	}
}

func TestDomainAttrsUseStandardKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "attrs.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.ErrorWithContext(logger, "send failed", "exchange_send_failed",
		logging.Service("com.example.bar"),
		logging.Port(7),
		logging.Exchange("ex-1"),
		logging.Transport("unix"),
		logging.Hint("start the daemon"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	want := map[string]any{
		logging.FieldService:    "com.example.bar",
		logging.FieldPort:       float64(7),
		logging.FieldExchangeID: "ex-1",
		logging.FieldTransport:  "unix",
		logging.FieldEventType:  "exchange_send_failed",
		logging.FieldErrorHint:  "start the daemon",
	}
	for key, value := range want {
		if record[key] != value {
			t.Fatalf("%s = %v, want %v (record %v)", key, record[key], value, record)
		}
	}
	if _, ok := record[logging.FieldImpact]; ok {
		t.Fatalf("errors should not get an impact default: %v", record)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	base, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.WithExchangeID(logging.WithService(context.Background(), "svc"), "abc")
	logging.WithContext(ctx, base).Info("hello")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{`"service":"svc"`, `"exchange_id":"abc"`} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected %s in %q", want, content)
		}
	}
	if logging.ContextFields(context.Background()) != nil && len(logging.ContextFields(context.Background())) != 0 {
		t.Fatal("expected no fields from empty context")
	}
}

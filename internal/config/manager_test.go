package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"logging": {"level": "debug", "console": true},
		"storage": {"path": "./corvid.db"},
		"scheduler": {"tick_interval": "10s", "max_concurrent": 4}
	}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" || cfg.Storage.Path != "./corvid.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Scheduler.MaxConcurrent != 4 {
		t.Fatalf("max_concurrent = %d", cfg.Scheduler.MaxConcurrent)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
logging:
  level: info
  console: true
storage:
  path: ./corvid.db
scheduler:
  tick_interval: 30s
telegram:
  token: "123:abc"
  alert_chat_id: 42
`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram == nil || cfg.Telegram.AlertChatID != 42 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"storage": {"path": "./corvid.db"},
		"scheduler": {"tick_cadence": "10s"}
	}`)

	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json",
		`{"storage": {"path": "./a.db"}, "scheduler": {}, "logging": {"console": true}}{"extra": 1}`)

	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestValidateRequiresStoragePath(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"scheduler": {}}`)

	_, err := NewManager(path).Parse()
	if err == nil || !strings.Contains(err.Error(), "storage.path") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateRequiresTelegramToken(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"storage": {"path": "./a.db"},
		"telegram": {"alert_chat_id": 1}
	}`)

	_, err := NewManager(path).Parse()
	if err == nil || !strings.Contains(err.Error(), "telegram.token") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("x", "90s"); err != nil || d != 90*time.Second {
		t.Fatalf("d=%v err=%v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: d=%v err=%v", d, err)
	}
	if _, err := ParseDurationField("x", "banana"); err == nil {
		t.Fatal("bad duration accepted")
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default: d=%v err=%v", d, err)
	}
}

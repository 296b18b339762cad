package config

import "fmt"

// Config is the full daemon configuration. JSON and YAML are both
// accepted; YAML is converted to JSON so a single strict decoder applies
// to either format. All durations are Go duration strings ("30s", "5m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	API       APIConfig       `json:"api,omitempty"`
	Telegram  *TelegramConfig `json:"telegram,omitempty"`
	Runtime   *RuntimeConfig  `json:"runtime,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console bool   `json:"console"`
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path,omitempty"`
	} `json:"file,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerConfig controls the tick loop.
//
// Defaults (when fields are omitted/zero):
//   - tick_interval: "30s"
//   - max_concurrent: 2
//   - failure_window: "24h"
type SchedulerConfig struct {
	TickInterval  string `json:"tick_interval,omitempty"`
	MaxConcurrent int    `json:"max_concurrent,omitempty"`
	FailureWindow string `json:"failure_window,omitempty"`
}

// APIConfig controls the admin HTTP surface. Prefer binding to localhost.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8870"
}

// TelegramConfig wires the outbound notification bridge. AlertChatID
// receives approval-request alerts; notices go to the address each
// schedule carries.
type TelegramConfig struct {
	Token       string `json:"token"`
	AlertChatID int64  `json:"alert_chat_id,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

// RuntimeConfig controls how agent sessions are launched.
type RuntimeConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	WorkDir string   `json:"work_dir,omitempty"`
}

// Validate checks cross-field constraints that the strict decoder cannot.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Telegram != nil && c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when the telegram section is present")
	}
	if c.Runtime != nil && c.Runtime.Command == "" {
		return fmt.Errorf("runtime.command is required when the runtime section is present")
	}
	if _, err := ParseDurationField("scheduler.tick_interval", c.Scheduler.TickInterval); err != nil {
		return err
	}
	if _, err := ParseDurationField("scheduler.failure_window", c.Scheduler.FailureWindow); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}

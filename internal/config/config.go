package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Build         BuildConfig         `toml:"build"`
	Verify        VerifyConfig        `toml:"verify"`
	Worker        WorkerConfig        `toml:"worker"`
	Notifications NotificationsConfig `toml:"notifications"`
	Watch         WatchConfig         `toml:"watch"`
	Schedules     []ScheduleConfig    `toml:"schedules"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	OutputDir         string `toml:"output_dir"`
	DatabasePath      string `toml:"database_path"`
	MaxParallelBuilds int    `toml:"max_parallel_builds"`
}

// BuildConfig holds per-item build settings for phase 3
type BuildConfig struct {
	MaxAttempts          int `toml:"max_attempts"`
	AttemptTimeoutSecs   int `toml:"attempt_timeout_secs"`
	ModelPullTimeoutSecs int `toml:"model_pull_timeout_secs"`
}

// VerifyConfig holds phase-4 verification settings
type VerifyConfig struct {
	MaxIterations int    `toml:"max_iterations"`
	TestCommand   string `toml:"test_command"`
	VisualCommand string `toml:"visual_command"`
	FixCommand    string `toml:"fix_command"`
}

// WorkerConfig selects and configures the build worker
type WorkerConfig struct {
	Kind      string `toml:"kind"` // "subprocess" or "remote"
	RemoteURL string `toml:"remote_url"`
	Model     string `toml:"model"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// WatchConfig holds requirements-watcher settings
type WatchConfig struct {
	DebounceMs int `toml:"debounce_ms"`
}

// ScheduleConfig names a cron-gated recurring run
type ScheduleConfig struct {
	Name   string `toml:"name"`
	Cron   string `toml:"cron"`
	Phases string `toml:"phases"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			OutputDir:         filepath.Join(home, ".forge", "projects"),
			DatabasePath:      filepath.Join(home, ".forge", "forge.db"),
			MaxParallelBuilds: 3,
		},
		Build: BuildConfig{
			MaxAttempts:          2,
			AttemptTimeoutSecs:   600,
			ModelPullTimeoutSecs: 1800,
		},
		Verify: VerifyConfig{
			MaxIterations: 3,
		},
		Worker: WorkerConfig{
			Kind: "subprocess",
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.OutputDir = ExpandPath(cfg.General.OutputDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	return cfg, cfg.Validate()
}

// Validate checks numeric settings that the pipeline depends on
func (c *Config) Validate() error {
	if c.General.MaxParallelBuilds < 1 {
		return fmt.Errorf("general.max_parallel_builds must be >= 1, got %d", c.General.MaxParallelBuilds)
	}
	if c.Build.MaxAttempts < 1 {
		return fmt.Errorf("build.max_attempts must be >= 1, got %d", c.Build.MaxAttempts)
	}
	if c.Verify.MaxIterations < 0 {
		return fmt.Errorf("verify.max_iterations must be >= 0, got %d", c.Verify.MaxIterations)
	}
	switch c.Worker.Kind {
	case "", "subprocess", "remote":
	default:
		return fmt.Errorf("worker.kind must be subprocess or remote, got %q", c.Worker.Kind)
	}
	return nil
}

// Save writes the configuration to a TOML file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "forge", "config.toml")
}

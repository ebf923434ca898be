package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	API       APIConfig       `mapstructure:"api" json:"api"`
	Review    ReviewConfig    `mapstructure:"review" json:"review"`
	Poll      PollConfig      `mapstructure:"poll" json:"poll"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox" json:"sandbox"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
	Workspace WorkspaceConfig `mapstructure:"workspace" json:"workspace"`
}

// APIConfig pipeline API connection settings
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url" json:"base_url"`
	Token          string `mapstructure:"token" json:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`
}

// ReviewConfig reviewer identity and pipeline layout
type ReviewConfig struct {
	Reviewer      string   `mapstructure:"reviewer" json:"reviewer"`
	KeywordStep   string   `mapstructure:"keyword_step" json:"keyword_step"`
	PipelineSteps []string `mapstructure:"pipeline_steps" json:"pipeline_steps"`
}

// PollConfig job status polling settings
type PollConfig struct {
	IntervalMs  int `mapstructure:"interval_ms" json:"interval_ms"`
	MaxFailures int `mapstructure:"max_failures" json:"max_failures"`
}

// SandboxConfig local sandbox API settings
type SandboxConfig struct {
	Host  string `mapstructure:"host" json:"host"`
	Port  int    `mapstructure:"port" json:"port"`
	Token string `mapstructure:"token" json:"token"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

// WorkspaceConfig where audit, metrics and sandbox state live
type WorkspaceConfig struct {
	Mode string `mapstructure:"mode" json:"mode"`
	Path string `mapstructure:"path" json:"path"`
}

// DefaultPipelineSteps is the content pipeline used when none is configured.
var DefaultPipelineSteps = []string{
	approval.DefaultKeywordStep,
	"outline",
	"draft",
	"seo_review",
	"final_edit",
}

const (
	defaultTimeoutSeconds = 30
	defaultPollIntervalMs = 2000
	minPollIntervalMs     = 200
	defaultMaxFailures    = 5
	defaultSandboxPort    = 18791
)

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	reviewer := strings.TrimSpace(os.Getenv("USER"))
	if reviewer == "" {
		reviewer = strings.TrimSpace(os.Getenv("USERNAME"))
	}
	return &Config{
		API: APIConfig{
			BaseURL:        fmt.Sprintf("http://127.0.0.1:%d", defaultSandboxPort),
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Review: ReviewConfig{
			Reviewer:      reviewer,
			KeywordStep:   approval.DefaultKeywordStep,
			PipelineSteps: append([]string(nil), DefaultPipelineSteps...),
		},
		Poll: PollConfig{
			IntervalMs:  defaultPollIntervalMs,
			MaxFailures: defaultMaxFailures,
		},
		Sandbox: SandboxConfig{
			Host: "127.0.0.1",
			Port: defaultSandboxPort,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
		Workspace: WorkspaceConfig{
			Mode: "default",
		},
	}
}

// ConfigDir returns the reviewdesk config directory
func ConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return filepath.Join(homeDir, ".reviewdesk")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults. Values can be overridden
// with REVIEWDESK_* environment variables, e.g. REVIEWDESK_API_BASE_URL.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := ConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("REVIEWDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to file
func Save(cfg *Config) error {
	configPath := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutSeconds < 0 {
		return fmt.Errorf("api.timeout_seconds must not be negative, got %d", c.API.TimeoutSeconds)
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = defaultTimeoutSeconds
	}

	c.Review.Reviewer = strings.TrimSpace(c.Review.Reviewer)
	c.Review.KeywordStep = strings.TrimSpace(c.Review.KeywordStep)
	if c.Review.KeywordStep == "" {
		c.Review.KeywordStep = approval.DefaultKeywordStep
	}
	steps := make([]string, 0, len(c.Review.PipelineSteps))
	for _, step := range c.Review.PipelineSteps {
		if step = strings.TrimSpace(step); step != "" {
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		steps = append(steps, DefaultPipelineSteps...)
	}
	c.Review.PipelineSteps = steps

	if c.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll.interval_ms must not be negative, got %d", c.Poll.IntervalMs)
	}
	if c.Poll.IntervalMs == 0 {
		c.Poll.IntervalMs = defaultPollIntervalMs
	}
	if c.Poll.IntervalMs < minPollIntervalMs {
		c.Poll.IntervalMs = minPollIntervalMs
	}
	if c.Poll.MaxFailures < 0 {
		return fmt.Errorf("poll.max_failures must not be negative, got %d", c.Poll.MaxFailures)
	}
	if c.Poll.MaxFailures == 0 {
		c.Poll.MaxFailures = defaultMaxFailures
	}

	if c.Sandbox.Port <= 0 || c.Sandbox.Port > 65535 {
		return fmt.Errorf("sandbox.port must be between 1 and 65535, got %d", c.Sandbox.Port)
	}
	if strings.TrimSpace(c.Sandbox.Host) == "" {
		c.Sandbox.Host = "127.0.0.1"
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	mode := strings.TrimSpace(c.Workspace.Mode)
	if mode != "" {
		validModes := map[string]bool{"default": true, "cwd": true, "path": true}
		if !validModes[strings.ToLower(mode)] {
			return fmt.Errorf("workspace.mode must be one of: default, cwd, path; got %q", mode)
		}
		if strings.EqualFold(mode, "path") && strings.TrimSpace(c.Workspace.Path) == "" {
			return fmt.Errorf("workspace.path must be non-empty when workspace.mode is \"path\"")
		}
	}

	return nil
}

// Timeout returns the per-request API timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// PollInterval returns the job status poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMs) * time.Millisecond
}

// SandboxAddr returns host:port for the sandbox listener.
func (c *Config) SandboxAddr() string {
	return fmt.Sprintf("%s:%d", c.Sandbox.Host, c.Sandbox.Port)
}

// WorkspacePath returns the expanded workspace path
func (c *Config) WorkspacePath() string {
	path, err := c.WorkspacePathChecked()
	if err != nil {
		return filepath.Join(ConfigDir(), "workspace")
	}
	return path
}

// WorkspacePathChecked returns the expanded workspace path or an error if invalid.
func (c *Config) WorkspacePathChecked() (string, error) {
	mode := strings.TrimSpace(c.Workspace.Mode)
	if mode == "" || strings.EqualFold(mode, "default") {
		return filepath.Join(ConfigDir(), "workspace"), nil
	}
	if strings.EqualFold(mode, "cwd") {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve cwd: %w", err)
		}
		return wd, nil
	}
	if !strings.EqualFold(mode, "path") {
		return "", fmt.Errorf("unknown workspace.mode: %s", mode)
	}
	if c.Workspace.Path == "" {
		return "", fmt.Errorf("workspace.path is required when workspace.mode=path")
	}
	if c.Workspace.Path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory for workspace path: %w", err)
		}
		rest := c.Workspace.Path[1:]
		rest = strings.TrimPrefix(rest, string(filepath.Separator))
		rest = strings.TrimPrefix(rest, "/")
		return filepath.Join(homeDir, rest), nil
	}
	return c.Workspace.Path, nil
}

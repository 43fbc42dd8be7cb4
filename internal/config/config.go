package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. PLAYGROUND_VALIDATOR_COMMAND for validator.command.
const EnvPrefix = "PLAYGROUND"

// Config represents the complete playground configuration
type Config struct {
	// Mode selects which derived views are maintained: default, validator or embed
	Mode       string           `mapstructure:"mode"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Runtimes   []RuntimeEntry   `mapstructure:"runtimes"`
	Validator  CommandConfig    `mapstructure:"validator"`
	Formatter  CommandConfig    `mapstructure:"formatter"`
	Template   TemplateConfig   `mapstructure:"template"`
	Preview    PreviewConfig    `mapstructure:"preview"`
	Share      ShareConfig      `mapstructure:"share"`
	State      StateConfig      `mapstructure:"state"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	AutoImport AutoImportConfig `mapstructure:"autoimport"`
}

// RuntimeConfig controls runtime selection
type RuntimeConfig struct {
	// Initial is the runtime id activated at startup. It takes precedence
	// over the runtime remembered in the state file.
	Initial string `mapstructure:"initial"`
}

// RuntimeEntry defines one runtime profile. When the runtimes list is empty
// the built-in AMP, AMP for Email and AMP for Ads runtimes are used.
type RuntimeEntry struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Profile string `mapstructure:"profile"`
	// Template is the inline default document. TemplateFile reads it from
	// disk instead; at most one of the two may be set.
	Template     string   `mapstructure:"template"`
	TemplateFile string   `mapstructure:"template_file"`
	Markers      []string `mapstructure:"markers"`
}

// CommandConfig configures an external tool
type CommandConfig struct {
	Command   string   `mapstructure:"command"`
	Args      []string `mapstructure:"args"`
	TimeoutMs int      `mapstructure:"timeout_ms"` // 0 disables the timeout
}

// TemplateConfig controls template downloads
type TemplateConfig struct {
	// BaseURL resolves template references that are not absolute URLs
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
	MaxSizeKB int    `mapstructure:"max_size_kb"`
}

// PreviewConfig controls the rendered preview file
type PreviewConfig struct {
	// Path is where the preview document is written. Empty disables the preview.
	Path    string `mapstructure:"path"`
	Visible bool   `mapstructure:"visible"`
}

// ShareConfig controls share links
type ShareConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// StateConfig controls the persisted navigation state
type StateConfig struct {
	Persist bool `mapstructure:"persist"`
	// Path overrides the state file location (default: <config dir>/state.yaml)
	Path       string `mapstructure:"path"`
	MaxHistory int    `mapstructure:"max_history"`
}

// WatchConfig controls file watching
type WatchConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is active (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level sets the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the log directory (default: <config dir>/logs)
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// AutoImportConfig controls automatic insertion of missing extension scripts
type AutoImportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	CDNBase string `mapstructure:"cdn_base"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Mode:     "default",
		Runtimes: []RuntimeEntry{}, // Empty means use the built-in runtimes
		Validator: CommandConfig{
			Command:   "amphtml-validator",
			Args:      []string{},
			TimeoutMs: 10000,
		},
		Formatter: CommandConfig{
			Command:   "prettier",
			Args:      []string{"--parser", "html"},
			TimeoutMs: 10000,
		},
		Template: TemplateConfig{
			UserAgent: "amp-playground",
			TimeoutMs: 15000,
			MaxSizeKB: 4096,
		},
		Preview: PreviewConfig{
			Visible: true,
		},
		Share: ShareConfig{
			BaseURL: "https://playground.amp.dev/",
		},
		State: StateConfig{
			Persist:    true,
			MaxHistory: 50,
		},
		Watch: WatchConfig{
			DebounceMs: 200,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		AutoImport: AutoImportConfig{
			Enabled: true,
			CDNBase: "https://cdn.ampproject.org/v0",
		},
	}
}

// Timeout returns the command timeout as a time.Duration (0 means disabled)
func (c *CommandConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Timeout returns the download timeout as a time.Duration (0 means disabled)
func (c *TemplateConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// MaxSize returns the body limit in bytes
func (c *TemplateConfig) MaxSize() int64 {
	return int64(c.MaxSizeKB) << 10
}

// Debounce returns the watch debounce as a time.Duration
func (c *WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// ResolvePath returns the state file path, falling back to StateFile.
func (c *StateConfig) ResolvePath() string {
	if c.Path != "" {
		return expandHome(c.Path)
	}
	return StateFile()
}

// ResolveDir returns the log directory, falling back to LogDir.
func (c *LoggingConfig) ResolveDir() string {
	if c.Dir != "" {
		return expandHome(c.Dir)
	}
	return LogDir()
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("mode", defaults.Mode)

	// Runtime defaults
	viper.SetDefault("runtime.initial", defaults.Runtime.Initial)
	viper.SetDefault("runtimes", defaults.Runtimes)

	// Validator defaults
	viper.SetDefault("validator.command", defaults.Validator.Command)
	viper.SetDefault("validator.args", defaults.Validator.Args)
	viper.SetDefault("validator.timeout_ms", defaults.Validator.TimeoutMs)

	// Formatter defaults
	viper.SetDefault("formatter.command", defaults.Formatter.Command)
	viper.SetDefault("formatter.args", defaults.Formatter.Args)
	viper.SetDefault("formatter.timeout_ms", defaults.Formatter.TimeoutMs)

	// Template defaults
	viper.SetDefault("template.base_url", defaults.Template.BaseURL)
	viper.SetDefault("template.user_agent", defaults.Template.UserAgent)
	viper.SetDefault("template.timeout_ms", defaults.Template.TimeoutMs)
	viper.SetDefault("template.max_size_kb", defaults.Template.MaxSizeKB)

	// Preview defaults
	viper.SetDefault("preview.path", defaults.Preview.Path)
	viper.SetDefault("preview.visible", defaults.Preview.Visible)

	// Share defaults
	viper.SetDefault("share.base_url", defaults.Share.BaseURL)

	// State defaults
	viper.SetDefault("state.persist", defaults.State.Persist)
	viper.SetDefault("state.path", defaults.State.Path)
	viper.SetDefault("state.max_history", defaults.State.MaxHistory)

	// Watch defaults
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Auto-import defaults
	viper.SetDefault("autoimport.enabled", defaults.AutoImport.Enabled)
	viper.SetDefault("autoimport.cdn_base", defaults.AutoImport.CDNBase)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "playground")
	}
	// Fall back to ~/.config/playground
	home, err := os.UserHomeDir()
	if err != nil {
		return ".playground"
	}
	return filepath.Join(home, ".config", "playground")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateFile returns the default path of the persisted navigation state
func StateFile() string {
	return filepath.Join(ConfigDir(), "state.yaml")
}

// LogDir returns the default log directory
func LogDir() string {
	return filepath.Join(ConfigDir(), "logs")
}

// ValidModes returns the list of valid mode values
func ValidModes() []string {
	return []string{"default", "validator", "embed"}
}

// ValidProfiles returns the list of valid validation profiles
func ValidProfiles() []string {
	return []string{"AMP", "AMP4EMAIL", "AMP4ADS"}
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

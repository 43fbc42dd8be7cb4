// Package config provides CLI commands for managing playground configuration.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appconfig "github.com/Iron-Ham/playground/internal/config"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify playground configuration",
	Long: `View or modify playground configuration.

Without arguments, shows the effective configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  playground config set runtime.initial amp4email
  playground config set validator.timeout_ms 20000
  playground config set preview.path /tmp/preview.html

Valid keys:
` + keyHelp(),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/playground/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in your editor",
	Long: `Open the config file in your preferred editor.

Uses $EDITOR environment variable, or falls back to common editors (vim, nano, vi).
If no config file exists, creates one with default values first.`,
	RunE: runConfigEdit,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset configuration values to their defaults.

Without arguments, resets all configuration to defaults.
With a key argument, resets only that specific key.

Examples:
  playground config reset                  # Reset all to defaults
  playground config reset preview.visible  # Reset only preview.visible`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configResetCmd)
}

// Register adds all config-related commands to the given parent command.
// This is the main entry point for integrating the config subpackage with
// the root command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

// Value kinds accepted by config set.
const (
	kindString = "string"
	kindBool   = "bool"
	kindInt    = "int"
	kindMode   = "mode"
	kindLevel  = "level"
)

// setting is one key that config set and config reset understand.
type setting struct {
	key         string
	kind        string
	description string
	get         func(*appconfig.Config) any
}

var settings = []setting{
	{"mode", kindMode, "Host mode: default, validator, embed", func(c *appconfig.Config) any { return c.Mode }},
	{"runtime.initial", kindString, "Runtime selected at startup", func(c *appconfig.Config) any { return c.Runtime.Initial }},
	{"validator.command", kindString, "Validator command name/path", func(c *appconfig.Config) any { return c.Validator.Command }},
	{"validator.timeout_ms", kindInt, "Validation timeout in milliseconds", func(c *appconfig.Config) any { return c.Validator.TimeoutMs }},
	{"formatter.command", kindString, "Formatter command name/path (empty disables)", func(c *appconfig.Config) any { return c.Formatter.Command }},
	{"formatter.timeout_ms", kindInt, "Formatting timeout in milliseconds", func(c *appconfig.Config) any { return c.Formatter.TimeoutMs }},
	{"template.base_url", kindString, "Base URL for relative template references", func(c *appconfig.Config) any { return c.Template.BaseURL }},
	{"template.user_agent", kindString, "User-Agent of template requests", func(c *appconfig.Config) any { return c.Template.UserAgent }},
	{"template.timeout_ms", kindInt, "Template download timeout in milliseconds", func(c *appconfig.Config) any { return c.Template.TimeoutMs }},
	{"template.max_size_kb", kindInt, "Largest template accepted, in KiB", func(c *appconfig.Config) any { return c.Template.MaxSizeKB }},
	{"preview.path", kindString, "File the preview is written to (empty disables)", func(c *appconfig.Config) any { return c.Preview.Path }},
	{"preview.visible", kindBool, "Show the preview at startup (true/false)", func(c *appconfig.Config) any { return c.Preview.Visible }},
	{"share.base_url", kindString, "Base URL of share links", func(c *appconfig.Config) any { return c.Share.BaseURL }},
	{"state.persist", kindBool, "Keep navigation history between runs (true/false)", func(c *appconfig.Config) any { return c.State.Persist }},
	{"state.path", kindString, "State file path", func(c *appconfig.Config) any { return c.State.Path }},
	{"state.max_history", kindInt, "History entries kept", func(c *appconfig.Config) any { return c.State.MaxHistory }},
	{"watch.debounce_ms", kindInt, "Delay after a save before revalidating", func(c *appconfig.Config) any { return c.Watch.DebounceMs }},
	{"logging.enabled", kindBool, "Write a debug log (true/false)", func(c *appconfig.Config) any { return c.Logging.Enabled }},
	{"logging.level", kindLevel, "Log level: debug, info, warn, error", func(c *appconfig.Config) any { return c.Logging.Level }},
	{"logging.dir", kindString, "Log directory", func(c *appconfig.Config) any { return c.Logging.Dir }},
	{"logging.max_size_mb", kindInt, "Log size before rotation, in MB", func(c *appconfig.Config) any { return c.Logging.MaxSizeMB }},
	{"logging.max_backups", kindInt, "Rotated logs kept", func(c *appconfig.Config) any { return c.Logging.MaxBackups }},
	{"autoimport.enabled", kindBool, "Insert missing extension scripts (true/false)", func(c *appconfig.Config) any { return c.AutoImport.Enabled }},
	{"autoimport.cdn_base", kindString, "CDN base of inserted extension scripts", func(c *appconfig.Config) any { return c.AutoImport.CDNBase }},
}

func lookupSetting(key string) (setting, bool) {
	i := slices.IndexFunc(settings, func(s setting) bool { return s.key == key })
	if i < 0 {
		return setting{}, false
	}
	return settings[i], true
}

func keyHelp() string {
	var b strings.Builder
	for _, s := range settings {
		fmt.Fprintf(&b, "  %-22s - %s\n", s.key, s.description)
	}
	return b.String()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := appconfig.Get()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	section := ""
	for _, s := range settings {
		if prefix, _, found := strings.Cut(s.key, "."); found && prefix != section {
			section = prefix
			fmt.Fprintf(out, "%s:\n", section)
		}
		if !strings.Contains(s.key, ".") {
			section = ""
			fmt.Fprintf(out, "%s: %v\n", s.key, s.get(cfg))
			continue
		}
		_, name, _ := strings.Cut(s.key, ".")
		fmt.Fprintf(out, "  %s: %v\n", name, s.get(cfg))
	}

	// Runtimes are edited in the file; list the effective set.
	runtimes, err := cfg.BuildRuntimes()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "runtimes:")
	for _, rt := range runtimes {
		fmt.Fprintf(out, "  - %s (%s, %s)\n", rt.ID, rt.Name, rt.Profile)
	}
	return nil
}

func parseValue(s setting, value string) (any, error) {
	switch s.kind {
	case kindMode:
		if !slices.Contains(appconfig.ValidModes(), value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				s.key, value, strings.Join(appconfig.ValidModes(), ", "))
		}
		return value, nil
	case kindLevel:
		if !slices.Contains(appconfig.ValidLogLevels(), value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				s.key, value, strings.Join(appconfig.ValidLogLevels(), ", "))
		}
		return value, nil
	case kindBool:
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", s.key)
		}
		return value == "true", nil
	case kindInt:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", s.key)
		}
		if intVal < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", s.key)
		}
		return intVal, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	s, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'playground config set --help' to see valid keys", key)
	}
	typedValue, err := parseValue(s, value)
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)
	// Reject values the rest of the configuration does not accept, such as
	// a runtime.initial that is not configured.
	if _, err := appconfig.Load(); err != nil {
		viper.Set(key, previous)
		return err
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

// writeConfig saves viper's settings to the user's config file.
func writeConfig() (string, error) {
	configDir := appconfig.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := appconfig.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

// defaultConfigFile is written by config init.
const defaultConfigFile = `# AMP Playground Configuration

# Host mode: default, validator (no preview affordances) or embed
mode: default

runtime:
  # Runtime selected at startup: amphtml, amp4email, amp4ads
  # (documents that are opened still select their runtime from <html>)
  initial: amphtml

# Runtimes offered by the playground. Leave empty for the built-in
# websites, email and ads runtimes.
# runtimes:
#   - id: amp4email
#     name: AMP for Email
#     profile: AMP4EMAIL
#     template_file: ~/templates/email.html
#     markers: ["⚡4email", "amp4email"]

# Validation engine
validator:
  command: amphtml-validator
  timeout_ms: 10000

# Formatter, fed the document on stdin (empty command disables formatting)
formatter:
  command: prettier
  args: ["--parser", "html"]
  timeout_ms: 10000

# Template downloads
template:
  # Relative template references resolve against this URL
  base_url: ""
  user_agent: amp-playground
  timeout_ms: 15000
  max_size_kb: 4096

preview:
  # The preview is written to this file after every change (empty disables)
  path: ""
  visible: true

share:
  base_url: https://playground.amp.dev/

# Navigation history (preview visibility, template URL, runtime)
state:
  persist: true
  max_history: 50

watch:
  debounce_ms: 200

logging:
  enabled: true
  # debug, info, warn or error
  level: info
  max_size_mb: 10
  max_backups: 3

# Insert <script> tags for extensions the validator reports as missing
autoimport:
  enabled: true
  cdn_base: https://cdn.ampproject.org/v0
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := appconfig.ConfigDir()
	configFile := appconfig.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'playground config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigFile), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to customize the playground.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(appconfig.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/playground/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_VALIDATOR_COMMAND)\n", appconfig.EnvPrefix, appconfig.EnvPrefix)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	// Check if config file exists, if not create it
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "Config file doesn't exist, creating with defaults...\n")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
	}

	// Find an editor
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"vim", "nano", "vi"} {
			if _, err := execLookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set $EDITOR environment variable")
	}

	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config file saved: %s\n", configFile)
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	defaults := appconfig.Default()

	if len(args) == 0 {
		for _, s := range settings {
			viper.Set(s.key, s.get(defaults))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Reset all configuration to defaults.")
	} else {
		key := args[0]
		s, ok := lookupSetting(key)
		if !ok {
			return fmt.Errorf("unknown configuration key: %s\nRun 'playground config set --help' to see valid keys", key)
		}
		value := s.get(defaults)
		viper.Set(key, value)
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %s to default: %v\n", key, value)
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

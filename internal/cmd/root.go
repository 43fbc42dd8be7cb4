package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/playground/internal/cmd/config"
	appconfig "github.com/Iron-Ham/playground/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "playground",
	Short: "Edit, validate and preview AMP documents",
	Long: `Playground keeps an AMP document, its validation result, preview, title
and content-security-policy hashes in sync while you edit it.

Documents are validated with amphtml-validator under the profile of the
active runtime (AMP websites, AMP for Email or AMP for Ads). The runtime is
detected from the <html> attributes of every document that is opened.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/playground/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	config.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath("$HOME/.config/playground")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(appconfig.EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., PLAYGROUND_VALIDATOR_COMMAND for validator.command
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

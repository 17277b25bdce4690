package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ryoshumei/add-to-calendar/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration and the personal API key",
	Long: `Inspect configuration and manage the personal model API key.

The API key is stored in the OS keyring, never in the config file. The
GEMINI_API_KEY environment variable overrides the keyring when set.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfgFile
		if dir == "" {
			var err error
			dir, err = config.GetDefaultConfigDir()
			if err != nil {
				return fmt.Errorf("failed to get config directory: %w", err)
			}
		}
		fmt.Println(filepath.Join(dir, "config.toml"))
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Store a personal model API key in the OS keyring",
	Long: `Store your own model provider API key.

When a key is configured, extraction calls the model provider directly
and bypasses the relay and its monthly quota entirely.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetCredential(args[0]); err != nil {
			return fmt.Errorf("failed to store API key: %w", err)
		}
		fmt.Println("API key stored; extraction will now use it directly")
		return nil
	},
}

var configClearKeyCmd = &cobra.Command{
	Use:   "clear-key",
	Short: "Remove the personal model API key from the OS keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearCredential(); err != nil {
			return fmt.Errorf("failed to remove API key: %w", err)
		}
		fmt.Println("API key removed")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configClearKeyCmd)
}

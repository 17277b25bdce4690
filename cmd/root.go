package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ryoshumei/add-to-calendar/internal/config"
	"github.com/ryoshumei/add-to-calendar/internal/logger"
)

var (
	dataDir string
	verbose bool
	cfgFile string
	cfg     *config.Config

	// Version information
	version    string
	commitHash string
	buildTime  string
)

var rootCmd = &cobra.Command{
	Use:   "add-to-calendar",
	Short: "Turn selected text into Google Calendar events",
	Long: `Native-messaging host and CLI companion for the Add to Calendar
browser extension.

When the extension sends selected text over the native-messaging bridge,
add-to-calendar extracts calendar events from it (via the hosted relay, a
direct model call with your own API key, or a local placeholder), builds
prefilled Google Calendar links and returns them to the page for
confirmation.

Run 'add-to-calendar serve' from the browser's native-messaging manifest,
or 'add-to-calendar extract' to process text directly from the terminal.`,
}

func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, commit, buildTimeStr string) {
	version = v
	commitHash = commit
	buildTime = buildTimeStr

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commitHash, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/add-to-calendar/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for session and usage files (default: ~/.local/share/add-to-calendar)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	// Initialize logger with verbose flag
	logger.Init(verbose)

	if dataDir == "" {
		defaultDataDir, err := config.GetDefaultDataDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting default data directory: %v\n", err)
			os.Exit(1)
		}
		dataDir = defaultDataDir
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating data directory: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}

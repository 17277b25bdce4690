package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ryoshumei/add-to-calendar/internal/bridge"
	"github.com/ryoshumei/add-to-calendar/internal/pipeline"
	"github.com/ryoshumei/add-to-calendar/internal/session"
	"github.com/ryoshumei/add-to-calendar/internal/usage"
)

var openFlag bool

var extractCmd = &cobra.Command{
	Use:   "extract [text]",
	Short: "Extract calendar events from text on the command line",
	Long: `Run the extraction pipeline once, outside the browser.

The text comes from the arguments, or from stdin when no argument is
given. The same strategy selection applies as in the browser: your own
API key first, then the signed-in relay, then the local placeholder.

Examples:
  add-to-calendar extract "Standup every Monday 9am for 15 minutes"
  echo "Dinner with Alex Friday 7pm at Luigi's" | add-to-calendar extract
  add-to-calendar extract --open "Dentist tomorrow 14:30"`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&openFlag, "open", false, "open the first calendar URL in the browser")
}

func runExtract(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = strings.TrimSpace(string(raw))
	}
	if text == "" {
		return fmt.Errorf("no text to process; pass it as an argument or on stdin")
	}

	sessions, err := session.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	usageStore := usage.NewStore(dataDir)

	console := bridge.NewConsole(os.Stdout, openFlag)
	orchestrator := pipeline.NewOrchestrator(cfg, sessions, usageStore, console)
	orchestrator.Handle(cmd.Context(), pipeline.NewRequest(0, text))

	if err := console.Err(); err != nil {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return err
	}
	return nil
}

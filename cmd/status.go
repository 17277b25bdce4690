package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryoshumei/add-to-calendar/internal/config"
	"github.com/ryoshumei/add-to-calendar/internal/session"
	"github.com/ryoshumei/add-to-calendar/internal/usage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication, credential and quota status",
	Long: `Display the current state of the extension host including:
- Authentication status and signed-in account
- Whether a personal API key is configured
- The extraction strategy the next request would use
- Monthly quota usage as last reported by the relay

This command helps you verify that text processing will work before
triggering it from the browser.`,
	RunE: runStatusCmd,
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Authentication ===")

	sessions, err := session.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	state := sessions.Resolve()
	if state.IsAuthenticated {
		fmt.Printf("Signed in as %s\n", state.User.Email)
		if sessions.Expired() {
			fmt.Println("Session token expired; it will be refreshed on next use")
		}
	} else {
		fmt.Println("Not signed in (run 'add-to-calendar auth')")
	}

	hasKey := config.Credential() != ""
	if hasKey {
		fmt.Println("Personal API key: configured")
	} else {
		fmt.Println("Personal API key: not set")
	}

	strategy, err := chooseDescription(state.IsAuthenticated, hasKey)
	if err == nil {
		fmt.Printf("Next request would use: %s\n", strategy)
	} else {
		fmt.Println("Next request would fail: setup required")
	}

	fmt.Println("\n=== Quota ===")

	snap, err := usage.NewStore(dataDir).Load()
	if err != nil {
		fmt.Printf("Failed to load usage snapshot: %v\n", err)
		return nil
	}
	if snap == nil {
		fmt.Println("No usage recorded yet")
		return nil
	}

	fmt.Printf("Period: %s\n", snap.YearMonth)
	fmt.Printf("Used: %d/%d requests\n", snap.UsageCount, snap.Limit)
	if snap.YearMonth != usage.CurrentPeriod(time.Now()) {
		fmt.Println("(snapshot is from a previous period; the counter resets each month)")
	}
	if !snap.UpdatedAt.IsZero() {
		fmt.Printf("Last updated: %s (%s ago)\n",
			snap.UpdatedAt.Format("2006-01-02 15:04:05"),
			time.Since(snap.UpdatedAt).Truncate(time.Second))
	}

	return nil
}

func chooseDescription(isAuthenticated, hasKey bool) (string, error) {
	switch {
	case hasKey:
		return "your API key (direct model call)", nil
	case isAuthenticated:
		return "the hosted relay (monthly quota applies)", nil
	case cfg.Fallback.PlaceholderEnabled:
		return "the local placeholder (no model)", nil
	default:
		return "", fmt.Errorf("setup required")
	}
}

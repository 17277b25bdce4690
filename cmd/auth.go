package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryoshumei/add-to-calendar/internal/session"
)

var (
	revokeFlag bool
	statusOnly bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage relay authentication",
	Long: `Sign in through the hosted relay using OAuth 2.0.

The relay opens a browser window for Google consent and hands back a
session token once you approve. The session is encrypted at rest and
bound to this machine.

Examples:
  add-to-calendar auth                    # Sign in via the browser
  add-to-calendar auth --status           # Check authentication status
  add-to-calendar auth --revoke           # Sign out locally`,
	RunE: runAuthCmd,
}

func init() {
	authCmd.Flags().BoolVar(&revokeFlag, "revoke", false, "sign out and delete the local session")
	authCmd.Flags().BoolVar(&statusOnly, "status", false, "check authentication status only")
}

func runAuthCmd(cmd *cobra.Command, args []string) error {
	sessions, err := session.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	authenticator := session.NewAuthenticator(sessions, cfg.Relay.URL, cfg.Relay.Timeout)

	if statusOnly {
		state := sessions.Resolve()
		if !state.IsAuthenticated {
			fmt.Println("Not signed in (run 'add-to-calendar auth')")
			return nil
		}
		fmt.Printf("Signed in as %s\n", state.User.Email)
		if sessions.Expired() {
			fmt.Println("Session token expired; it will be refreshed on next use")
		}
		return nil
	}

	if revokeFlag {
		if err := authenticator.SignOut(); err != nil {
			return fmt.Errorf("failed to sign out: %w", err)
		}
		fmt.Println("Signed out")
		return nil
	}

	if state := sessions.Resolve(); state.IsAuthenticated && !sessions.Expired() {
		fmt.Printf("Already signed in as %s\n", state.User.Email)
		fmt.Println("Use --revoke to sign out or --status to check status")
		return nil
	}

	fmt.Println("Starting sign-in, a browser window will open...")
	user, err := authenticator.SignIn(cmd.Context())
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	if user != nil {
		fmt.Printf("Signed in as %s\n", user.Email)
	} else {
		fmt.Println("Signed in")
	}
	return nil
}

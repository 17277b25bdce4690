package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ryoshumei/add-to-calendar/internal/bridge"
	"github.com/ryoshumei/add-to-calendar/internal/logger"
	"github.com/ryoshumei/add-to-calendar/internal/notify"
	"github.com/ryoshumei/add-to-calendar/internal/pipeline"
	"github.com/ryoshumei/add-to-calendar/internal/session"
	"github.com/ryoshumei/add-to-calendar/internal/usage"
)

var noDesktopNotify bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the native messaging host for the browser extension",
	Long: `Speak the native-messaging protocol on stdin/stdout.

The browser launches this command via the native-messaging manifest and
streams length-prefixed JSON frames over the pipes. Each EXTRACT_SELECTION
frame is processed concurrently, with at most one request in flight per
tab. Logs go to stderr only; stdout belongs to the frame protocol.

The process exits cleanly when the browser closes the pipe.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noDesktopNotify, "no-desktop-notify", false, "disable desktop notification fallback for undeliverable errors")
}

func runServe(cmd *cobra.Command, args []string) error {
	sessions, err := session.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	usageStore := usage.NewStore(dataDir)

	notifier := notify.New(!noDesktopNotify)
	host := bridge.NewHost(os.Stdin, os.Stdout, cfg.Bridge, notifier)
	orchestrator := pipeline.NewOrchestrator(cfg, sessions, usageStore, host)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("native messaging host started", "relay", cfg.Relay.URL)

	return host.Run(ctx, func(ctx context.Context, tabID int64, selectedText string) {
		if strings.TrimSpace(selectedText) == "" {
			logger.Debug("ignoring trigger with empty selection", "tab", tabID)
			return
		}
		orchestrator.Handle(ctx, pipeline.NewRequest(tabID, selectedText))
	})
}

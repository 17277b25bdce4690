package bridge

import (
	"fmt"
	"io"

	"github.com/pkg/browser"
	"github.com/samber/lo"

	"github.com/ryoshumei/add-to-calendar/internal/event"
	"github.com/ryoshumei/add-to-calendar/internal/logger"
)

// Console renders the surface directives on a terminal instead of a
// browser page. Used by the one-shot extract command, where there is no
// page to deliver to and no acknowledgment protocol. The terminal outcome
// is recorded so the command can exit non-zero on failure.
type Console struct {
	out       io.Writer
	openAfter bool
	err       error
}

// NewConsole builds a terminal surface. With openAfter set, a confirmed
// extraction also opens the first event's calendar URL in the browser.
func NewConsole(out io.Writer, openAfter bool) *Console {
	return &Console{out: out, openAfter: openAfter}
}

func (c *Console) ShowStatus(_ int64, message, detail string) {
	c.printStatus(message, detail)
}

func (c *Console) UpdateStatus(_ int64, message, detail string) {
	c.printStatus(message, detail)
}

func (c *Console) HideStatus(int64) {}

func (c *Console) ShowConfirmation(_ int64, _ string, events []event.Event, calendarURL string, calendarURLs []string) error {
	titles := lo.Map(events, func(ev event.Event, _ int) string { return ev.Title })
	fmt.Fprintf(c.out, "Extracted %d event(s): %v\n", len(events), titles)

	for i, ev := range events {
		fmt.Fprintf(c.out, "\n[%d] %s\n", i+1, ev.Title)
		fmt.Fprintf(c.out, "    %s - %s\n", ev.StartTime, ev.EndTime)
		if ev.Location != "" {
			fmt.Fprintf(c.out, "    at %s\n", ev.Location)
		}
		if ev.Description != "" {
			fmt.Fprintf(c.out, "    %s\n", ev.Description)
		}
		if i < len(calendarURLs) {
			fmt.Fprintf(c.out, "    %s\n", calendarURLs[i])
		}
	}
	if len(calendarURLs) == 0 && calendarURL != "" {
		fmt.Fprintf(c.out, "\n%s\n", calendarURL)
	}

	if c.openAfter && calendarURL != "" {
		if err := browser.OpenURL(calendarURL); err != nil {
			logger.Warn("failed to open browser", "error", err)
			fmt.Fprintf(c.out, "Could not open browser: %v\n", err)
		}
	}
	return nil
}

func (c *Console) ShowAuthError(_ int64, message string) {
	fmt.Fprintf(c.out, "Authentication error: %s\nRun 'add-to-calendar auth' to sign in.\n", message)
	c.err = fmt.Errorf("authentication error: %s", message)
}

func (c *Console) ShowSetupRequired(int64) {
	fmt.Fprintln(c.out, "Setup required: run 'add-to-calendar auth' to sign in, or 'add-to-calendar config set-key' to use your own API key.")
	c.err = fmt.Errorf("setup required")
}

func (c *Console) ShowError(_ int64, message string) {
	fmt.Fprintf(c.out, "Error: %s\n", message)
	c.err = fmt.Errorf("%s", message)
}

// Err returns the terminal failure of the last request, or nil when it
// ended in a confirmation.
func (c *Console) Err() error {
	return c.err
}

func (c *Console) printStatus(message, detail string) {
	if detail != "" {
		fmt.Fprintf(c.out, "%s (%s)\n", message, detail)
		return
	}
	fmt.Fprintln(c.out, message)
}

// Package notify sends desktop notifications through notify-send. It is
// the last-resort channel for errors that cannot be shown in the page
// because the surface never acknowledged delivery.
package notify

import (
	"fmt"
	"os/exec"

	"github.com/ryoshumei/add-to-calendar/internal/logger"
)

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

type Notifier struct {
	enabled bool
	appName string
}

func New(enabled bool) *Notifier {
	return &Notifier{
		enabled: enabled,
		appName: "Add to Calendar",
	}
}

// Send shows a single desktop notification. Failures are logged and
// swallowed: a missing notify-send must not take the host down.
func (n *Notifier) Send(title, message string, urgency Urgency) error {
	if !n.enabled {
		return nil
	}

	args := []string{
		"--app-name", n.appName,
		"--urgency", string(urgency),
		"--icon", "x-office-calendar",
		title,
	}
	if message != "" {
		args = append(args, message)
	}

	cmd := exec.Command("notify-send", args...)
	if err := cmd.Run(); err != nil {
		logger.Warn("desktop notification failed", "error", err)
		return fmt.Errorf("notify-send failed: %w", err)
	}
	return nil
}

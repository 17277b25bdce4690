// Package calurl builds Google Calendar "create event" deep links. The
// builder never touches the network; the resulting URL pre-fills the
// manual event form and the user confirms by clicking.
package calurl

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ryoshumei/add-to-calendar/internal/event"
)

const baseURL = "https://calendar.google.com/calendar/render"

// maxDetailsLength keeps the description from blowing past practical URL
// length limits.
const maxDetailsLength = 1000

// BuildError reports a URL that could not be constructed. Upstream
// validation makes this unreachable in practice; it exists so a malformed
// event can never silently produce a broken link.
type BuildError struct {
	Field   string
	Message string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("calendar url build failed for %s: %s", e.Field, e.Message)
}

// Build returns the deep-link URL for one event. Identical input yields a
// byte-identical URL. The timezone is optional; pass "" to omit ctz.
func Build(ev event.Event, timezone string) (string, error) {
	if ev.StartTime == "" {
		return "", &BuildError{Field: "startTime", Message: "missing start time"}
	}
	if ev.EndTime == "" {
		return "", &BuildError{Field: "endTime", Message: "missing end time"}
	}

	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", ev.Title)

	details := ev.Description
	if runes := []rune(details); len(runes) > maxDetailsLength {
		details = string(runes[:maxDetailsLength])
	}
	params.Set("details", details)

	if ev.Location != "" {
		params.Set("location", ev.Location)
	}

	params.Set("dates", fmt.Sprintf("%s/%s", compact(ev.StartTime), compact(ev.EndTime)))

	if timezone != "" {
		params.Set("ctz", timezone)
	}

	return baseURL + "?" + params.Encode(), nil
}

// compact strips the separators from an ISO-local timestamp, producing the
// YYYYMMDDTHHMMSS form the dates parameter expects.
func compact(isoLocal string) string {
	s := strings.ReplaceAll(isoLocal, "-", "")
	return strings.ReplaceAll(s, ":", "")
}

// DetectTimezone returns the IANA name of the local timezone, or "" when
// it cannot be determined. Callers omit ctz in that case.
func DetectTimezone() string {
	name := time.Now().Location().String()
	if name == "" || name == "Local" {
		return ""
	}
	return name
}

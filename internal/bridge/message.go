// Package bridge carries messages between the coordinator and the
// in-page UI surface over the browser's native-messaging transport:
// length-prefixed JSON frames on stdin/stdout.
package bridge

import (
	"github.com/ryoshumei/add-to-calendar/internal/event"
)

// MessageType discriminates bridge frames.
type MessageType string

const (
	// Inbound triggers and acknowledgments
	MsgExtractSelection MessageType = "EXTRACT_SELECTION"
	MsgAck              MessageType = "ACK"

	// Outbound UI directives
	MsgShowStatus        MessageType = "SHOW_STATUS"
	MsgUpdateStatus      MessageType = "UPDATE_STATUS"
	MsgHideStatus        MessageType = "HIDE_STATUS"
	MsgShowConfirmation  MessageType = "SHOW_CONFIRMATION"
	MsgShowAuthError     MessageType = "SHOW_AUTH_ERROR"
	MsgShowSetupRequired MessageType = "SHOW_SETUP_REQUIRED"
	MsgError             MessageType = "ERROR"

	// MsgInjectSurface asks the extension to (re)inject the content
	// surface into the tab before a retry.
	MsgInjectSurface MessageType = "INJECT_SURFACE"
)

// Message is the single wire shape for all frame types; unused fields are
// omitted from the JSON.
type Message struct {
	Type         MessageType   `json:"type"`
	TabID        int64         `json:"tabId,omitempty"`
	RequestID    string        `json:"requestId,omitempty"`
	Message      string        `json:"message,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	SelectedText string        `json:"selectedText,omitempty"`
	Events       []event.Event `json:"events,omitempty"`
	CalendarURL  string        `json:"calendarUrl,omitempty"`
	CalendarURLs []string      `json:"calendarUrls,omitempty"`
	Received     bool          `json:"received,omitempty"`
}

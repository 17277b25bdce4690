package bridge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryoshumei/add-to-calendar/internal/event"
)

func TestConsoleErrNilAfterConfirmation(t *testing.T) {
	var out bytes.Buffer
	console := NewConsole(&out, false)

	events := []event.Event{{
		Title:     "Team Standup",
		StartTime: "2025-06-02T09:00:00",
		EndTime:   "2025-06-02T09:15:00",
	}}
	url := "https://calendar.google.com/calendar/render?action=TEMPLATE"

	require.NoError(t, console.ShowConfirmation(7, "7-1", events, url, []string{url}))
	assert.NoError(t, console.Err())
	assert.Contains(t, out.String(), "Team Standup")
	assert.Contains(t, out.String(), url)
}

func TestConsoleErrRecordsFailures(t *testing.T) {
	t.Run("generic error", func(t *testing.T) {
		console := NewConsole(&bytes.Buffer{}, false)
		console.ShowError(7, "something broke")
		require.Error(t, console.Err())
		assert.EqualError(t, console.Err(), "something broke")
	})

	t.Run("auth error", func(t *testing.T) {
		console := NewConsole(&bytes.Buffer{}, false)
		console.ShowAuthError(7, "session expired")
		require.Error(t, console.Err())
		assert.Contains(t, console.Err().Error(), "session expired")
	})

	t.Run("setup required", func(t *testing.T) {
		console := NewConsole(&bytes.Buffer{}, false)
		console.ShowSetupRequired(7)
		require.Error(t, console.Err())
	})
}

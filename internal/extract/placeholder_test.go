package extract

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPlaceholderTomorrowAtTen(t *testing.T) {
	// Friday evening: the event must land on Saturday 10:00, not skip to Monday
	now := time.Date(2025, 6, 6, 22, 45, 12, 0, time.Local)
	p := NewPlaceholderExtractorAt(fixedClock(now))

	result, err := p.Extract(context.Background(), "Lunch with Sam tomorrow at noon")
	require.NoError(t, err)
	require.Len(t, result.Events, 1)

	ev := result.Events[0]
	assert.Equal(t, "2025-06-07T10:00:00", ev.StartTime)
	assert.Equal(t, "2025-06-07T11:00:00", ev.EndTime)
	assert.NoError(t, ev.Validate())
}

func TestPlaceholderOneHourDuration(t *testing.T) {
	now := time.Date(2025, 1, 31, 8, 0, 0, 0, time.Local)
	p := NewPlaceholderExtractorAt(fixedClock(now))

	result, err := p.Extract(context.Background(), "anything")
	require.NoError(t, err)

	start, err := result.Events[0].Start()
	require.NoError(t, err)
	end, err := result.Events[0].End()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, end.Sub(start))
	// Month rollover: Jan 31 + 1 day = Feb 1
	assert.Equal(t, "2025-02-01T10:00:00", result.Events[0].StartTime)
}

func TestPlaceholderTitle(t *testing.T) {
	p := NewPlaceholderExtractorAt(fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)))

	t.Run("short text kept verbatim", func(t *testing.T) {
		result, err := p.Extract(context.Background(), "Lunch with Sam tomorrow at noon")
		require.NoError(t, err)
		assert.Equal(t, "Lunch with Sam tomorrow at noon", result.Events[0].Title)
		assert.Contains(t, result.Events[0].Description, "Lunch with Sam tomorrow at noon")
	})

	t.Run("long text truncated with ellipsis", func(t *testing.T) {
		long := strings.Repeat("a", 250)
		result, err := p.Extract(context.Background(), long)
		require.NoError(t, err)

		title := result.Events[0].Title
		assert.True(t, strings.HasSuffix(title, "..."))
		assert.Len(t, title, 103)
		// The description still references the full original text
		assert.Contains(t, result.Events[0].Description, long)
	})

	t.Run("multi-byte text truncated on rune boundaries", func(t *testing.T) {
		long := strings.Repeat("会", 250)
		result, err := p.Extract(context.Background(), long)
		require.NoError(t, err)

		title := result.Events[0].Title
		assert.True(t, utf8.ValidString(title))
		assert.True(t, strings.HasSuffix(title, "..."))
		assert.Equal(t, 103, utf8.RuneCountInString(title))
		assert.Equal(t, strings.Repeat("会", 100)+"...", title)
	})
}

func TestPlaceholderNeverFailsValidation(t *testing.T) {
	p := NewPlaceholderExtractorAt(fixedClock(time.Date(2025, 12, 31, 23, 59, 59, 0, time.Local)))

	for _, text := range []string{"x", "no dates here at all", strings.Repeat("y", 5000)} {
		result, err := p.Extract(context.Background(), text)
		require.NoError(t, err)
		require.Len(t, result.Events, 1)
		assert.NoError(t, result.Validate())
	}
}

func TestPlaceholderStrategy(t *testing.T) {
	assert.Equal(t, StrategyPlaceholder, NewPlaceholderExtractor().Strategy())
}

var _ Extractor = (*PlaceholderExtractor)(nil)

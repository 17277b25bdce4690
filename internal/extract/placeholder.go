package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/ryoshumei/add-to-calendar/internal/event"
)

const maxPlaceholderTitle = 100

// PlaceholderExtractor fabricates exactly one event from the raw text:
// tomorrow at 10:00 local for one hour, titled with the leading text.
// By construction it never fails validation and never touches the
// network.
type PlaceholderExtractor struct {
	now func() time.Time
}

func NewPlaceholderExtractor() *PlaceholderExtractor {
	return &PlaceholderExtractor{now: time.Now}
}

// NewPlaceholderExtractorAt pins the clock, for tests.
func NewPlaceholderExtractorAt(now func() time.Time) *PlaceholderExtractor {
	return &PlaceholderExtractor{now: now}
}

func (p *PlaceholderExtractor) Strategy() Strategy {
	return StrategyPlaceholder
}

func (p *PlaceholderExtractor) Extract(_ context.Context, text string) (*event.ExtractionResult, error) {
	now := p.now()
	tomorrow := now.AddDate(0, 0, 1)
	start := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 10, 0, 0, 0, now.Location())
	end := start.Add(time.Hour)

	// Truncate on rune boundaries so multi-byte text is never split
	title := text
	if runes := []rune(title); len(runes) > maxPlaceholderTitle {
		title = string(runes[:maxPlaceholderTitle]) + "..."
	}

	ev := event.Event{
		Title:       title,
		Description: fmt.Sprintf("Event created from selected text: %q", text),
		StartTime:   start.Format(event.TimeLayout),
		EndTime:     end.Format(event.TimeLayout),
		Location:    "",
	}

	return &event.ExtractionResult{Events: []event.Event{ev}}, nil
}

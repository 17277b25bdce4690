package extract

import (
	"fmt"
	"time"
)

// The prompt contract is shared by the relay and the local
// credential-based strategy so both produce the same event shape.

// SystemPrompt builds the extraction instruction with the current
// date/time injected so the model can resolve relative dates.
func SystemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are a JSON API that extracts event details from text. Return ONLY a raw JSON object with an "events" array containing one or more event objects:
{
    "events": [
        {
            "title": "event title",
            "description": "brief description",
            "startTime": "YYYY-MM-DDTHH:mm:ss",
            "endTime": "YYYY-MM-DDTHH:mm:ss",
            "location": "location if mentioned, include online link if available"
        }
    ]
}
Current time is: %s
For relative dates, use the current time as reference.
If no specific time mentioned, assume 10:00 AM for 1 hour.
If the text contains multiple events, extract ALL of them as separate objects in the array.
If only one event is found, still return it inside the events array.
DO NOT include any markdown formatting, code blocks, or extra text.
ONLY return the JSON object itself.`, now.Format("1/2/2006, 3:04:05 PM"))
}

// UserPrompt frames the selected text for the model.
func UserPrompt(text string, now time.Time) string {
	return fmt.Sprintf("Time: %s\nText: %s", now.Format("1/2/2006, 3:04:05 PM"), text)
}

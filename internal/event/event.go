package event

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimeLayout is the wire format for event times: a local wall-clock
// timestamp with no zone designator.
const TimeLayout = "2006-01-02T15:04:05"

var timePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}$`)

// Event is a single calendar event candidate extracted from text.
type Event struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Location    string `json:"location,omitempty"`
}

// ValidationError reports which field of an extracted event failed
// validation and why.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("validation failed for %s=%s: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Validate checks the required fields, the timestamp pattern and the
// start-before-end ordering. Any failure rejects the whole event.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return NewValidationError("title", "", "title is required")
	}
	if e.StartTime == "" {
		return NewValidationError("startTime", "", "startTime is required")
	}
	if e.EndTime == "" {
		return NewValidationError("endTime", "", "endTime is required")
	}
	if !timePattern.MatchString(e.StartTime) {
		return NewValidationError("startTime", e.StartTime, "must match YYYY-MM-DDTHH:mm:ss")
	}
	if !timePattern.MatchString(e.EndTime) {
		return NewValidationError("endTime", e.EndTime, "must match YYYY-MM-DDTHH:mm:ss")
	}

	start, err := time.Parse(TimeLayout, e.StartTime)
	if err != nil {
		return NewValidationError("startTime", e.StartTime, "not a valid timestamp")
	}
	end, err := time.Parse(TimeLayout, e.EndTime)
	if err != nil {
		return NewValidationError("endTime", e.EndTime, "not a valid timestamp")
	}
	if !start.Before(end) {
		return NewValidationError("startTime", e.StartTime, "start time must be before end time")
	}

	return nil
}

// Start parses the start timestamp. Call Validate first.
func (e *Event) Start() (time.Time, error) {
	return time.Parse(TimeLayout, e.StartTime)
}

// End parses the end timestamp. Call Validate first.
func (e *Event) End() (time.Time, error) {
	return time.Parse(TimeLayout, e.EndTime)
}

// ExtractionResult is a validated, non-empty sequence of events in the
// order the model produced them.
type ExtractionResult struct {
	Events []Event `json:"events"`
}

// Validate rejects empty results and results containing any invalid
// event. There is no partial acceptance.
func (r *ExtractionResult) Validate() error {
	if len(r.Events) == 0 {
		return NewValidationError("events", "", "no events extracted")
	}
	for i := range r.Events {
		if err := r.Events[i].Validate(); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

// ParseResult normalizes a raw model or relay payload into the canonical
// events-array shape. Older revisions of the extension returned a bare
// event object instead of {"events": [...]}; both shapes are accepted here
// and nowhere else.
func ParseResult(data []byte) (*ExtractionResult, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, NewValidationError("body", "", "empty payload")
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(trimmed), &result); err == nil && len(result.Events) > 0 {
		if err := result.Validate(); err != nil {
			return nil, err
		}
		return &result, nil
	}

	// Legacy shape: a single bare event object
	var single Event
	if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	result = ExtractionResult{Events: []Event{single}}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

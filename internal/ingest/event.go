package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"audit-trail/internal/audit"
)

// Event is one inbound audit event as published by an upstream service.
// EventID and SourceService feed the dedup gate; the rest is the record to create.
type Event struct {
	EventID       string `json:"event_id,omitempty"`
	SourceService string `json:"source_service,omitempty"`
	audit.CreateInput
}

// DecodeEvent parses a JSON event. Unknown fields are ignored.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	ev.EventID = strings.TrimSpace(ev.EventID)
	ev.SourceService = strings.TrimSpace(ev.SourceService)
	return ev, nil
}

func (e Event) source() string {
	if e.SourceService == "" {
		return "unknown"
	}
	return e.SourceService
}

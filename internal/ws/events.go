package ws

import (
	"strings"
	"time"
)

type EventType string

const (
	EventAnnotationsUpdated  EventType = "annotations.updated"
	EventAttendanceRecorded  EventType = "attendance.recorded"
	EventEnrollmentCompleted EventType = "enrollment.completed"
	EventIdentityDeleted     EventType = "identity.deleted"
)

type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// ParseEventTypes reads a comma separated subscription list. An empty list
// subscribes to everything and returns nil.
func ParseEventTypes(raw string) map[EventType]bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	types := make(map[EventType]bool)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types[EventType(part)] = true
		}
	}
	if len(types) == 0 {
		return nil
	}
	return types
}

package model

import "fmt"

// EventType classifies a normalized realtime push message.
type EventType string

const (
	EventAssigned      EventType = "assigned"
	EventStatusChanged EventType = "status_changed"
	EventCancelled     EventType = "cancelled"
)

// JobEvent is the canonical internal representation of a push notification
// after normalization. Raw backend field names never leak past this shape.
type JobEvent struct {
	Kind            JobKind
	JobID           string
	Type            EventType
	Status          JobStatus // target status for StatusChanged events
	Job             Job       // full payload for Assigned events
	ServerTimestamp string
	DedupeKey       string
}

// Key returns the identity of the job the event refers to.
func (e JobEvent) Key() JobKey {
	return JobKey{Kind: e.Kind, ID: e.JobID}
}

// ComputeDedupeKey derives the identifier used to discard repeated
// deliveries of the same logical event.
func ComputeDedupeKey(jobID string, eventType EventType, serverTimestamp string) string {
	return fmt.Sprintf("%s|%s|%s", jobID, eventType, serverTimestamp)
}

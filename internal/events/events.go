// Package events defines the operational events the relay publishes over
// Redis Pub/Sub for the admin dashboard's live feed.
package events

import "time"

// Event types.
const (
	TypeFileArchived      = "file_archived"
	TypeSweepCompleted    = "sweep_completed"
	TypeBroadcastFinished = "broadcast_finished"
)

// Event is one entry in the live operational feed.
type Event struct {
	Type   string    `json:"type"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// New builds an event stamped with the current time.
func New(eventType, detail string) Event {
	return Event{Type: eventType, Detail: detail, At: time.Now()}
}

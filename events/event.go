// Package events carries domain events from the web process to the notifier
// over RabbitMQ. Publishing is best effort and happens after a transaction commits.
package events

import "time"

// Event types.
const (
	SubmissionCreated       = "submission.created"
	SubmissionStatusChanged = "submission.status_changed"
	ClaimCreated            = "claim.created"
	ClaimStatusChanged      = "claim.status_changed"
	PointsChanged           = "points.changed"
)

// Event is the JSON body of every message.
type Event struct {
	Type         string    `json:"type"`
	OccurredAt   time.Time `json:"occurred_at"`
	UserID       uint      `json:"user_id"`
	ActorID      uint      `json:"actor_id,omitempty"`
	SubmissionID uint      `json:"submission_id,omitempty"`
	TrackID      string    `json:"track_id,omitempty"`
	ClaimID      uint      `json:"claim_id,omitempty"`
	ReferenceID  string    `json:"reference_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	Points       int       `json:"points,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// New stamps an event of type t for the given recipient.
func New(t string, userID uint) Event {
	return Event{Type: t, UserID: userID, OccurredAt: time.Now().UTC()}
}

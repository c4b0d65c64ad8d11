package domain

import "time"

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventTypeStatusChanged    EventType = "session.status_changed"
	EventTypeArtifactCreated  EventType = "session.artifact_created"
	EventTypeReviewCreated    EventType = "session.review_created"
	EventTypeRankingCreated   EventType = "session.ranking_created"
	EventTypeSessionCompleted EventType = "session.completed"
	EventTypeSessionFailed    EventType = "session.failed"
)

// Event is published on every session transition and entity creation so
// external observers (the websocket stream) can follow a run live.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

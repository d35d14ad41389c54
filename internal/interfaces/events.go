package interfaces

import (
	"context"
	"time"
)

// EventType identifies a pipeline event
type EventType string

const (
	EventJobCreated      EventType = "job_created"
	EventJobStateChanged EventType = "job_state_changed"
	EventJobFailed       EventType = "job_failed"
	EventJobCancelled    EventType = "job_cancelled"
	EventStageProgress   EventType = "stage_progress"
	EventExportCompleted EventType = "export_completed"
)

// Event is a pipeline notification
type Event struct {
	Type      EventType              `json:"type"`
	JobID     string                 `json:"job_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler processes an event
type EventHandler func(ctx context.Context, event Event) error

// EventService provides pub/sub for pipeline events
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
	PublishSync(ctx context.Context, event Event) error
}

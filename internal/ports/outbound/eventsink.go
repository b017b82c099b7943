package outbound

import (
	"context"
	"time"
)

// StageEvent is published on every stage transition of a flow.
type StageEvent struct {
	// FlowID identifies one pipeline instance.
	FlowID string `json:"flowId"`

	// Flow is the pipeline name ("sell", "buy", ...).
	Flow string `json:"flow"`

	// Index is the zero-based position of the stage; -1 for the pipeline itself.
	Index int `json:"index"`

	// Title is the stage title, or the flow name for pipeline events.
	Title string `json:"title"`

	// Status is the status entered: default, loading, success or error.
	Status string `json:"status"`

	// Error holds the failure message when Status is error.
	Error string `json:"error,omitempty"`

	// At is when the transition happened.
	At time.Time `json:"at"`
}

// EventSink defines the interface for publishing stage events.
type EventSink interface {
	// Publish publishes one stage transition.
	Publish(ctx context.Context, event StageEvent) error

	// Close closes the sink and releases any resources.
	Close() error
}

// Package announce posts stage and project status transitions to chat
// platforms (Slack, Discord).
package announce

import "context"

// Adapter is implemented by each chat platform. Adapters are send-only.
type Adapter interface {
	// Name identifies the platform in logs, e.g. "slack".
	Name() string

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close releases the platform connection.
	Close() error
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string           // target channel; empty uses the adapter default
	Text      string           // message text (platform-native formatting)
	Events    []FormattedEvent // structured event attachments
}

// FormattedEvent is a status transition formatted for display in chat.
type FormattedEvent struct {
	Title    string  // event headline (e.g. "Stage Design completed")
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint (e.g. "#36a64f" for success)
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Package primary defines the primary ports (driving interfaces) of the
// application, plus the request/response DTOs exchanged across them.
package primary

import (
	"context"
	"time"
)

// MailService defines the primary port for the mail transport.
type MailService interface {
	// Send validates the recipient, serializes the message and delivers it
	// into the recipient's unread region. Returns the message id.
	Send(ctx context.Context, req SendRequest) (string, error)

	// Inbox lists an agent's mailbox in creation order. Foreign-format
	// entries are reported as such, never field-split.
	Inbox(ctx context.Context, agentID string, f InboxFilters) ([]*MessageSummary, error)

	// Read returns a full message. Unless peek is set it atomically moves
	// the message from the unread to the read region; a second non-peek
	// read of the same id fails.
	Read(ctx context.Context, agentID, messageID string, peek bool) (*Message, error)

	// UnreadCount returns the number of unread messages for an agent.
	UnreadCount(ctx context.Context, agentID string) (int, error)
}

// SendRequest contains parameters for sending a message.
type SendRequest struct {
	From     string
	To       string
	Type     string
	Priority string // defaults to medium
	Subject  string
	Body     string
}

// InboxFilters narrows an inbox listing.
type InboxFilters struct {
	UnreadOnly bool
	Type       string
}

// Message is a full message at the port boundary.
type Message struct {
	ID        string
	From      string
	To        string
	Type      string
	Priority  string
	Subject   string
	Body      string
	Timestamp time.Time
	Read      bool
}

// MessageSummary is one inbox listing line.
type MessageSummary struct {
	ID        string
	From      string
	Type      string
	Priority  string
	Subject   string
	Timestamp time.Time
	Read      bool
	Foreign   bool
	RawName   string
}

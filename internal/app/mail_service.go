// Package app implements the primary ports by composing the functional core
// with the secondary ports. Services hold no state beyond their injected
// dependencies.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	coremail "github.com/example/guild/internal/core/mail"
	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/ports/secondary"
)

// MailServiceImpl implements the MailService interface.
type MailServiceImpl struct {
	mailboxes secondary.MailboxStore
	log       zerolog.Logger
	now       func() time.Time
}

// NewMailService creates a new MailService with injected dependencies.
func NewMailService(mailboxes secondary.MailboxStore, log zerolog.Logger) *MailServiceImpl {
	return &MailServiceImpl{
		mailboxes: mailboxes,
		log:       log,
		now:       time.Now,
	}
}

// Send validates and delivers one message.
func (s *MailServiceImpl) Send(ctx context.Context, req primary.SendRequest) (string, error) {
	if req.From == "" {
		return "", fmt.Errorf("sender is required")
	}
	// Header fields land on single lines of the message file; a line break
	// in any of them would render the delivered file undecodable.
	if strings.ContainsAny(req.From, "\r\n") {
		return "", fmt.Errorf("sender must not contain line breaks")
	}
	if strings.ContainsAny(req.To, "\r\n") {
		return "", fmt.Errorf("recipient must not contain line breaks")
	}
	if strings.ContainsAny(req.Subject, "\r\n") {
		return "", fmt.Errorf("subject must not contain line breaks")
	}
	typ := coremail.Type(req.Type)
	if !coremail.ValidType(typ) {
		return "", fmt.Errorf("invalid message type: %s", req.Type)
	}
	priority := coremail.Priority(req.Priority)
	if req.Priority == "" {
		priority = coremail.DefaultPriority()
	}
	if !coremail.ValidPriority(priority) {
		return "", fmt.Errorf("invalid priority: %s", req.Priority)
	}

	// Recipient validation happens before any file is written, so a failed
	// send leaves no trace anywhere.
	ok, err := s.mailboxes.Exists(ctx, req.To)
	if err != nil {
		return "", fmt.Errorf("failed to check mailbox: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", fault.ErrUnknownRecipient, req.To)
	}

	stamp := s.now().UTC()
	id := coremail.NewID(stamp, req.From, typ, req.Subject)
	rec := &secondary.MessageRecord{
		ID:        id.Filename(),
		Sender:    req.From,
		Recipient: req.To,
		Type:      string(typ),
		Priority:  string(priority),
		Subject:   req.Subject,
		Body:      req.Body,
		Timestamp: stamp,
	}
	if err := s.mailboxes.Deliver(ctx, req.To, rec); err != nil {
		return "", fmt.Errorf("failed to deliver message: %w", err)
	}

	s.log.Debug().
		Str("from", req.From).
		Str("to", req.To).
		Str("type", string(typ)).
		Str("message_id", rec.ID).
		Msg("message delivered")
	return rec.ID, nil
}

// Inbox lists an agent's mailbox.
func (s *MailServiceImpl) Inbox(ctx context.Context, agentID string, f primary.InboxFilters) ([]*primary.MessageSummary, error) {
	ok, err := s.mailboxes.Exists(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check mailbox: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", fault.ErrUnknownRecipient, agentID)
	}

	summaries, err := s.mailboxes.List(ctx, agentID, secondary.MessageFilters{
		UnreadOnly: f.UnreadOnly,
		Type:       f.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list mailbox: %w", err)
	}

	out := make([]*primary.MessageSummary, 0, len(summaries))
	for _, rec := range summaries {
		out = append(out, &primary.MessageSummary{
			ID:        rec.ID,
			From:      rec.Sender,
			Type:      rec.Type,
			Priority:  rec.Priority,
			Subject:   rec.Subject,
			Timestamp: rec.Timestamp,
			Read:      rec.Read,
			Foreign:   rec.Foreign,
			RawName:   rec.RawName,
		})
	}
	return out, nil
}

// Read returns a full message, marking it read unless peek is set.
func (s *MailServiceImpl) Read(ctx context.Context, agentID, messageID string, peek bool) (*primary.Message, error) {
	rec, err := s.mailboxes.Get(ctx, agentID, messageID)
	if err != nil {
		return nil, err
	}

	if !peek {
		if rec.Read {
			// A consuming read promises exactly-once consumption; a
			// message already in the read region is no longer available
			// to it.
			return nil, fmt.Errorf("%w: message %s already read", fault.ErrNotFound, messageID)
		}
		if err := s.mailboxes.CommitRead(ctx, agentID, messageID); err != nil {
			return nil, fmt.Errorf("failed to commit read: %w", err)
		}
		rec.Read = true
	}

	return &primary.Message{
		ID:        rec.ID,
		From:      rec.Sender,
		To:        rec.Recipient,
		Type:      rec.Type,
		Priority:  rec.Priority,
		Subject:   rec.Subject,
		Body:      rec.Body,
		Timestamp: rec.Timestamp,
		Read:      rec.Read,
	}, nil
}

// UnreadCount returns the number of unread messages for an agent.
func (s *MailServiceImpl) UnreadCount(ctx context.Context, agentID string) (int, error) {
	ok, err := s.mailboxes.Exists(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("failed to check mailbox: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", fault.ErrUnknownRecipient, agentID)
	}
	return s.mailboxes.UnreadCount(ctx, agentID)
}

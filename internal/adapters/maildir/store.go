// Package maildir contains the filesystem implementation of the mailbox
// store. Each agent owns one directory with an unread and a read region;
// every message is one discrete file and moves between regions by rename.
package maildir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/secondary"
)

const (
	unreadDir = "unread"
	readDir   = "read"
)

// Store implements secondary.MailboxStore on a directory tree rooted at
// <root>/<agent>/{unread,read}/<message-id>.
type Store struct {
	root string
}

// NewStore creates a mailbox store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the mailbox root directory (watched by the inbox watcher).
func (s *Store) Root() string { return s.root }

// UnreadDir returns the unread region path of one agent's mailbox.
func (s *Store) UnreadDir(agentID string) string {
	return filepath.Join(s.root, agentID, unreadDir)
}

func (s *Store) readRegion(agentID string) string {
	return filepath.Join(s.root, agentID, readDir)
}

// Exists reports whether the agent has a registered mailbox.
func (s *Store) Exists(ctx context.Context, agentID string) (bool, error) {
	info, err := os.Stat(filepath.Join(s.root, agentID))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat mailbox for %s: %w", agentID, fault.ErrIO)
	}
	return info.IsDir(), nil
}

// Create provisions both regions of the agent's mailbox.
func (s *Store) Create(ctx context.Context, agentID string) error {
	for _, region := range []string{s.UnreadDir(agentID), s.readRegion(agentID)} {
		if err := os.MkdirAll(region, 0o755); err != nil {
			return fmt.Errorf("failed to create mailbox for %s: %w", agentID, fault.ErrIO)
		}
	}
	return nil
}

// Deliver writes the message into the unread region via temp file + rename,
// so a concurrent reader never observes a half-written message. The temp
// file lives outside the unread region to keep watchers from seeing it.
func (s *Store) Deliver(ctx context.Context, agentID string, rec *secondary.MessageRecord) error {
	ok, err := s.Exists(ctx, agentID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no mailbox for %s: %w", agentID, fault.ErrUnknownRecipient)
	}

	tmp := filepath.Join(s.root, agentID, ".deliver-"+rec.ID)
	if err := os.WriteFile(tmp, encodeMessage(rec), 0o644); err != nil {
		return fmt.Errorf("failed to write message %s: %w", rec.ID, fault.ErrIO)
	}
	final := filepath.Join(s.UnreadDir(agentID), rec.ID)
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to deliver message %s: %w", rec.ID, fault.ErrIO)
	}
	return nil
}

// List returns summaries of both regions merged in creation order (message
// ids sort chronologically). Files whose header block does not decode are
// reported as foreign with only their raw filename.
func (s *Store) List(ctx context.Context, agentID string, f secondary.MessageFilters) ([]*secondary.MessageSummary, error) {
	ok, err := s.Exists(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no mailbox for %s: %w", agentID, fault.ErrNotFound)
	}

	var summaries []*secondary.MessageSummary
	regions := []struct {
		dir  string
		read bool
	}{{s.UnreadDir(agentID), false}, {s.readRegion(agentID), true}}

	for _, region := range regions {
		if f.UnreadOnly && region.read {
			continue
		}
		entries, err := os.ReadDir(region.dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan mailbox for %s: %w", agentID, fault.ErrIO)
		}
		for _, entry := range entries {
			if entry.IsDir() || entry.Name()[0] == '.' {
				continue
			}
			summary := s.summarize(region.dir, entry.Name(), region.read)
			if f.Type != "" && (summary.Foreign || summary.Type != f.Type) {
				continue
			}
			summaries = append(summaries, summary)
		}
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].RawName < summaries[j].RawName })
	return summaries, nil
}

// summarize builds one listing entry from a mailbox file. The header block
// is authoritative; a file that does not decode is foreign no matter how its
// filename is shaped.
func (s *Store) summarize(dir, name string, read bool) *secondary.MessageSummary {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return &secondary.MessageSummary{RawName: name, Foreign: true, Read: read}
	}
	rec, err := decodeMessage(data)
	if err != nil {
		return &secondary.MessageSummary{RawName: name, Foreign: true, Read: read}
	}
	return &secondary.MessageSummary{
		ID:        name,
		Sender:    rec.Sender,
		Type:      rec.Type,
		Priority:  rec.Priority,
		Subject:   rec.Subject,
		Timestamp: rec.Timestamp,
		Read:      read,
		RawName:   name,
	}
}

// Get retrieves a full message from either region.
func (s *Store) Get(ctx context.Context, agentID, messageID string) (*secondary.MessageRecord, error) {
	for _, region := range []struct {
		dir  string
		read bool
	}{{s.UnreadDir(agentID), false}, {s.readRegion(agentID), true}} {
		data, err := os.ReadFile(filepath.Join(region.dir, messageID))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read message %s: %w", messageID, fault.ErrIO)
		}
		rec, err := decodeMessage(data)
		if err != nil {
			return nil, fmt.Errorf("message %s is not a mail-format file: %w", messageID, fault.ErrNotFound)
		}
		rec.ID = messageID
		rec.Read = region.read
		return rec, nil
	}
	return nil, fmt.Errorf("message %s: %w", messageID, fault.ErrNotFound)
}

// CommitRead moves the message from unread to read in one rename, so no
// concurrent scan observes it in neither or both regions.
func (s *Store) CommitRead(ctx context.Context, agentID, messageID string) error {
	src := filepath.Join(s.UnreadDir(agentID), messageID)
	dst := filepath.Join(s.readRegion(agentID), messageID)
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("message %s not in unread region: %w", messageID, fault.ErrNotFound)
		}
		return fmt.Errorf("failed to commit read of %s: %w", messageID, fault.ErrIO)
	}
	return nil
}

// UnreadCount counts files in the unread region, foreign ones included: any
// unread file is pending agent attention.
func (s *Store) UnreadCount(ctx context.Context, agentID string) (int, error) {
	entries, err := os.ReadDir(s.UnreadDir(agentID))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to scan mailbox for %s: %w", agentID, fault.ErrIO)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && entry.Name()[0] != '.' {
			count++
		}
	}
	return count, nil
}

// Owners lists the agents that currently have a mailbox.
func (s *Store) Owners(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mailbox root: %w", fault.ErrIO)
	}
	var owners []string
	for _, entry := range entries {
		if entry.IsDir() {
			owners = append(owners, entry.Name())
		}
	}
	sort.Strings(owners)
	return owners, nil
}

// Ensure Store implements the interface.
var _ secondary.MailboxStore = (*Store)(nil)

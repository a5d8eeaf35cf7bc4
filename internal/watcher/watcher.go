// Package watcher turns mailbox deliveries into agent dispatches. It pairs
// filesystem notifications with a periodic rescan so a missed event only
// delays a dispatch instead of losing it.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/ports/secondary"
)

// Watcher observes the unread region of every mailbox and dispatches the
// owning agent once per newly observed message.
type Watcher struct {
	root         string // mailboxes directory
	mailboxes    secondary.MailboxStore
	orchestrator primary.Orchestrator
	interval     time.Duration
	log          zerolog.Logger

	mu      sync.Mutex
	seen    map[string]map[string]bool // agent id -> message id -> dispatched
	watched map[string]bool            // unread dirs already registered
}

// New creates a watcher over the given mailboxes directory.
func New(root string, mailboxes secondary.MailboxStore, orchestrator primary.Orchestrator, interval time.Duration, log zerolog.Logger) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		root:         root,
		mailboxes:    mailboxes,
		orchestrator: orchestrator,
		interval:     interval,
		log:          log,
		seen:         make(map[string]map[string]bool),
		watched:      make(map[string]bool),
	}
}

// Run blocks until ctx is cancelled. The initial scan marks pre-existing
// unread mail as pending work, so agents with a backlog are dispatched at
// startup too.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.root); err != nil {
		// keep running on the poll path alone
		w.log.Warn().Err(err).Str("dir", w.root).Msg("cannot watch mailboxes directory")
	}

	w.scan(ctx, fsw)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.scan(ctx, fsw)
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
				w.scan(ctx, fsw)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("filesystem watch error")
		}
	}
}

// scan walks every mailbox and dispatches owners of unseen unread messages.
// Mailboxes appearing or vanishing between scans are tolerated.
func (w *Watcher) scan(ctx context.Context, fsw *fsnotify.Watcher) {
	owners, err := w.mailboxes.Owners(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("cannot enumerate mailboxes")
		return
	}

	for _, agentID := range owners {
		w.ensureWatched(fsw, agentID)

		summaries, err := w.mailboxes.List(ctx, agentID, secondary.MessageFilters{UnreadOnly: true})
		if err != nil {
			w.log.Warn().Err(err).Str("agent", agentID).Msg("cannot list mailbox")
			continue
		}

		pending := w.markSeen(agentID, summaries)
		if len(pending) == 0 {
			continue
		}

		// One dispatch covers every new message in this scan: the agent
		// drains its whole mailbox per activation anyway.
		if err := w.orchestrator.Dispatch(ctx, agentID); err != nil {
			w.log.Error().Err(err).Str("agent", agentID).Msg("dispatch failed")
			w.forget(agentID, pending)
			continue
		}
		w.log.Info().
			Str("agent", agentID).
			Int("new_messages", len(pending)).
			Msg("agent dispatched")
	}
}

// markSeen records the given messages and returns the keys that were new in
// this scan. Only those may be forgotten on a dispatch failure; messages
// covered by an earlier successful dispatch stay marked.
func (w *Watcher) markSeen(agentID string, summaries []*secondary.MessageSummary) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	byID, ok := w.seen[agentID]
	if !ok {
		byID = make(map[string]bool)
		w.seen[agentID] = byID
	}
	var newKeys []string
	for _, s := range summaries {
		key := s.ID
		if s.Foreign {
			key = s.RawName
		}
		if !byID[key] {
			byID[key] = true
			newKeys = append(newKeys, key)
		}
	}
	return newKeys
}

// forget unmarks messages whose dispatch failed so the next scan retries.
func (w *Watcher) forget(agentID string, keys []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	byID := w.seen[agentID]
	for _, key := range keys {
		delete(byID, key)
	}
}

// ensureWatched registers the agent's unread directory with fsnotify once.
func (w *Watcher) ensureWatched(fsw *fsnotify.Watcher, agentID string) {
	dir := filepath.Join(w.root, agentID, "unread")
	w.mu.Lock()
	already := w.watched[dir]
	w.mu.Unlock()
	if already {
		return
	}
	if _, err := os.Stat(dir); err != nil {
		return
	}
	if err := fsw.Add(dir); err != nil {
		w.log.Warn().Err(err).Str("dir", dir).Msg("cannot watch unread directory")
		return
	}
	w.mu.Lock()
	w.watched[dir] = true
	w.mu.Unlock()
}

// Package notify delivers operator alerts (de-risk orders, suppressed limit
// breaches, exchange failures) to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an alert out to every sender. Events can be restricted to an
// allow list, and repeats of the same event and title inside the cooldown
// are dropped so a condition that persists across cycles alerts once.
type Notifier struct {
	senders  []Sender
	events   map[string]bool
	cooldown time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	sent map[string]time.Time
	now  func() time.Time
}

// NewNotifier creates a Notifier. An empty events list allows every event;
// a zero cooldown disables de-duplication.
func NewNotifier(senders []Sender, events []string, cooldown time.Duration, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		cooldown: cooldown,
		logger:   logger.With(slog.String("component", "notifier")),
		sent:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Notify delivers the alert when event is allowed and not cooling down.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	if !n.claim(event + "|" + title) {
		n.logger.DebugContext(ctx, "event cooling down", slog.String("event", event), slog.String("title", title))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// claim records a send of key and reports whether it is outside the
// cooldown.
func (n *Notifier) claim(key string) bool {
	if n.cooldown <= 0 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	if last, ok := n.sent[key]; ok && now.Sub(last) < n.cooldown {
		return false
	}
	n.sent[key] = now
	return true
}

// Package notify delivers best-effort lifecycle notifications to
// supervisor chat channels and customers.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/shubh-37/blown-salon-voice-agent/internal/models"
)

// Event kinds.
const (
	KindNewRequest      = "new_request"
	KindRequestResolved = "request_resolved"
	KindRequestTimeout  = "request_timeout"
)

// Event describes a help-request lifecycle change worth telling a
// human about.
type Event struct {
	Kind     string
	Request  *models.HelpRequest
	Response string // supervisor answer, set for resolved events
}

// Adapter delivers an event to one destination.
type Adapter interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Notifier fans an event out to all configured adapters. Best-effort:
// adapter failures are logged and never returned, so a broken chat
// integration cannot fail a resolve or create call.
type Notifier struct {
	adapters []Adapter
}

// New creates a notifier over the given adapters.
func New(adapters ...Adapter) *Notifier {
	return &Notifier{adapters: adapters}
}

// Notify delivers ev to every adapter.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	if n == nil {
		return
	}
	for _, a := range n.adapters {
		if err := a.Send(ctx, ev); err != nil {
			log.Printf("notify: %s: %v", a.Name(), err)
		}
	}
}

// formatEvent renders an event as a single chat message.
func formatEvent(ev Event) string {
	switch ev.Kind {
	case KindNewRequest:
		return fmt.Sprintf("New help request %s from %s: %q",
			ev.Request.ID, ev.Request.CustomerPhone, ev.Request.Question)
	case KindRequestResolved:
		return fmt.Sprintf("Request %s resolved: %q", ev.Request.ID, ev.Response)
	case KindRequestTimeout:
		return fmt.Sprintf("Request %s timed out unanswered: %q",
			ev.Request.ID, ev.Request.Question)
	default:
		return fmt.Sprintf("Request %s: %s", ev.Request.ID, ev.Kind)
	}
}

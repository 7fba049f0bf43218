package notify

import (
	"context"
	"log"
)

// CustomerLog stands in for an SMS gateway: it logs the callback a
// real integration would send to the customer after a resolution.
type CustomerLog struct{}

// Name identifies the adapter in logs.
func (CustomerLog) Name() string { return "customer" }

// Send logs the customer-facing callback for resolved events and
// ignores everything else.
func (CustomerLog) Send(ctx context.Context, ev Event) error {
	if ev.Kind != KindRequestResolved {
		return nil
	}
	log.Printf("notify: SMS to %s: your question has been answered (ref %s)",
		ev.Request.CustomerPhone, ev.Request.ID)
	log.Printf("notify: response: %s", truncate(ev.Response, 100))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

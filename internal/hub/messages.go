package hub

import (
	"time"

	"github.com/shubh-37/blown-salon-voice-agent/internal/models"
)

// Server→client message type tags. The dashboard channel carries the
// request lifecycle; the agent channel carries knowledge-base
// replication. Both carry connected and ping.
const (
	TypeConnected        = "connected"
	TypeStatsUpdate      = "stats_update"
	TypePendingRequests  = "pending_requests"
	TypeNewRequest       = "new_request"
	TypeRequestResolved  = "request_resolved"
	TypeRequestTimeout   = "request_timeout"
	TypeKnowledgeUpdated = "knowledge_base_updated"
	TypeKnowledgeFull    = "knowledge_base_full"
	TypeKnowledgeEntry   = "knowledge_base_entry"
	TypePing             = "ping"
)

// Connected greets a freshly accepted connection.
type Connected struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StatsUpdate carries refreshed request statistics to dashboards.
type StatsUpdate struct {
	Type string               `json:"type"`
	Data *models.RequestStats `json:"data"`
}

// PendingRequests carries the current pending list to dashboards.
type PendingRequests struct {
	Type string               `json:"type"`
	Data []models.HelpRequest `json:"data"`
}

// NewRequest announces a freshly created escalation to dashboards.
type NewRequest struct {
	Type string              `json:"type"`
	Data *models.HelpRequest `json:"data"`
}

// ResolvedData is the payload of a RequestResolved message.
type ResolvedData struct {
	RequestID string `json:"request_id"`
	Response  string `json:"response"`
}

// RequestResolved announces a supervisor resolution to dashboards.
type RequestResolved struct {
	Type string       `json:"type"`
	Data ResolvedData `json:"data"`
}

// TimeoutData is the payload of a RequestTimeout message.
type TimeoutData struct {
	RequestID string `json:"request_id"`
}

// RequestTimeout announces a swept-out request to dashboards.
type RequestTimeout struct {
	Type string      `json:"type"`
	Data TimeoutData `json:"data"`
}

// KnowledgeUpdated is the payload-free change notification. Receivers
// without the incremental entry re-fetch the full snapshot.
type KnowledgeUpdated struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// KnowledgeFull carries a complete knowledge-base snapshot to agents.
type KnowledgeFull struct {
	Type  string                      `json:"type"`
	Data  []models.KnowledgeBaseEntry `json:"data"`
	Count int                         `json:"count"`
}

// KnowledgeEntry pushes a single new or changed entry to agents.
type KnowledgeEntry struct {
	Type string                     `json:"type"`
	Data *models.KnowledgeBaseEntry `json:"data"`
}

// Ping is the idle keepalive probe. It requires no specific reply.
type Ping struct {
	Type string `json:"type"`
}

func NewConnected(message string) Connected {
	return Connected{Type: TypeConnected, Message: message}
}

func NewStatsUpdate(stats *models.RequestStats) StatsUpdate {
	return StatsUpdate{Type: TypeStatsUpdate, Data: stats}
}

func NewPendingRequests(reqs []models.HelpRequest) PendingRequests {
	return PendingRequests{Type: TypePendingRequests, Data: reqs}
}

func NewNewRequest(req *models.HelpRequest) NewRequest {
	return NewRequest{Type: TypeNewRequest, Data: req}
}

func NewRequestResolved(requestID, response string) RequestResolved {
	return RequestResolved{Type: TypeRequestResolved, Data: ResolvedData{RequestID: requestID, Response: response}}
}

func NewRequestTimeout(requestID string) RequestTimeout {
	return RequestTimeout{Type: TypeRequestTimeout, Data: TimeoutData{RequestID: requestID}}
}

func NewKnowledgeUpdated(message string, at time.Time) KnowledgeUpdated {
	msg := KnowledgeUpdated{Type: TypeKnowledgeUpdated, Message: message}
	if !at.IsZero() {
		msg.Timestamp = at.UTC().Format(time.RFC3339)
	}
	return msg
}

func NewKnowledgeFull(entries []models.KnowledgeBaseEntry) KnowledgeFull {
	return KnowledgeFull{Type: TypeKnowledgeFull, Data: entries, Count: len(entries)}
}

func NewKnowledgeEntry(entry *models.KnowledgeBaseEntry) KnowledgeEntry {
	return KnowledgeEntry{Type: TypeKnowledgeEntry, Data: entry}
}

func NewPing() Ping {
	return Ping{Type: TypePing}
}

// Package agentclient keeps a voice-agent worker's local knowledge
// cache converged with the supervisor hub, and gives the speech
// pipeline its lookup and escalate capabilities.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shubh-37/blown-salon-voice-agent/internal/hub"
	"github.com/shubh-37/blown-salon-voice-agent/internal/knowledge"
	"github.com/shubh-37/blown-salon-voice-agent/internal/models"
)

// DefaultBackoff is the fixed delay between reconnect attempts.
const DefaultBackoff = 5 * time.Second

// wsConn is the subscription surface the client needs; a gorilla
// connection in production, a fake in tests.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

// Opts configures a Client.
type Opts struct {
	ServerURL  string        // http(s) base URL of the supervisor hub
	Backoff    time.Duration // reconnect delay, DefaultBackoff if zero
	HTTPClient *http.Client
}

// Client is the per-worker reconciliation client. Its cache is owned
// exclusively by the worker process and never written back to the
// store: a bootstrap replaces it wholesale, incremental pushes upsert
// by entry id, so repeated or reordered delivery converges.
type Client struct {
	serverURL string
	wsURL     string
	backoff   time.Duration
	http      *http.Client
	matcher   knowledge.Matcher

	dial func(ctx context.Context, url string) (wsConn, error)

	mu    sync.RWMutex
	cache map[string]models.KnowledgeBaseEntry
}

// New creates a reconciliation client for the given hub URL.
func New(opts Opts) (*Client, error) {
	if opts.ServerURL == "" {
		return nil, fmt.Errorf("agentclient: server URL is required")
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	c := &Client{
		serverURL: strings.TrimRight(opts.ServerURL, "/"),
		backoff:   opts.Backoff,
		http:      opts.HTTPClient,
		matcher:   knowledge.SubstringMatcher{},
		cache:     make(map[string]models.KnowledgeBaseEntry),
	}
	c.wsURL = httpToWS(c.serverURL) + "/ws/agent"
	c.dial = func(ctx context.Context, url string) (wsConn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		return conn, err
	}
	return c, nil
}

// Bootstrap fetches a full knowledge-base snapshot over REST and
// replaces the local cache wholesale.
func (c *Client) Bootstrap(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/knowledge-base", nil)
	if err != nil {
		return fmt.Errorf("agentclient: bootstrap: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agentclient: bootstrap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agentclient: bootstrap: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Success bool                        `json:"success"`
		Entries []models.KnowledgeBaseEntry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("agentclient: bootstrap decode: %w", err)
	}
	c.replaceAll(body.Entries)
	log.Printf("agentclient: bootstrapped %d knowledge entries", len(body.Entries))
	return nil
}

// Run maintains the live subscription until ctx is cancelled,
// reconnecting with a fixed backoff. Every successful (re)connect
// re-runs bootstrap before incremental handling resumes, so the cache
// is never silently stale across a disconnect.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx, c.wsURL)
		if err != nil {
			log.Printf("agentclient: connect %s: %v (retrying in %s)", c.wsURL, err, c.backoff)
			if err := sleep(ctx, c.backoff); err != nil {
				return err
			}
			continue
		}

		if err := c.Bootstrap(ctx); err != nil {
			// Tolerated: the snapshot message sent on connect covers it.
			log.Printf("agentclient: %v", err)
		}

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-done:
			}
		}()
		c.readLoop(ctx, conn)
		close(done)
		conn.Close()

		if err := sleep(ctx, c.backoff); err != nil {
			return err
		}
	}
}

// readLoop applies inbound messages until the connection drops.
func (c *Client) readLoop(ctx context.Context, conn wsConn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("agentclient: connection lost: %v", err)
			}
			return
		}
		c.handleMessage(ctx, data)
	}
}

// handleMessage applies one channel message to the cache. Unparseable
// payloads are logged and dropped; the subscription stays up.
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("agentclient: malformed message dropped: %v", err)
		return
	}

	switch env.Type {
	case hub.TypeKnowledgeFull:
		var entries []models.KnowledgeBaseEntry
		if err := json.Unmarshal(env.Data, &entries); err != nil {
			log.Printf("agentclient: malformed snapshot dropped: %v", err)
			return
		}
		c.replaceAll(entries)
		log.Printf("agentclient: snapshot applied, %d entries", len(entries))

	case hub.TypeKnowledgeEntry:
		var entry models.KnowledgeBaseEntry
		if err := json.Unmarshal(env.Data, &entry); err != nil || entry.ID == "" {
			log.Printf("agentclient: malformed entry dropped")
			return
		}
		c.upsert(entry)

	case hub.TypeKnowledgeUpdated:
		// No payload: conservative fallback, re-fetch everything.
		if err := c.Bootstrap(ctx); err != nil {
			log.Printf("agentclient: refresh after update: %v", err)
		}

	case hub.TypePing, hub.TypeConnected, "":
		// Liveness probes and greetings carry no cache effect.

	default:
		log.Printf("agentclient: unrecognized message type %q dropped", env.Type)
	}
}

// Lookup answers a customer question from the local cache using the
// same matching policy the hub applies. ok is false when no cached
// entry matches.
func (c *Client) Lookup(question string) (answer string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id := range c.cache {
		entry := c.cache[id]
		if c.matcher.Matches(question, &entry) {
			return entry.Answer, true
		}
	}
	return "", false
}

// Search asks the hub to match a question, which also counts the usage
// server-side. Returns nil when nothing matches.
func (c *Client) Search(ctx context.Context, question string) (*models.KnowledgeBaseEntry, error) {
	u := c.serverURL + "/api/knowledge-base/search?question=" + url.QueryEscape(question)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("agentclient: search: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agentclient: search: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool                       `json:"success"`
		Found   bool                       `json:"found"`
		Answer  *models.KnowledgeBaseEntry `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("agentclient: search decode: %w", err)
	}
	if !body.Found {
		return nil, nil
	}
	return body.Answer, nil
}

// Escalate files a help request with the supervisor hub and returns
// the assigned request id.
func (c *Client) Escalate(ctx context.Context, customerPhone, question string, extra map[string]any) (string, error) {
	reqContext := map[string]any{
		"escalated_at": time.Now().UTC().Format(time.RFC3339),
		"agent":        "salon-voice-agent",
		"reason":       "not_in_knowledge",
	}
	for k, v := range extra {
		reqContext[k] = v
	}

	payload, err := json.Marshal(map[string]any{
		"customer_phone": customerPhone,
		"question":       question,
		"context":        reqContext,
	})
	if err != nil {
		return "", fmt.Errorf("agentclient: escalate: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.serverURL+"/api/help-requests", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("agentclient: escalate: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("agentclient: escalate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agentclient: escalate: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Success   bool   `json:"success"`
		RequestID string `json:"request_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("agentclient: escalate decode: %w", err)
	}
	return body.RequestID, nil
}

// Entries returns a copy of the cached entries.
func (c *Client) Entries() []models.KnowledgeBaseEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]models.KnowledgeBaseEntry, 0, len(c.cache))
	for _, e := range c.cache {
		entries = append(entries, e)
	}
	return entries
}

// Len returns the number of cached entries.
func (c *Client) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Client) replaceAll(entries []models.KnowledgeBaseEntry) {
	fresh := make(map[string]models.KnowledgeBaseEntry, len(entries))
	for _, e := range entries {
		if e.ID != "" {
			fresh[e.ID] = e
		}
	}
	c.mu.Lock()
	c.cache = fresh
	c.mu.Unlock()
}

func (c *Client) upsert(entry models.KnowledgeBaseEntry) {
	c.mu.Lock()
	c.cache[entry.ID] = entry
	c.mu.Unlock()
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// httpToWS rewrites an http(s) base URL to its ws(s) counterpart.
func httpToWS(u string) string {
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

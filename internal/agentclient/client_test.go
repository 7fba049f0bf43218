package agentclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/shubh-37/blown-salon-voice-agent/internal/hub"
	"github.com/shubh-37/blown-salon-voice-agent/internal/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Opts{ServerURL: "http://localhost:8000"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func cachedIDs(c *Client) []string {
	ids := make([]string, 0, c.Len())
	for _, e := range c.Entries() {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestNew(t *testing.T) {
	c := newTestClient(t)
	if c.wsURL != "ws://localhost:8000/ws/agent" {
		t.Errorf("wsURL = %q", c.wsURL)
	}
	if c.backoff != DefaultBackoff {
		t.Errorf("backoff = %s, want %s", c.backoff, DefaultBackoff)
	}

	if _, err := New(Opts{}); err == nil {
		t.Error("New() without server URL should fail")
	}

	tls, _ := New(Opts{ServerURL: "https://hub.example.com/"})
	if tls.wsURL != "wss://hub.example.com/ws/agent" {
		t.Errorf("wsURL = %q, want wss scheme", tls.wsURL)
	}
}

func TestHandleMessage_Convergence(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	snapshot := hub.NewKnowledgeFull([]models.KnowledgeBaseEntry{
		{ID: "a", Question: "opening hours", Answer: "9 to 7"},
		{ID: "b", Question: "haircut price", Answer: "40 dollars"},
	})
	c.handleMessage(ctx, mustJSON(t, snapshot))
	if got := cachedIDs(c); len(got) != 2 {
		t.Fatalf("cache after snapshot = %v, want a and b", got)
	}

	// upsert of a new entry, delivered twice
	entry := hub.NewKnowledgeEntry(&models.KnowledgeBaseEntry{ID: "c", Question: "parking", Answer: "behind the shop"})
	c.handleMessage(ctx, mustJSON(t, entry))
	c.handleMessage(ctx, mustJSON(t, entry))

	// upsert that revises an existing entry
	revised := hub.NewKnowledgeEntry(&models.KnowledgeBaseEntry{ID: "a", Question: "opening hours", Answer: "9 to 8"})
	c.handleMessage(ctx, mustJSON(t, revised))

	got := cachedIDs(c)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("cache ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cache ids = %v, want %v", got, want)
		}
	}

	answer, ok := c.Lookup("what are your opening hours?")
	if !ok || answer != "9 to 8" {
		t.Errorf("Lookup() = %q, %v; want revised answer", answer, ok)
	}

	// a later snapshot wins wholesale
	c.handleMessage(ctx, mustJSON(t, hub.NewKnowledgeFull([]models.KnowledgeBaseEntry{
		{ID: "z", Question: "bridal packages", Answer: "from 200"},
	})))
	if got := cachedIDs(c); len(got) != 1 || got[0] != "z" {
		t.Errorf("cache after second snapshot = %v, want only z", got)
	}
}

func TestHandleMessage_Tolerance(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	c.upsert(models.KnowledgeBaseEntry{ID: "a", Question: "q", Answer: "x"})

	// none of these may disturb the cache or panic
	c.handleMessage(ctx, []byte("not json at all"))
	c.handleMessage(ctx, mustJSON(t, hub.NewPing()))
	c.handleMessage(ctx, mustJSON(t, hub.NewConnected("hello")))
	c.handleMessage(ctx, []byte(`{"type":"mystery","data":{}}`))
	c.handleMessage(ctx, []byte(`{"type":"knowledge_base_entry","data":{"id":""}}`))
	c.handleMessage(ctx, []byte(`{"type":"knowledge_base_full","data":"not an array"}`))

	if c.Len() != 1 {
		t.Errorf("cache len = %d, want 1 untouched entry", c.Len())
	}
}

func TestBootstrap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/knowledge-base" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"entries": []models.KnowledgeBaseEntry{
				{ID: "a", Question: "opening hours", Answer: "9 to 7"},
				{ID: "b", Question: "haircut price", Answer: "40 dollars"},
			},
		})
	}))
	defer srv.Close()

	c, err := New(Opts{ServerURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.upsert(models.KnowledgeBaseEntry{ID: "stale", Question: "gone", Answer: "gone"})

	if err := c.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	got := cachedIDs(c)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("cache after bootstrap = %v, want a and b only", got)
	}
}

func TestBootstrap_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := New(Opts{ServerURL: srv.URL})
	if err := c.Bootstrap(context.Background()); err == nil {
		t.Error("Bootstrap() against a 500 should fail")
	}
}

func TestLookup(t *testing.T) {
	c := newTestClient(t)
	c.upsert(models.KnowledgeBaseEntry{ID: "a", Question: "open on Monday", Answer: "We are closed on Mondays"})

	answer, ok := c.Lookup("Do you open on Monday?")
	if !ok || answer != "We are closed on Mondays" {
		t.Errorf("Lookup() = %q, %v", answer, ok)
	}

	if _, ok := c.Lookup("Do you do bridal makeup?"); ok {
		t.Error("Lookup() matched an unrelated question")
	}
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("question"); got != "Do you open on Monday?" {
			t.Errorf("question param = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"found":   true,
			"answer":  models.KnowledgeBaseEntry{ID: "a", Answer: "We are closed on Mondays"},
		})
	}))
	defer srv.Close()

	c, _ := New(Opts{ServerURL: srv.URL})
	entry, err := c.Search(context.Background(), "Do you open on Monday?")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if entry == nil || entry.Answer != "We are closed on Mondays" {
		t.Errorf("Search() = %+v", entry)
	}
}

func TestSearch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "found": false})
	}))
	defer srv.Close()

	c, _ := New(Opts{ServerURL: srv.URL})
	entry, err := c.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if entry != nil {
		t.Errorf("Search() = %+v, want nil", entry)
	}
}

func TestEscalate(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/help-requests" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "request_id": "req-1"})
	}))
	defer srv.Close()

	c, _ := New(Opts{ServerURL: srv.URL})
	id, err := c.Escalate(context.Background(), "+15551234567", "Can I bring my dog?", map[string]any{"call_id": "call-9"})
	if err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if id != "req-1" {
		t.Errorf("request id = %q, want req-1", id)
	}

	if received["customer_phone"] != "+15551234567" {
		t.Errorf("customer_phone = %v", received["customer_phone"])
	}
	reqCtx, _ := received["context"].(map[string]any)
	if reqCtx["call_id"] != "call-9" {
		t.Errorf("context.call_id = %v", reqCtx["call_id"])
	}
	if reqCtx["reason"] != "not_in_knowledge" {
		t.Errorf("context.reason = %v", reqCtx["reason"])
	}
}

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shubh-37/blown-salon-voice-agent/internal/conversation"
	"github.com/shubh-37/blown-salon-voice-agent/internal/escalation"
	"github.com/shubh-37/blown-salon-voice-agent/internal/hub"
	"github.com/shubh-37/blown-salon-voice-agent/internal/knowledge"
	"github.com/shubh-37/blown-salon-voice-agent/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.HelpRequest{}, &models.KnowledgeBaseEntry{}, &models.Conversation{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}

	kb := knowledge.NewService(db)
	router, err := NewRouter(StartOpts{
		Escalations:   escalation.NewService(db, kb),
		Knowledge:     kb,
		Conversations: conversation.NewService(db),
		Dashboard:     hub.New("dashboard"),
		Agents:        hub.New("agent"),
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWS(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return msg
}

func TestRoot(t *testing.T) {
	srv := newTestServer(t)
	code, body := getJSON(t, srv.URL+"/")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "running" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["dashboard_clients"] != float64(0) || body["connected_agents"] != float64(0) {
		t.Errorf("client counts = %v, %v; want 0, 0", body["dashboard_clients"], body["connected_agents"])
	}
}

func TestHelpRequestLifecycle(t *testing.T) {
	srv := newTestServer(t)

	code, body := postJSON(t, srv.URL+"/api/help-requests", map[string]any{
		"customer_phone": "+15551234567",
		"question":       "Do you do bridal makeup?",
		"context":        map[string]any{"call_id": "call-1"},
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("create = %d %v", code, body)
	}
	requestID, _ := body["request_id"].(string)
	if requestID == "" {
		t.Fatal("create returned no request_id")
	}

	_, pending := getJSON(t, srv.URL+"/api/help-requests/pending")
	if reqs, _ := pending["requests"].([]any); len(reqs) != 1 {
		t.Fatalf("pending len = %d, want 1", len(reqs))
	}

	code, body = postJSON(t, srv.URL+"/api/help-requests/resolve", map[string]any{
		"request_id": requestID,
		"response":   "Yes, bridal packages start at 200 dollars",
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("resolve = %d %v", code, body)
	}

	_, pending = getJSON(t, srv.URL+"/api/help-requests/pending")
	if reqs, _ := pending["requests"].([]any); len(reqs) != 0 {
		t.Errorf("pending after resolve len = %d, want 0", len(reqs))
	}

	_, history := getJSON(t, srv.URL+"/api/help-requests/history")
	if reqs, _ := history["requests"].([]any); len(reqs) != 1 {
		t.Errorf("history len = %d, want 1", len(reqs))
	}

	// a resolution teaches the knowledge base
	_, kb := getJSON(t, srv.URL+"/api/knowledge-base")
	entries, _ := kb["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("knowledge entries = %d, want 1", len(entries))
	}

	// second resolve of the same request must be rejected
	code, _ = postJSON(t, srv.URL+"/api/help-requests/resolve", map[string]any{
		"request_id": requestID,
		"response":   "another answer",
	})
	if code != http.StatusBadRequest {
		t.Errorf("repeated resolve status = %d, want 400", code)
	}

	_, stats := getJSON(t, srv.URL+"/api/stats")
	s, _ := stats["stats"].(map[string]any)
	if s["total"] != float64(1) || s["resolved"] != float64(1) {
		t.Errorf("stats = %v", s)
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	srv := newTestServer(t)
	code, _ := postJSON(t, srv.URL+"/api/help-requests", map[string]any{"question": "no phone"})
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestKnowledgeAddAndSearch(t *testing.T) {
	srv := newTestServer(t)

	code, body := postJSON(t, srv.URL+"/api/knowledge-base", map[string]any{
		"question": "open on Monday",
		"answer":   "We are closed on Mondays",
		"category": "hours",
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("add = %d %v", code, body)
	}

	_, found := getJSON(t, srv.URL+"/api/knowledge-base/search?question=Do+you+open+on+Monday%3F")
	if found["found"] != true {
		t.Fatalf("search = %v", found)
	}
	answer, _ := found["answer"].(map[string]any)
	if answer["answer"] != "We are closed on Mondays" {
		t.Errorf("answer = %v", answer)
	}

	_, miss := getJSON(t, srv.URL+"/api/knowledge-base/search?question=bridal+makeup")
	if miss["found"] != false {
		t.Errorf("miss = %v", miss)
	}

	code, _ = getJSON(t, srv.URL+"/api/knowledge-base/search")
	if code != http.StatusBadRequest {
		t.Errorf("search without question status = %d, want 400", code)
	}
}

func TestDashboardWebsocket(t *testing.T) {
	srv := newTestServer(t)
	ws := dialWS(t, srv, "/ws")

	if msg := readWS(t, ws); msg["type"] != hub.TypeConnected {
		t.Fatalf("first message type = %v, want connected", msg["type"])
	}
	if msg := readWS(t, ws); msg["type"] != hub.TypeStatsUpdate {
		t.Fatalf("second message type = %v, want stats_update", msg["type"])
	}
	if msg := readWS(t, ws); msg["type"] != hub.TypePendingRequests {
		t.Fatalf("third message type = %v, want pending_requests", msg["type"])
	}

	postJSON(t, srv.URL+"/api/help-requests", map[string]any{
		"customer_phone": "+15551234567",
		"question":       "Can I bring my dog?",
	})

	msg := readWS(t, ws)
	if msg["type"] != hub.TypeNewRequest {
		t.Fatalf("broadcast type = %v, want new_request", msg["type"])
	}
	data, _ := msg["data"].(map[string]any)
	if data["question"] != "Can I bring my dog?" {
		t.Errorf("broadcast question = %v", data["question"])
	}
	if msg := readWS(t, ws); msg["type"] != hub.TypeStatsUpdate {
		t.Errorf("followup type = %v, want stats_update", msg["type"])
	}
}

func TestAgentWebsocket(t *testing.T) {
	srv := newTestServer(t)

	// seed a pending request before the agent connects
	_, created := postJSON(t, srv.URL+"/api/help-requests", map[string]any{
		"customer_phone": "+15551234567",
		"question":       "What are your hours?",
	})
	requestID, _ := created["request_id"].(string)

	ws := dialWS(t, srv, "/ws/agent")
	if msg := readWS(t, ws); msg["type"] != hub.TypeConnected {
		t.Fatalf("first message type = %v, want connected", msg["type"])
	}
	snapshot := readWS(t, ws)
	if snapshot["type"] != hub.TypeKnowledgeFull {
		t.Fatalf("second message type = %v, want knowledge_base_full", snapshot["type"])
	}
	if snapshot["count"] != float64(0) {
		t.Errorf("snapshot count = %v, want 0", snapshot["count"])
	}

	// a resolution pushes the new entry then the change notification
	postJSON(t, srv.URL+"/api/help-requests/resolve", map[string]any{
		"request_id": requestID,
		"response":   "9am to 7pm, Tuesday through Sunday",
	})

	entry := readWS(t, ws)
	if entry["type"] != hub.TypeKnowledgeEntry {
		t.Fatalf("push type = %v, want knowledge_base_entry", entry["type"])
	}
	data, _ := entry["data"].(map[string]any)
	if data["answer"] != "9am to 7pm, Tuesday through Sunday" {
		t.Errorf("pushed answer = %v", data["answer"])
	}
	if msg := readWS(t, ws); msg["type"] != hub.TypeKnowledgeUpdated {
		t.Errorf("notification type = %v, want knowledge_base_updated", msg["type"])
	}

	// explicit snapshot refresh on request
	ws.WriteMessage(websocket.TextMessage, []byte("refresh_kb"))
	refreshed := readWS(t, ws)
	if refreshed["type"] != hub.TypeKnowledgeFull {
		t.Fatalf("refresh type = %v, want knowledge_base_full", refreshed["type"])
	}
	if refreshed["count"] != float64(1) {
		t.Errorf("refreshed count = %v, want 1", refreshed["count"])
	}
}

func TestWebsocketPingPong(t *testing.T) {
	srv := newTestServer(t)
	ws := dialWS(t, srv, "/ws")
	readWS(t, ws) // connected
	readWS(t, ws) // stats_update
	readWS(t, ws) // pending_requests

	ws.WriteMessage(websocket.TextMessage, []byte("ping"))
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "pong" {
		t.Errorf("reply = %q, want pong", data)
	}
}

func TestConversationEndpoints(t *testing.T) {
	srv := newTestServer(t)

	code, body := postJSON(t, srv.URL+"/api/conversations", map[string]any{
		"customer_phone": "+15551234567",
	})
	if code != http.StatusOK {
		t.Fatalf("create = %d %v", code, body)
	}
	convID, _ := body["conversation_id"].(string)
	if convID == "" {
		t.Fatal("create returned no conversation_id")
	}

	code, _ = postJSON(t, srv.URL+"/api/conversations/"+convID+"/messages", map[string]any{
		"role":    "user",
		"content": "Do you open on Monday?",
	})
	if code != http.StatusOK {
		t.Fatalf("message = %d", code)
	}

	code, _ = postJSON(t, srv.URL+"/api/conversations/"+convID+"/escalate", nil)
	if code != http.StatusOK {
		t.Fatalf("escalate = %d", code)
	}

	_, got := getJSON(t, srv.URL+"/api/conversations/"+convID)
	conv, _ := got["conversation"].(map[string]any)
	if conv["escalated"] != true {
		t.Errorf("escalated = %v, want true", conv["escalated"])
	}
	if transcript, _ := conv["transcript"].([]any); len(transcript) != 1 {
		t.Errorf("transcript len = %d, want 1", len(transcript))
	}

	code, _ = getJSON(t, srv.URL+"/api/conversations/no-such-id")
	if code != http.StatusNotFound {
		t.Errorf("missing conversation status = %d, want 404", code)
	}
}

func TestNewRouter_Validation(t *testing.T) {
	if _, err := NewRouter(StartOpts{}); err == nil {
		t.Error("NewRouter() without services should fail")
	}
}

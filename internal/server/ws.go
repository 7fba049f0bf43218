package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shubh-37/blown-salon-voice-agent/internal/hub"
)

// Idle windows after which the hub proactively pings a quiet
// connection so intermediaries do not reclaim it.
const (
	dashboardIdlePing = 30 * time.Second
	agentIdlePing     = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func handleDashboardWS(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("server: dashboard upgrade: %v", err)
			return
		}
		conn := hub.NewWSConn(ws, 0)
		opts.Dashboard.Connect(conn)
		defer func() {
			opts.Dashboard.Disconnect(conn)
			conn.Close()
		}()

		conn.WriteJSON(hub.NewConnected("Connected to admin dashboard"))
		if stats, err := opts.Escalations.Stats(); err == nil {
			conn.WriteJSON(hub.NewStatsUpdate(stats))
		}
		if pending, err := opts.Escalations.Pending(); err == nil {
			conn.WriteJSON(hub.NewPendingRequests(pending))
		}

		readLoop(ws, conn, dashboardIdlePing, nil)
	}
}

func handleAgentWS(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("server: agent upgrade: %v", err)
			return
		}
		conn := hub.NewWSConn(ws, 0)
		opts.Agents.Connect(conn)
		defer func() {
			opts.Agents.Disconnect(conn)
			conn.Close()
		}()

		conn.WriteJSON(hub.NewConnected("Agent websocket connected"))
		sendKnowledgeSnapshot(opts, conn)

		readLoop(ws, conn, agentIdlePing, func(text string) {
			if text == "refresh_kb" {
				sendKnowledgeSnapshot(opts, conn)
				return
			}
			log.Printf("server: unrecognized agent message dropped: %q", text)
		})
	}
}

// sendKnowledgeSnapshot pushes the full knowledge base to one agent.
func sendKnowledgeSnapshot(opts StartOpts, conn *hub.WSConn) {
	entries, err := opts.Knowledge.List()
	if err != nil {
		log.Printf("server: knowledge snapshot: %v", err)
		return
	}
	conn.WriteJSON(hub.NewKnowledgeFull(entries))
}

// readLoop services a connection until it drops. Literal "ping" text
// gets a literal "pong"; other text goes to handle; a keepalive ping is
// sent whenever the idle window elapses with no inbound traffic.
// Malformed input never closes the connection.
func readLoop(ws *websocket.Conn, conn *hub.WSConn, idle time.Duration, handle func(string)) {
	activity := make(chan struct{}, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		timer := time.NewTimer(idle)
		defer timer.Stop()
		for {
			select {
			case <-done:
				return
			case <-activity:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(idle)
			case <-timer.C:
				if err := conn.WriteJSON(hub.NewPing()); err != nil {
					return
				}
				timer.Reset(idle)
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		select {
		case activity <- struct{}{}:
		default:
		}

		text := strings.TrimSpace(string(data))
		if text == "ping" {
			conn.WriteText("pong")
			continue
		}
		if handle != nil && text != "" {
			handle(text)
		}
	}
}

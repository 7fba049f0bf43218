package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shubh-37/blown-salon-voice-agent/internal/hub"
	"github.com/shubh-37/blown-salon-voice-agent/internal/knowledge"
	"github.com/shubh-37/blown-salon-voice-agent/internal/models"
	"github.com/shubh-37/blown-salon-voice-agent/internal/notify"
)

// registerRoutes sets up the REST surface and the websocket endpoints.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/", handleRoot(opts))
	router.GET("/api/stats", handleStats(opts))

	router.POST("/api/help-requests", handleCreateRequest(opts))
	router.GET("/api/help-requests/pending", handlePendingRequests(opts))
	router.POST("/api/help-requests/resolve", handleResolveRequest(opts))
	router.GET("/api/help-requests/history", handleRequestHistory(opts))

	router.GET("/api/knowledge-base", handleKnowledgeList(opts))
	router.POST("/api/knowledge-base", handleKnowledgeAdd(opts))
	router.GET("/api/knowledge-base/search", handleKnowledgeSearch(opts))

	if opts.Conversations != nil {
		router.POST("/api/conversations", handleConversationCreate(opts))
		router.GET("/api/conversations/:id", handleConversationGet(opts))
		router.POST("/api/conversations/:id/messages", handleConversationMessage(opts))
		router.POST("/api/conversations/:id/escalate", handleConversationEscalate(opts))
	}

	router.GET("/ws", handleDashboardWS(opts))
	router.GET("/ws/agent", handleAgentWS(opts))
}

func handleRoot(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":            "running",
			"service":           "ai-supervisor",
			"dashboard_clients": opts.Dashboard.Count(),
			"connected_agents":  opts.Agents.Count(),
		})
	}
}

func handleStats(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := opts.Escalations.Stats()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
	}
}

type createRequestBody struct {
	CustomerPhone string         `json:"customer_phone" binding:"required"`
	Question      string         `json:"question" binding:"required"`
	Context       map[string]any `json:"context"`
}

func handleCreateRequest(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body createRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		req, err := opts.Escalations.Create(body.CustomerPhone, body.Question, body.Context)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		log.Printf("server: new help request %s: %q", req.ID, req.Question)

		opts.Dashboard.Broadcast(hub.NewNewRequest(req))
		broadcastStats(opts)
		opts.Notifier.Notify(c.Request.Context(), notify.Event{Kind: notify.KindNewRequest, Request: req})

		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"request_id": req.ID,
			"message":    "Help request created and supervisor notified",
		})
	}
}

func handlePendingRequests(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqs, err := opts.Escalations.Pending()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "requests": reqs})
	}
}

type resolveRequestBody struct {
	RequestID    string `json:"request_id" binding:"required"`
	Response     string `json:"response" binding:"required"`
	SupervisorID string `json:"supervisor_id"`
}

func handleResolveRequest(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body resolveRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		ok, entry, err := opts.Escalations.Resolve(body.RequestID, body.Response, body.SupervisorID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "request not found or already resolved"})
			return
		}
		log.Printf("server: request %s resolved", body.RequestID)

		opts.Dashboard.Broadcast(hub.NewRequestResolved(body.RequestID, body.Response))
		broadcastStats(opts)
		broadcastKnowledgeChange(opts, entry, "New knowledge base entry added")

		if req, err := opts.Escalations.Get(body.RequestID); err == nil && req != nil {
			opts.Notifier.Notify(c.Request.Context(), notify.Event{
				Kind:     notify.KindRequestResolved,
				Request:  req,
				Response: body.Response,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Request resolved, customer notified, and agents updated",
		})
	}
}

func handleRequestHistory(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqs, err := opts.Escalations.History()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "requests": reqs})
	}
}

func handleKnowledgeList(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := opts.Knowledge.List()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "entries": entries})
	}
}

type knowledgeAddBody struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
	Category string `json:"category"`
}

func handleKnowledgeAdd(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body knowledgeAddBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		entry, err := opts.Knowledge.AddEntry(body.Question, body.Answer,
			knowledge.AddOpts{Category: body.Category})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		log.Printf("server: knowledge entry %s added manually", entry.ID)

		broadcastKnowledgeChange(opts, entry, "Knowledge base entry added")

		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"entry_id": entry.ID,
			"message":  "Knowledge base entry added and agents notified",
		})
	}
}

func handleKnowledgeSearch(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		question := c.Query("question")
		if question == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "question is required"})
			return
		}

		entry, err := opts.Knowledge.Match(question)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		if entry == nil {
			c.JSON(http.StatusOK, gin.H{"success": true, "found": false, "answer": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "found": true, "answer": entry})
	}
}

type conversationCreateBody struct {
	CustomerPhone string `json:"customer_phone" binding:"required"`
}

func handleConversationCreate(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body conversationCreateBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		conv, err := opts.Conversations.Create(body.CustomerPhone)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "conversation_id": conv.ID})
	}
}

func handleConversationGet(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, err := opts.Conversations.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		if conv == nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "conversation not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "conversation": conv})
	}
}

type conversationMessageBody struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func handleConversationMessage(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body conversationMessageBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		ok, err := opts.Conversations.AppendMessage(c.Param("id"), body.Role, body.Content)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "conversation not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func handleConversationEscalate(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := opts.Conversations.MarkEscalated(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "conversation not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// broadcastStats pushes refreshed stats to dashboards, best-effort.
func broadcastStats(opts StartOpts) {
	stats, err := opts.Escalations.Stats()
	if err != nil {
		log.Printf("server: stats broadcast: %v", err)
		return
	}
	opts.Dashboard.Broadcast(hub.NewStatsUpdate(stats))
}

// broadcastKnowledgeChange tells both channels the knowledge base
// changed: agents get the incremental entry when available plus the
// generic notification; dashboards get the notification only.
func broadcastKnowledgeChange(opts StartOpts, entry *models.KnowledgeBaseEntry, message string) {
	if entry != nil {
		opts.Agents.Broadcast(hub.NewKnowledgeEntry(entry))
	}
	opts.Agents.Broadcast(hub.NewKnowledgeUpdated(message, time.Now()))
	opts.Dashboard.Broadcast(hub.NewKnowledgeUpdated(message, time.Time{}))
}

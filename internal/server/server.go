// Package server exposes the supervisor hub over HTTP: the REST
// surface consumed by dashboards and workers, and the two websocket
// fan-out channels.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shubh-37/blown-salon-voice-agent/internal/conversation"
	"github.com/shubh-37/blown-salon-voice-agent/internal/escalation"
	"github.com/shubh-37/blown-salon-voice-agent/internal/hub"
	"github.com/shubh-37/blown-salon-voice-agent/internal/knowledge"
	"github.com/shubh-37/blown-salon-voice-agent/internal/notify"
)

// StartOpts holds the server's collaborators and listener settings.
type StartOpts struct {
	Escalations   *escalation.Service
	Knowledge     *knowledge.Service
	Conversations *conversation.Service
	Dashboard     *hub.Hub
	Agents        *hub.Hub
	Notifier      *notify.Notifier
	Addr          string
	Out           io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}

	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Supervisor hub listening on %s\n", opts.Addr)
		fmt.Fprintf(opts.Out, "Dashboard websocket: ws://%s/ws\n", opts.Addr)
		fmt.Fprintf(opts.Out, "Agent websocket: ws://%s/ws/agent\n", opts.Addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with all routes registered. Exposed
// separately so tests can drive it through httptest.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Escalations == nil {
		return nil, fmt.Errorf("server: escalation service is required")
	}
	if opts.Knowledge == nil {
		return nil, fmt.Errorf("server: knowledge service is required")
	}
	if opts.Dashboard == nil {
		opts.Dashboard = hub.New("dashboard")
	}
	if opts.Agents == nil {
		opts.Agents = hub.New("agent")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)
	return router, nil
}

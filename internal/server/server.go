// Package server exposes a simulation run over HTTP, grounded on
// brt08/backend/server/server.go's handler shape (routeHandler,
// handleControl, handleStream) with two swaps: gin+rs/cors replace the bare
// net/http mux and manual CORS headers (grounded on
// battery-backtest/cmd/api/main.go and its middleware package), and a
// gorilla/websocket stream replaces the teacher's Server-Sent-Events stream
// (grounded on niceyeti-tabular/server/server.go's serveWebsocket /
// publishUpdates pump). This package is peripheral: it has no say in
// simulation semantics, only in exposing internal/sim.Simulator over the
// wire.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"netrailsim/internal/network"
	"netrailsim/internal/sim"
	"netrailsim/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

const (
	writeWait      = 1 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	closeGracePeriod = 10 * time.Second
)

// Options configures the HTTP server.
type Options struct {
	Addr           string
	AllowedOrigins []string
}

// ControlRequest is the body of POST /api/control.
type ControlRequest struct {
	Action string `json:"action"` // "pause", "resume", or "cancel"
}

// Server wires one running Simulator to HTTP/websocket clients. Cancel stops
// the run backing this server; it is typically the cancel func of the
// context passed to Simulator.Run.
type Server struct {
	Net    *network.Network
	Sim    *sim.Simulator
	Cancel context.CancelFunc
	Opt    Options

	upgrader websocket.Upgrader
	conns    sync.Map // map[*websocket.Conn]struct{}, for visibility/shutdown only
}

// New constructs a Server over an already-running Simulator.
func New(net *network.Network, s *sim.Simulator, cancel context.CancelFunc, opt Options) *Server {
	return &Server{
		Net: net, Sim: s, Cancel: cancel, Opt: opt,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Engine builds the gin router. Serve and tests can drive it independently.
func (s *Server) Engine() *gin.Engine {
	r := gin.Default()
	r.Use(s.corsMiddleware())
	r.GET("/api/network", s.handleNetwork)
	r.POST("/api/control", s.handleControl)
	r.GET("/api/stream", s.handleStream)
	return r
}

// Serve blocks serving the gin engine on Opt.Addr.
func (s *Server) Serve() error {
	return s.Engine().Run(s.Opt.Addr)
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	origins := s.Opt.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		ctx.Next()
	}
}

// handleNetwork serves the ingested network as JSON (spec.md §6.1).
func (s *Server) handleNetwork(c *gin.Context) {
	c.JSON(http.StatusOK, s.Net)
}

// handleControl implements pause/resume/cancel; the teacher's per-connection
// speed/arrival-factor knobs have no analogue here since there is no demand
// model to tune.
func (s *Server) handleControl(c *gin.Context) {
	var req ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Action {
	case "pause":
		s.Sim.Pause()
	case "resume":
		s.Sim.Resume()
	case "cancel":
		if s.Cancel != nil {
			s.Cancel()
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + req.Action})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStream upgrades to a websocket and pumps simulator events to the
// client until the connection closes or the request context is cancelled.
func (s *Server) handleStream(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}
	s.conns.Store(ws, struct{}{})
	defer s.conns.Delete(ws)
	defer s.closeWebsocket(ws)

	s.publishEvents(ws, c.Request.Context())
}

func (s *Server) publishEvents(ws *websocket.Conn, ctx context.Context) {
	events := s.Sim.Events(ctx)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeEvent(ws, ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// envelope tags an event with its concrete kind so the client can dispatch
// without reflecting on the JSON shape.
type envelope struct {
	Type string          `json:"type"`
	Data telemetry.Event `json:"data"`
}

func eventType(ev telemetry.Event) string {
	switch ev.(type) {
	case telemetry.InitEvent:
		return "init"
	case telemetry.MoveEvent:
		return "move"
	case telemetry.ArriveEvent:
		return "arrive"
	case telemetry.CompletionEvent:
		return "completion"
	case telemetry.CollisionEvent:
		return "collision"
	case telemetry.WarningEvent:
		return "warning"
	case telemetry.DoneEvent:
		return "done"
	default:
		return "unknown"
	}
}

func (s *Server) writeEvent(ws *websocket.Conn, ev telemetry.Event) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Type: eventType(ev), Data: ev})
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, payload)
}

func (s *Server) closeWebsocket(ws *websocket.Conn) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()
}

// Package api is the node's HTTP surface: the local client API, the peer
// RPC endpoint, health and metrics.
package api

import (
	"context"
	"net/http"

	"p2pmessage/pkg/models"
	"p2pmessage/pkg/router"
	"p2pmessage/pkg/signals"
	"p2pmessage/pkg/store"
	"p2pmessage/pkg/transport"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Assembler is the read side: conversation assembly over the local log.
type Assembler interface {
	LatestMessages(ctx context.Context, batchSize int) (models.AssemblyResult, error)
	NextBatch(ctx context.Context, f models.FilterByBatch) (models.AssemblyResult, error)
	AdjacentMessages(ctx context.Context, f models.FilterByBatch) (models.AssemblyResult, error)
	MessagesByDay(ctx context.Context, f models.FilterByAgentDay) (models.AssemblyResult, error)
	AllMessages(ctx context.Context) (models.AssemblyResult, error)
	MessagesFromAgents(ctx context.Context, agents []models.AgentKey) (models.AssemblyResult, error)
}

// Messenger is the write side plus the peer dispatch entry point.
type Messenger interface {
	Self() models.AgentKey
	Send(ctx context.Context, in models.MessageInput) (models.Message, models.Receipt, error)
	MarkRead(ctx context.Context, messageID models.ContentHash, sender models.AgentKey) (models.ReconciliationResult, error)
	SetTyping(ctx context.Context, peer models.AgentKey, isTyping bool) error
	transport.Dispatcher
}

type RateLimit struct {
	RPS   float64
	Burst int
}

type Deps struct {
	Assembler Assembler
	Messenger Messenger
	Directory *transport.Directory
	Policy    transport.AccessPolicy
	// optional; feeds the subscriber gauges
	Hub *signals.Hub
	// optional; feeds the log size gauge when it implements store.Sizer
	Log       store.Log
	APIKeys   []string
	RateLimit RateLimit
	NodeName  string
	Version   string
	// Ready reports readiness; nil means always ready.
	Ready func() error
}

type Server struct {
	assembler Assembler
	messenger Messenger
	directory *transport.Directory
	policy    transport.AccessPolicy
	hub       *signals.Hub
	log       store.Log
	apiKeys   []string
	nodeName  string
	version   string
	ready     func() error

	clientLimits *limiterPool
	peerLimits   *limiterPool
	router       *router.Router
}

func New(d Deps) *Server {
	if d.Policy == nil {
		d.Policy = transport.DefaultAccessPolicy()
	}
	if d.Directory == nil {
		d.Directory = transport.NewDirectory()
	}
	if d.RateLimit.RPS <= 0 {
		d.RateLimit.RPS = 1000
	}
	if d.RateLimit.Burst <= 0 {
		d.RateLimit.Burst = 1000
	}
	s := &Server{
		assembler:    d.Assembler,
		messenger:    d.Messenger,
		directory:    d.Directory,
		policy:       d.Policy,
		hub:          d.Hub,
		log:          d.Log,
		apiKeys:      d.APIKeys,
		nodeName:     d.NodeName,
		version:      d.Version,
		ready:        d.Ready,
		clientLimits: newLimiterPool(d.RateLimit.RPS, d.RateLimit.Burst),
		peerLimits:   newLimiterPool(d.RateLimit.RPS, d.RateLimit.Burst),
		router:       router.New(),
	}
	s.registerRoutes(s.router)
	return s
}

// wrapHTTPHandler wraps an http.Handler to work with fasthttp.
func wrapHTTPHandler(h http.Handler) fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(h)
}

func (s *Server) registerRoutes(r *router.Router) {
	r.GET("/healthz", s.handleHealth)
	r.GET("/readyz", s.handleReady)
	r.GET("/metrics", s.handleMetrics(wrapHTTPHandler(promhttp.Handler())))

	r.GET("/v1/identity", s.handleIdentity)

	// literal message routes before {id}
	r.GET("/v1/messages", s.handleAllMessages)
	r.POST("/v1/messages", s.handleSend)
	r.GET("/v1/messages/latest", s.handleLatest)
	r.POST("/v1/messages/next", s.handleNextBatch)
	r.POST("/v1/messages/adjacent", s.handleAdjacent)
	r.POST("/v1/messages/day", s.handleDay)
	r.POST("/v1/messages/agents", s.handleFromAgents)
	r.POST("/v1/messages/{id}/read", s.handleMarkRead)

	r.POST("/v1/typing", s.handleTyping)

	r.POST("/rpc/{op}", s.handleRPC)

	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(ctx *fasthttp.RequestCtx) {
		WriteJSONError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the full middleware chain: metrics, gateway, router.
func (s *Server) Handler() fasthttp.RequestHandler {
	return instrument(s.gateway(s.router.Handler))
}

func (s *Server) Routes() []string { return s.router.Routes() }

// Shutdown stops the limiter cleanup goroutines.
func (s *Server) Shutdown() {
	s.clientLimits.Shutdown()
	s.peerLimits.Shutdown()
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	WriteJSON(ctx, fasthttp.StatusOK, map[string]any{"status": "ok", "version": s.version})
}

func (s *Server) handleReady(ctx *fasthttp.RequestCtx) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			WriteJSON(ctx, fasthttp.StatusServiceUnavailable, map[string]any{"status": "not_ready", "reason": err.Error()})
			return
		}
	}
	WriteJSON(ctx, fasthttp.StatusOK, map[string]any{"status": "ready"})
}

// handleMetrics refreshes the sampled gauges before each scrape.
func (s *Server) handleMetrics(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if s.hub != nil {
			signalSubscribers.Set(float64(s.hub.Subscribers()))
			signalsDropped.Set(float64(s.hub.Dropped()))
		}
		if sz, ok := s.log.(store.Sizer); ok {
			logSizeBytes.Set(float64(sz.DiskUsage()))
		}
		next(ctx)
	}
}

func (s *Server) handleIdentity(ctx *fasthttp.RequestCtx) {
	WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
		"agent_key": s.messenger.Self(),
		"name":      s.nodeName,
		"version":   s.version,
		"peers":     s.directory.Len(),
	})
}

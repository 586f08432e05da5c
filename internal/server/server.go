package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/dukerupert/familyxp/internal/config"
	"github.com/dukerupert/familyxp/internal/handler"
	"github.com/dukerupert/familyxp/internal/metrics"
	"github.com/dukerupert/familyxp/internal/middleware"
	"github.com/dukerupert/familyxp/internal/points"
	ws "github.com/dukerupert/familyxp/internal/websocket"
)

const (
	apiLimit  = 120
	apiWindow = time.Minute
	pinLimit  = 5
	pinWindow = 15 * time.Minute
)

type Server struct {
	svc         *points.Service
	hub         *ws.Hub
	metrics     *metrics.Metrics
	cfg         config.Server
	familyH     *handler.FamilyHandler
	childH      *handler.ChildHandler
	taskH       *handler.TaskHandler
	completionH *handler.CompletionHandler
	goalH       *handler.GoalHandler
	rewardH     *handler.RewardHandler
	ticketH     *handler.TicketHandler
	valuationH  *handler.ValuationHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(svc *points.Service, hub *ws.Hub, m *metrics.Metrics, cfg config.Server, logger *slog.Logger) *Server {
	limiter := middleware.NewRateLimiter()
	pins := middleware.NewPINGate(svc.Stores().Families, limiter, pinLimit, pinWindow)

	return &Server{
		svc:         svc,
		hub:         hub,
		metrics:     m,
		cfg:         cfg,
		familyH:     handler.NewFamilyHandler(svc, pins, logger),
		childH:      handler.NewChildHandler(svc, pins, logger),
		taskH:       handler.NewTaskHandler(svc, pins, logger),
		completionH: handler.NewCompletionHandler(svc, pins, logger),
		goalH:       handler.NewGoalHandler(svc, pins, logger),
		rewardH:     handler.NewRewardHandler(svc, pins, logger),
		ticketH:     handler.NewTicketHandler(svc, pins, logger),
		valuationH:  handler.NewValuationHandler(svc, logger),
		rateLimiter: limiter,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)
	if s.metrics != nil {
		outerMux.Handle("GET /metrics", s.metrics.Handler())
	}
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.AllowedOrigins))

	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)
	limit := middleware.RateLimit(s.rateLimiter, middleware.RealIP, apiLimit, apiWindow)
	outerMux.Handle("/api/", limit(apiMux))

	var h http.Handler = outerMux
	if len(s.cfg.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", middleware.PINHeader, middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		}).Handler(h)
	}

	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Families
	mux.HandleFunc("POST /api/families", s.familyH.Create)
	mux.HandleFunc("GET /api/families/{id}", s.familyH.Get)
	mux.HandleFunc("PUT /api/families/{id}", s.familyH.Update)
	mux.HandleFunc("PUT /api/families/{id}/pin", s.familyH.SetPIN)
	mux.HandleFunc("DELETE /api/families/{id}/pin", s.familyH.ClearPIN)
	mux.HandleFunc("POST /api/families/{id}/pin/verify", s.familyH.VerifyPIN)
	mux.HandleFunc("GET /api/families/{id}/children", s.familyH.ListChildren)
	mux.HandleFunc("POST /api/families/{id}/children", s.familyH.CreateChild)
	mux.HandleFunc("GET /api/families/{id}/reviews", s.familyH.ListPendingReviews)
	mux.HandleFunc("GET /api/families/{id}/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/families/{id}/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/families/{id}/rewards", s.rewardH.List)
	mux.HandleFunc("POST /api/families/{id}/rewards", s.rewardH.Create)

	// Children
	mux.HandleFunc("GET /api/children/{id}", s.childH.Get)
	mux.HandleFunc("PUT /api/children/{id}", s.childH.Update)
	mux.HandleFunc("DELETE /api/children/{id}", s.childH.Archive)
	mux.HandleFunc("POST /api/children/{id}/adjust", s.childH.Adjust)
	mux.HandleFunc("GET /api/children/{id}/ledger", s.childH.Ledger)
	mux.HandleFunc("GET /api/children/{id}/completions", s.childH.Completions)
	mux.HandleFunc("GET /api/children/{id}/instances", s.childH.Instances)
	mux.HandleFunc("GET /api/children/{id}/goals", s.childH.Goals)
	mux.HandleFunc("POST /api/children/{id}/goals", s.goalH.Create)
	mux.HandleFunc("GET /api/children/{id}/tickets", s.childH.Tickets)

	// Tasks and completions
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Archive)
	mux.HandleFunc("POST /api/tasks/{id}/schedule", s.taskH.Schedule)
	mux.HandleFunc("POST /api/tasks/{id}/submit", s.taskH.Submit)
	mux.HandleFunc("GET /api/completions/{id}", s.completionH.Get)
	mux.HandleFunc("POST /api/completions/{id}/approve", s.completionH.Approve)
	mux.HandleFunc("POST /api/completions/{id}/fix", s.completionH.RequestFix)
	mux.HandleFunc("DELETE /api/completions/{id}", s.completionH.Delete)

	// Goals
	mux.HandleFunc("GET /api/goals/{id}", s.goalH.Get)
	mux.HandleFunc("GET /api/goals/{id}/summary", s.goalH.Summary)
	mux.HandleFunc("POST /api/goals/{id}/deposit", s.goalH.Deposit)
	mux.HandleFunc("PUT /api/goals/{id}/target", s.goalH.UpdateTarget)
	mux.HandleFunc("PUT /api/goals/{id}/bonuses", s.goalH.UpdateBonuses)
	mux.HandleFunc("DELETE /api/goals/{id}", s.goalH.Archive)
	mux.HandleFunc("GET /api/milestones/suggest", s.goalH.SuggestBonuses)

	// Rewards and tickets
	mux.HandleFunc("GET /api/rewards/{id}", s.rewardH.Get)
	mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("POST /api/rewards/{id}/purchase", s.rewardH.Purchase)
	mux.HandleFunc("POST /api/rewards/{id}/gift", s.rewardH.Gift)
	mux.HandleFunc("GET /api/tickets/{id}", s.ticketH.Get)
	mux.HandleFunc("POST /api/tickets/{id}/{action}", s.ticketH.Act)

	// Pricing guidance
	mux.HandleFunc("GET /api/estimate", s.valuationH.Estimate)
	mux.HandleFunc("GET /api/tiers", s.valuationH.Tiers)
}

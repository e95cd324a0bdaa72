// Package rest wires the engine's tool-contract adapter to HTTP,
// grounded on the teacher's interfaces/http/rest/router.go: a chi
// router with the same middleware stack (RequestID, RealIP, Recoverer,
// request logging, CORS), health/readiness probes, and a versioned
// route group — minus the JWT authentication middleware, which the
// spec places out of scope (§1: callers are already-authenticated
// {user_id, device_id} pairs carried in the request body/query).
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"relevance-engine/interfaces/http/rest/handlers"
	"relevance-engine/interfaces/http/rest/middleware"
	"relevance-engine/interfaces/toolcontract"
)

// Router creates and configures the engine's HTTP router.
type Router struct {
	adapter *toolcontract.Adapter
	logger  *zap.Logger
}

// NewRouter creates a new Router instance.
func NewRouter(adapter *toolcontract.Adapter, logger *zap.Logger) *Router {
	return &Router{adapter: adapter, logger: logger}
}

// Setup configures every route and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Handle("/metrics", metricsHandler())

	h := handlers.NewEngineHandler(rt.adapter, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/memories", h.StoreMemory)
		r.Get("/memories/export", h.ExportMemories)
		r.Post("/memories/{memoryID}/forget", h.Forget)
		r.Post("/memories/{memoryID}/restore", h.Restore)
		r.Post("/memories/{memoryID}/reassociate", h.Reassociate)

		r.Post("/recall", h.Recall)
		r.Get("/whats-relevant", h.WhatsRelevant)

		r.Post("/recall-sessions", h.RecallSessionStart)
		r.Post("/recall-sessions/{sessionID}/votes", h.RecallVote)
		r.Post("/recall-sessions/{sessionID}/resolve", h.RecallResolve)

		r.Get("/briefings/{personID}", h.GetBriefing)

		r.Post("/context", h.SetContext)
		r.Delete("/context", h.ClearContext)

		r.Get("/loops", h.ListLoops)
		r.Post("/loops/{loopID}/close", h.CloseLoop)

		r.Post("/anticipate", h.Anticipate)
		r.Get("/predictions", h.GetPredictions)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

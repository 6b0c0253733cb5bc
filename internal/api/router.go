package api

import (
	"context"
	"net/http"
	"trip-route-service/internal/api/handlers"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/navigation"
	"trip-route-service/internal/ports"
	"trip-route-service/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the adapters the HTTP layer is built from. Any provider may be nil:
// calls that need it then fail with a provider error, and haversine optimization
// keeps working.
type Deps struct {
	Matrix      ports.CostMatrixProvider
	Directions  ports.DirectionsProvider
	Traffic     ports.TrafficRouteProvider
	Navigation  navigation.Config
	CORSOrigins []string
	Logger      *zap.Logger
}

// Router is the HTTP handler plus the session registry it owns.
type Router struct {
	http.Handler
	Sessions *handlers.Sessions
}

// NewRouter wires HTTP handlers with their dependencies.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(deps Deps) *Router {
	log := deps.Logger
	if log == nil {
		log = zap.L()
	}

	optimize := func(ctx context.Context, req domain.OptimizationRequest) (*domain.OptimizationResult, error) {
		return services.Optimize(ctx, req, deps.Matrix)
	}
	sessions := handlers.NewSessions(optimize, deps.Navigation, deps.Directions, deps.Traffic, log)

	optHandler := &handlers.OptimizeHandler{Optimizer: optimize}
	trafficHandler := &handlers.TrafficHandler{Traffic: deps.Traffic}
	itHandler := &handlers.ItineraryHandler{Sessions: sessions}
	navHandler := &handlers.NavigationHandler{Sessions: sessions}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
	}))
	r.Use(requestContext(log))
	r.Use(loggingMiddleware)

	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/optimize", optHandler.Optimize)
	r.Post("/traffic-route", trafficHandler.Route)

	r.Route("/itineraries", func(r chi.Router) {
		r.Post("/", itHandler.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", itHandler.Get)
			r.Delete("/", itHandler.Delete)
			r.Post("/optimize", itHandler.Optimize)
			r.Put("/order", itHandler.Reorder)

			r.Post("/stops", itHandler.AddStop)
			r.Delete("/stops/{stopID}", itHandler.RemoveStop)
			r.Post("/stops/{stopID}/move", itHandler.MoveStop)
			r.Put("/stops/{stopID}/visited", itHandler.SetVisited)

			r.Get("/navigation", navHandler.Get)
			r.Post("/navigation/start", navHandler.Start)
			r.Post("/navigation/stop", navHandler.Stop)
			r.Post("/navigation/position", navHandler.Position)
			r.Post("/navigation/pan", navHandler.Pan)
			r.Post("/navigation/recenter", navHandler.Recenter)
		})
	})

	return &Router{Handler: r, Sessions: sessions}
}

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/FACorreiaa/go-trip-studio/internal/api/itinerary"
	"github.com/FACorreiaa/go-trip-studio/internal/api/planner"
	"github.com/FACorreiaa/go-trip-studio/internal/api/replacement"
	"github.com/FACorreiaa/go-trip-studio/internal/api/studio"
)

// Config contains the handlers the router wires up.
type Config struct {
	PlannerHandler     *planner.Handler
	ItineraryHandler   *itinerary.Handler
	StudioHandler      *studio.Handler
	ReplacementHandler *replacement.Handler
	// Authenticate guards the API group when set. Left nil, the API is open,
	// which is the mode integration tests run in.
	Authenticate func(http.Handler) http.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are applied before
// mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Authenticate != nil {
			r.Use(cfg.Authenticate)
		}

		r.Post("/trips", cfg.PlannerHandler.CreateTrip)

		r.Route("/trips/{tripID}", func(r chi.Router) {
			r.Post("/itinerary", cfg.PlannerHandler.RegenerateItinerary)
			r.Get("/itinerary", cfg.ItineraryHandler.GetItinerary)
			r.Get("/itinerary/export.ics", cfg.ItineraryHandler.ExportICS)

			r.Route("/days/{dayIndex}", func(r chi.Router) {
				r.Get("/studio", cfg.ItineraryHandler.GetStudioView)
				r.Post("/changes", cfg.StudioHandler.ApplyChanges)

				r.Route("/blocks/{blockIndex}", func(r chi.Router) {
					r.Get("/alternatives", cfg.ReplacementHandler.FindAlternatives)
					r.Post("/replace", cfg.ReplacementHandler.ApplyReplacement)
				})
			})
		})
	})

	return r
}

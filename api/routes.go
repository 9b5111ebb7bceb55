package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Sets up chi router, middlewares and defines all api endpoints
func (s *Server) routes() {
	s.r = chi.NewRouter()

	// Read only API, any origin may query it
	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(middleware.Logger)
	s.r.Use(middleware.Recoverer)
	s.r.Use(middleware.SetHeader("Content-Type", "application/json"))
	s.r.Use(middleware.Timeout(60 * time.Second))

	s.r.Route("/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, http.StatusOK, map[string]interface{}{"health_status": "online"})
		})

		// outputs
		r.Get("/outputs", s.handleOutputsGet)
		r.Get("/outputs/{index}", s.handleOutputGet)

		// withdrawal claims
		r.Get("/claims", s.handleClaimsGet)

		// deposits waiting for resurrection
		r.Get("/deposits/unconfirmed", s.handleUnconfirmedDepositsGet)
	})
}

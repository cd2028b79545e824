// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// storeTimeout bounds record store requests. Research routes are not
// bounded here; a run can take minutes.
const storeTimeout = 60 * time.Second

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/api/health", s.handleHealth)

	r.Route("/api/dinosaurs", func(r chi.Router) {
		r.Use(middleware.Timeout(storeTimeout))
		r.Get("/", s.handleListDinosaurs)
		r.Post("/", s.handleCreateDinosaur)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDinosaur)
			r.Put("/", s.handleUpdateDinosaur)
			r.Delete("/", s.handleDeleteDinosaur)
			r.Post("/fossils", s.handleAddFossils)
			r.Post("/images", s.handleAddImages)
			r.Get("/images", s.handleListImages)
			r.Delete("/images", s.handleDeleteImage)
		})
	})

	r.Route("/ai-agent", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/research", s.handleResearch)
			r.Post("/research/batch", s.handleResearchBatch)
		})
		r.Get("/status", s.handleStatus)
		r.Get("/recommendations", s.handleRecommendations)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

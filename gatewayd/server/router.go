package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.MiddlewareLogger)
	r.Get("/", s.HandlerHealth)
	r.Get("/version", s.HandlerVersion)
	r.Post("/shutdown", s.HandlerShutdown)
	r.Post("/api/documents", s.HandlerSubmitDocument)
	r.Get("/api/tasks/{id}", s.HandlerTaskStatus)
	return r
}

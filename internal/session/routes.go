package session

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts all calculator endpoints onto the given router
// under the /calculator prefix.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/calculator", func(r chi.Router) {
		r.Post("/evaluate", h.Evaluate)

		r.Post("/sessions", h.Create)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
			r.Post("/actions", h.Press)
			r.Post("/keys", h.Keys)

			r.Get("/history", h.History)
			r.Delete("/history", h.ClearHistory)
			r.Get("/history/panel", h.HistoryPanel)
			r.Post("/history/{index}/select", h.SelectHistory)
		})
	})
}

package documents

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the document routes under the caller's prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Show)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/finalize", h.Finalize)
		r.Post("/reopen", h.Reopen)
		r.Post("/lines", h.AddLine)
		r.Patch("/lines/{lineID}", h.PatchLine)
		r.Delete("/lines/{lineID}", h.RemoveLine)
		r.Put("/lines/{lineID}/total", h.EditLineTotal)
	})
}

// MountPricingRoutes attaches the stateless pricing preview.
func (h *Handler) MountPricingRoutes(r chi.Router) {
	r.Post("/preview", h.Preview)
}

package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/seroka/quill/internal/auth"
	"github.com/seroka/quill/internal/postservice"
	"github.com/seroka/quill/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// broker, if non-nil, receives a post-change event after every successful
// mutation and serves the SSE stream at GET /events inside the admin group.
func NewRouter(svc *postservice.Service, authSvc *auth.Service, uploads *Uploads, broker *sse.Broker) chi.Router {
	h := NewHandler(svc, authSvc, uploads, broker)

	r := chi.NewRouter()

	// Public surface.
	r.Get("/posts", h.ListPosts)
	r.Get("/posts/{id}", h.GetPost)
	r.Post("/auth/login", h.Login)

	// Admin surface.
	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin(authSvc))
		r.Get("/posts/admin", h.ListAdminPosts)
		r.Post("/posts", h.CreatePost)
		r.Put("/posts/{id}", h.UpdatePost)
		r.Delete("/posts/{id}", h.DeletePost)
		r.Get("/auth/verify", h.VerifyToken)
		if broker != nil {
			r.Get("/events", broker.ServeHTTP)
		}
	})

	return r
}

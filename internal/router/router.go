package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/leca/photophriend/internal/api"
	"github.com/leca/photophriend/internal/handler"
)

// Server holds the HTTP handlers and router.
type Server struct {
	Handler *handler.Handler
	Router  chi.Router
}

// New creates a new Server with a fully configured chi router. An empty
// authToken leaves the API open.
func New(log *zap.Logger, h *handler.Handler, authToken string) *Server {
	s := &Server{Handler: h}

	r := chi.NewRouter()

	// CORS must run before other middleware to answer preflight OPTIONS.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RequestID)
	r.Use(api.RequestLogger(log))
	r.Use(middleware.Recoverer)

	// Health check (no auth required).
	r.Get("/health", s.Health)

	r.Group(func(r chi.Router) {
		r.Use(api.AuthMiddleware(authToken))

		r.Route("/photos", func(r chi.Router) {
			r.Post("/", h.UploadPhoto)
			r.Get("/", h.ListPhotos)
			r.Post("/download", h.DownloadZip)
			r.Post("/keywords", h.GenerateKeywords)
			r.Get("/{id}", h.GetPhoto)
			r.Put("/{id}/metadata", h.UpdateMetadata)
			r.Put("/{id}/keywords", h.SetKeywords)
			r.Get("/{id}/{version}", h.ServeVersion)
		})

		r.Get("/keywords", h.ListKeywords)

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", h.ListTrash)
			r.Post("/", h.MoveToTrash)
			r.Delete("/", h.PurgeTrash)
			r.Post("/restore", h.RestoreFromTrash)
			r.Delete("/permanent", h.DeletePermanently)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", h.CreateGroup)
			r.Get("/", h.ListGroups)
			r.Delete("/", h.DeleteGroups)
			r.Get("/{groupId}", h.GetGroup)
			r.Patch("/{groupId}", h.UpdateGroup)
			r.Post("/{groupId}/photos", h.AddToGroup)
			r.Delete("/{groupId}/photos", h.RemoveFromGroup)
		})
	})

	s.Router = r
	return s
}

// Health returns a simple health-check response.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	api.OK(w, map[string]string{"status": "ok"})
}

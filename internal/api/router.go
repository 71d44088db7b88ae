package api

import (
	"net/http"
	"time"

	"ditto-builder-backend/internal/config"
	"ditto-builder-backend/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	WidgetHandler *handlers.WidgetHandler
	StreamHandler *handlers.StreamHandler
	MemeHandler   *handlers.MemeHandler
	Config        *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	if deps.WidgetHandler == nil || deps.StreamHandler == nil || deps.MemeHandler == nil {
		panic("handler dependency is nil in router setup")
	}

	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID) // Inject request ID into context
	r.Use(middleware.RealIP)    // Use X-Forwarded-For or X-Real-IP
	r.Use(middleware.Logger)    // Log requests
	r.Use(middleware.Recoverer) // Recover from panics, return 500

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/deploy-options", deps.WidgetHandler.HandleDeployOptions)

		r.With(middleware.Timeout(2*time.Minute)).Post("/memes", deps.MemeHandler.HandleGenerateMeme)
		r.Post("/widgets", deps.WidgetHandler.HandleCreateWidget)

		// --- Authenticated Widget Routes (JWT Required) ---
		r.Route("/widgets/{"+handlers.WidgetIDParam+"}", func(r chi.Router) {
			r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))
			r.Use(RequireWidgetOwner)

			// No timeout: the socket lives as long as the client keeps it open.
			r.Get("/stream", deps.StreamHandler.HandleStream)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(5 * time.Minute))
				r.Get("/", deps.WidgetHandler.HandleGetWidget)
				r.Delete("/", deps.WidgetHandler.HandleDeleteWidget)
				r.Post("/messages", deps.WidgetHandler.HandleSendMessage)
				r.Post("/session/reset", deps.WidgetHandler.HandleResetSession)

				r.Get("/artifact", deps.WidgetHandler.HandleGetArtifact)
				r.Delete("/artifact", deps.WidgetHandler.HandleClearArtifact)
				r.Get("/artifact/download", deps.WidgetHandler.HandleDownloadArtifact)
				r.Get("/artifact/preview", deps.WidgetHandler.HandlePreviewArtifact)
			})
		})
	})

	return r
}

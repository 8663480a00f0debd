// Package api is the HTTP facade: a chi router over the service layer plus
// the websocket endpoint, metrics and static files.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"promohub/internal/ai"
	"promohub/internal/auth"
	"promohub/internal/metrics"
	"promohub/internal/middleware"
	"promohub/internal/service"
)

type Deps struct {
	Users      *service.UserService
	Content    *service.ContentService
	Groups     *service.GroupService
	Moderation *service.ModerationService
	Billing    *service.BillingService

	// Assistant may be nil when no AI key is configured.
	Assistant       ai.Assistant
	UpstreamTimeout time.Duration

	Admin  auth.AdminKey
	Tokens *auth.TokenService

	// Realtime serves the websocket upgrade on /ws.
	Realtime  http.Handler
	StaticDir string
}

type handler struct {
	Deps
	logger *slog.Logger
}

func NewRouter(d Deps, logger *slog.Logger) *chi.Mux {
	h := &handler{Deps: d, logger: logger}
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(auth.OptionalAuth(d.Tokens))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())
	if d.Realtime != nil {
		r.Handle("/ws", d.Realtime)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", h.registerUser)
		r.Get("/users/{email}", h.getUser)

		r.Get("/projects", h.listProjects)
		r.Post("/projects", h.createProject)
		r.Post("/projects/{id}/vote", h.voteProject)
		r.Delete("/projects/{id}", h.deleteProject)

		r.Get("/posts", h.listPosts)
		r.Post("/posts", h.createPost)
		r.Post("/posts/{id}/like", h.likePost)
		r.Delete("/posts/{id}", h.deletePost)

		r.Get("/groups", h.listGroups)
		r.Post("/groups", h.createGroup)
		r.Post("/groups/{id}/join", h.joinGroup)
		r.Get("/groups/{id}/messages", h.groupMessages)
		r.Post("/groups/{id}/messages", h.postGroupMessage)

		r.Post("/reports", h.createReport)
		r.Post("/admin-dms", h.messageAdmins)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/users", h.adminUsers)
			r.Get("/reports", h.adminReports)
			r.Get("/dms", h.adminDMs)
			r.Post("/ban", h.adminBan)
		})

		r.Post("/payments/intent", h.createIntent)
		r.Post("/payments/webhook", h.paymentWebhook)

		r.Post("/ai/copy", h.aiCopy)
		r.Post("/ai/coach", h.aiCoach)
	})

	if d.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(d.StaticDir)))
	}

	return r
}

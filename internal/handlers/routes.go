package handlers

import (
	"net/http"

	"bizconnect/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes собирает роутер. Все маршруты доступны и под /api, и от корня.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(PeerAddr)
	r.Use(middleware.RealIP)
	r.Use(h.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", h.mount)
	h.mount(r)

	return r
}

func (h *Handler) mount(r chi.Router) {
	r.Get("/health", h.HealthHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Use(h.authLimiter.Handler)
		r.Post("/register", h.RegisterHandler)
		r.Post("/login", h.LoginHandler)
		// старый адрес обновления профиля
		r.Put("/{id}", h.UpdateUserHandler)
	})

	r.Route("/opportunities", func(r chi.Router) {
		r.Get("/", h.GetOpportunitiesHandler)
		r.Post("/", h.CreateOpportunityHandler)
		r.Get("/published", h.GetPublishedOpportunitiesHandler)
		r.Get("/agency/{agencyId}", h.GetAgencyOpportunitiesHandler)
		r.Get("/saved/{vendorId}", h.GetSavedOpportunitiesHandler)
		r.Post("/save", h.SaveOpportunityHandler)
		r.Post("/unsave", h.UnsaveOpportunityHandler)
		r.Delete("/unsave/{vendorId}/{opportunityId}", h.RemoveSavedOpportunityHandler)
		r.Get("/{id}", h.GetOpportunityHandler)
		r.Put("/{id}", h.UpdateOpportunityHandler)
		r.Delete("/{id}", h.DeleteOpportunityHandler)
		r.With(h.RequireAdmin).Post("/{id}/approve", h.ApproveOpportunityHandler)
	})

	// /vendors: старое имя каталога пользователей
	for _, prefix := range []string{"/users", "/vendors"} {
		r.Route(prefix, func(r chi.Router) {
			r.Get("/", h.GetUsersHandler)
			r.Get("/{id}", h.GetUserHandler)
			r.Put("/{id}", h.UpdateUserHandler)
			r.Get("/{id}/capability-statement", h.DownloadCapabilityStatementHandler)
		})
	}

	r.Route("/applications", func(r chi.Router) {
		r.Get("/", h.GetApplicationsHandler)
		r.Post("/", h.CreateApplicationHandler)
		r.Get("/opportunity/{opportunityId}", h.GetOpportunityApplicantsHandler)
		r.Get("/vendor/{vendorId}", h.GetVendorApplicationsHandler)
		r.Get("/{id}", h.GetApplicationHandler)
		r.Put("/{id}/status", h.UpdateApplicationStatusHandler)
		r.Delete("/{id}", h.DeleteApplicationHandler)
	})

	r.Route("/messages", func(r chi.Router) {
		r.Post("/", h.SendMessageHandler)
		r.Post("/contact", h.ContactHandler)
		r.Get("/user/{userId}", h.GetUserMessagesHandler)
		r.Put("/{id}/read", h.MarkMessageReadHandler)
		r.Delete("/{id}", h.DeleteMessageHandler)
	})

	r.Post("/upload-cs", h.UploadCapabilityStatementHandler)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/", h.AdminRootHandler)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/dashboard", h.AdminDashboardHandler)
			r.Get("/users", h.AdminListUsersHandler)
			r.Post("/users", h.AdminCreateUserHandler)
			r.Get("/users/{id}", h.AdminGetUserHandler)
			r.Put("/users/{id}", h.AdminUpdateUserHandler)
			r.Delete("/users/{id}", h.AdminDeleteUserHandler)
			r.Put("/users/{id}/status", h.AdminSetUserStatusHandler)
		})
	})
}

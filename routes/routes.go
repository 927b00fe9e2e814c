package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/playforge/esports-platform/handlers"
	"github.com/playforge/esports-platform/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	tournamentHandler *handlers.TournamentHandler,
	registrationHandler *handlers.RegistrationHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты для просмотра турниров
		r.Get("/", tournamentHandler.List)
		r.Get("/{id}", tournamentHandler.Get)
		r.Get("/{id}/server-status", tournamentHandler.GetServerStatus)
		r.Get("/{id}/events", webSocketHandler.Subscribe)

		// Маршруты организатора
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize("organizer", "admin"))

			r.Post("/", tournamentHandler.Create)
			r.Post("/{id}/cancel", tournamentHandler.Cancel)
			r.Delete("/{id}", tournamentHandler.Delete)
		})

		// Подача и ведение заявок
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/{id}/registrations", registrationHandler.Submit)
		})

		// Админские операции
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize("admin"))

			r.Put("/{id}/server-status", tournamentHandler.SetServerStatus)
			r.Post("/{id}/assign-groups", tournamentHandler.AssignGroups)
			r.Post("/sweep", tournamentHandler.Sweep)
		})
	})

	router.Route("/registrations", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/{registrationID}", registrationHandler.Get)
		r.Post("/{registrationID}/images", registrationHandler.AttachImage)
		r.Delete("/{registrationID}/images/{imageID}", registrationHandler.DetachImage)
		r.Delete("/{registrationID}", registrationHandler.Cancel)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authorize("admin"))

			r.Post("/{registrationID}/verify", registrationHandler.Verify)
			r.Post("/{registrationID}/reject", registrationHandler.Reject)
			r.Post("/{registrationID}/pin-group", registrationHandler.PinGroup)
			r.Delete("/{registrationID}/pin-group", registrationHandler.UnpinGroup)
			r.Delete("/{registrationID}/force", registrationHandler.ForceDelete)
		})
	})
}

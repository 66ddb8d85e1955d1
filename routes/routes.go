package routes

import (
	"github.com/caulonghn/club-manager/handlers"
	"github.com/caulonghn/club-manager/middleware"
	"github.com/caulonghn/club-manager/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes собирает все HTTP-маршруты приложения.
// Чтение доступно любому залогиненному, мутации — менеджерам и админам.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	allowedOrigins []string,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	memberHandler *handlers.MemberHandler,
	gameHandler *handlers.GameHandler,
	eventHandler *handlers.PersonalEventHandler,
	balanceHandler *handlers.BalanceHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	manageRoles := middleware.Authorize(string(models.RoleAdmin), string(models.RoleManager))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Get("/ws", webSocketHandler.ServeWs)

	router.Route("/members", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/", memberHandler.List)
		r.Get("/{memberID}", memberHandler.GetByID)
		r.Get("/{memberID}/balance", balanceHandler.GetMemberBalance)

		r.Group(func(r chi.Router) {
			r.Use(manageRoles)

			r.Post("/", memberHandler.Create)
			r.Put("/{memberID}", memberHandler.Update)
			r.Delete("/{memberID}", memberHandler.Delete)
			r.Post("/{memberID}/avatar", memberHandler.UploadAvatar)
			r.Post("/{memberID}/remind", balanceHandler.SendReminder)
		})
	})

	router.Route("/games", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/", gameHandler.List)
		r.Get("/{gameID}", gameHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(manageRoles)

			r.Post("/", gameHandler.Create)
			r.Put("/{gameID}", gameHandler.Update)
			r.Delete("/{gameID}", gameHandler.Delete)
			r.Patch("/{gameID}/participants/{participantID}/payment", gameHandler.SetParticipantPayment)
		})
	})

	router.Route("/personal-events", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/", eventHandler.List)
		r.Get("/{eventID}", eventHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(manageRoles)

			r.Post("/", eventHandler.Create)
			r.Put("/{eventID}", eventHandler.Update)
			r.Delete("/{eventID}", eventHandler.Delete)
			r.Patch("/{eventID}/participants/{participantID}/payment", eventHandler.SetParticipantPayment)
		})
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.Authorize(string(models.RoleAdmin)))

		r.Put("/users/{userID}/role", adminHandler.SetUserRole)
	})
}

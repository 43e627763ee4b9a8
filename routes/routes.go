// Package routes wires the HTTP surface onto the handlers.
package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sportsfinder/sports-finder/handlers"
	"github.com/sportsfinder/sports-finder/middleware"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Users     *handlers.UserHandler
	Teams     *handlers.TeamHandler
	Invites   *handlers.InviteHandler
	Games     *handlers.GameHandler
	WebSocket *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, jwtSecret string, allowedOrigins []string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAuth := middleware.RequireAuth(jwtSecret)
	requireAnonymous := middleware.RequireAnonymous(jwtSecret)

	router.Group(func(r chi.Router) {
		r.Use(requireAnonymous)
		r.Post("/signup", h.Auth.Signup)
		r.Post("/login", h.Auth.Login)
	})

	router.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/logout", h.Auth.Logout)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.Users.List)
			r.Get("/me", h.Users.Me)
			r.Get("/{userID}", h.Users.GetByID)
			r.Put("/{userID}", h.Users.Update)
			r.Delete("/{userID}", h.Users.Delete)
			r.Put("/{userID}/avatar", h.Users.UploadAvatar)
			r.Get("/{userID}/teams", h.Teams.ListByUser)
		})

		r.Route("/teams", func(r chi.Router) {
			r.Get("/", h.Teams.List)
			r.Post("/", h.Teams.Create)
			r.Get("/my", h.Teams.ListMine)
			r.Get("/owner/{userID}", h.Teams.GetByOwner)
			r.Get("/{teamID}", h.Teams.GetByID)
			r.Put("/{teamID}", h.Teams.Update)
			r.Delete("/{teamID}", h.Teams.Delete)

			r.Post("/{teamID}/requests", h.Teams.SendJoinRequest)
			r.Delete("/{teamID}/requests/{userID}", h.Teams.RemoveJoinRequest)
			r.Post("/{teamID}/members/{userID}", h.Teams.AddMember)
			r.Delete("/{teamID}/members/{userID}", h.Teams.RemoveMember)
			r.Put("/{teamID}/logo", h.Teams.UploadLogo)

			r.Get("/{teamID}/games", h.Games.ListByTeam)
		})

		r.Route("/invites", func(r chi.Router) {
			r.Get("/", h.Invites.ListMine)
			r.Post("/", h.Invites.Send)
			r.Post("/{teamID}/accept", h.Invites.Accept)
			r.Delete("/{teamID}/users/{userID}", h.Invites.Remove)
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/", h.Games.List)
			r.Post("/", h.Games.Create)
			r.Get("/{gameID}", h.Games.GetByID)
			r.Put("/{gameID}", h.Games.Update)
			r.Delete("/{gameID}", h.Games.Delete)
		})

		r.Route("/ws", func(r chi.Router) {
			r.Get("/notifications", h.WebSocket.Notifications)
			r.Get("/dm/{userID}", h.WebSocket.DirectMessage)
			r.Get("/teams/{teamID}", h.WebSocket.TeamChat)
			r.Get("/games/{gameID}", h.WebSocket.GameChat)
		})
	})

	return router
}

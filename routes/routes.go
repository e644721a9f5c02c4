package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clubtable/tournament-engine/handlers"
	"github.com/clubtable/tournament-engine/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret []byte,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Route("/tournaments", func(r chi.Router) {
		// Read endpoints are public: the floor displays poll them
		// without credentials.
		r.Get("/", tournamentHandler.List)
		r.Get("/{tournamentID}", tournamentHandler.Get)
		r.Get("/{tournamentID}/rounds/{roundNumber}", tournamentHandler.GetRound)

		// Mutations are staff-only.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticator(jwtSecret))
			r.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleFloorDesk))

			r.Post("/", tournamentHandler.Create)
			r.Post("/{tournamentID}/players", tournamentHandler.Register)
			r.Post("/{tournamentID}/start", tournamentHandler.Start)
			r.Post("/{tournamentID}/rounds/{roundNumber}/groups/{groupNumber}/result", tournamentHandler.RecordResult)
			r.Post("/{tournamentID}/advance", tournamentHandler.Advance)
			r.Post("/{tournamentID}/cancel", tournamentHandler.Cancel)
			r.Post("/{tournamentID}/postpone", tournamentHandler.Postpone)
			r.Post("/{tournamentID}/resume", tournamentHandler.Resume)
			r.Put("/{tournamentID}/banner", tournamentHandler.UploadBanner)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}

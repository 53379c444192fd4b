package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/watchmenow/watchmenow-be/internal/api/handlers"
	"github.com/watchmenow/watchmenow-be/internal/services"
	"github.com/watchmenow/watchmenow-be/internal/websocket"
)

// RouterConfig collects what the router wires into its handlers.
type RouterConfig struct {
	Hub          *websocket.Hub
	Users        services.UserServiceProvider
	Films        services.FilmServiceProvider
	Store        handlers.Pinger
	CORSOrigins  []string
	SecureCookie bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	// Credentialed requests are answered with the caller's own origin, never
	// "*", which browsers reject alongside Allow-Credentials.
	corsOptions := cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization", "token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if allowsAnyOrigin(cfg.CORSOrigins) {
		corsOptions.AllowedOrigins = nil
		corsOptions.AllowOriginFunc = func(*http.Request, string) bool { return true }
	}
	r.Use(cors.Handler(corsOptions))

	// Initialize handlers
	var feed handlers.ClientCounter
	if cfg.Hub != nil {
		feed = cfg.Hub
	}
	serverHandler := handlers.NewServerHandler(cfg.Store, feed)
	userHandler := handlers.NewUserHandler(cfg.Users, cfg.SecureCookie)
	filmHandler := handlers.NewFilmHandler(cfg.Films)

	r.Route("/api", func(r chi.Router) {
		r.Get("/server", serverHandler.Liveness)
		r.Get("/health", serverHandler.Health)

		// WebSocket film feed
		if cfg.Hub != nil {
			r.Get("/ws", handlers.NewWebSocketHandler(cfg.Hub).Serve)
		}

		// Accounts and sessions
		r.Post("/register", userHandler.Register)
		r.Get("/verifyemail", userHandler.VerifyEmail)
		r.Post("/login", userHandler.Login)
		r.Post("/checktoken", userHandler.CheckToken)
		r.Get("/logout", userHandler.Logout)
		r.Get("/finduser", userHandler.FindUser)
		r.Post("/removeuser", userHandler.RemoveUser)
		r.Post("/updateuser", userHandler.UpdateUser)

		// Films
		r.Post("/addfilms", filmHandler.AddFilm)
		r.Get("/getfilmbyid", filmHandler.GetFilmByTitle)
		r.Get("/getallfilms", filmHandler.GetAllFilms)
		r.Post("/removefilm", filmHandler.RemoveFilm)
		r.Post("/updatefilms", filmHandler.UpdateFilm)
		r.Get("/getfilmbytype", filmHandler.GetFilmsByType)
		r.Get("/getlast4upload", filmHandler.GetLastUpdated)
	})

	return r
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

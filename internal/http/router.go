package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/tesouraria/internal/http/auth"
	"github.com/MrJamesThe3rd/tesouraria/internal/http/importer"
	"github.com/MrJamesThe3rd/tesouraria/internal/http/ledger"
	"github.com/MrJamesThe3rd/tesouraria/internal/http/matching"
	"github.com/MrJamesThe3rd/tesouraria/internal/http/movement"
	"github.com/MrJamesThe3rd/tesouraria/internal/http/period"
)

type Options struct {
	AuthSecret []byte
	// AuthDisabled runs every request as the local administrator.
	AuthDisabled   bool
	AdminRole      string
	AllowedOrigins []string
}

type Handlers struct {
	Periods   *period.Handler
	Ledger    *ledger.Handler
	Movements *movement.Handler
	Import    *importer.Handler
	Matching  *matching.Handler
}

func New(opts Options, h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/api/v1", func(r chi.Router) {
		if opts.AuthDisabled {
			r.Use(auth.LocalAdmin(opts.AdminRole))
		} else {
			r.Use(auth.Middleware(opts.AuthSecret))
		}

		r.Route("/periods", h.Periods.Routes)

		r.Route("/ledger", h.Ledger.Routes)

		r.Route("/movements", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Movements.Routes(r)
		})

		r.Route("/import", h.Import.Routes)

		r.Route("/matching", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Matching.Routes(r)
		})
	})

	return router
}

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/jovenlab/sportal/internal/config"
	"github.com/jovenlab/sportal/internal/httputil"
	"github.com/jovenlab/sportal/internal/live"
	"github.com/jovenlab/sportal/internal/metrics"
	"github.com/jovenlab/sportal/internal/middleware"
	"github.com/jovenlab/sportal/internal/service"
	"github.com/jovenlab/sportal/internal/store"
	"github.com/jovenlab/sportal/views"
	"github.com/markbates/goth/gothic"
	"golang.org/x/time/rate"
)

// app holds the services the handlers share.
type app struct {
	cfg            *config.Config
	sessionManager *scs.SessionManager
	tournaments    *service.TournamentService
	progression    *service.ProgressionService
	users          *service.UserService
	live           *live.Handler
	metrics        *metrics.Metrics
	limiter        *middleware.KeyedRateLimiter
	providers      []string
}

func newApp(cfg *config.Config, database *sqlx.DB, sessionManager *scs.SessionManager, hub *live.Hub, m *metrics.Metrics, providers []string, logger *slog.Logger) *app {
	tournamentStore := store.NewTournamentStore(database)
	return &app{
		cfg:            cfg,
		sessionManager: sessionManager,
		tournaments:    service.NewTournamentService(database, tournamentStore),
		progression:    service.NewProgressionService(database, tournamentStore, hub, m, logger),
		users:          service.NewUserService(database, store.NewUserStore(database)),
		live:           live.NewHandler(hub, cfg.AllowedOrigins),
		metrics:        m,
		limiter:        middleware.NewKeyedRateLimiter(rate.Limit(cfg.MutationRate), cfg.MutationBurst),
		providers:      providers,
	}
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(a.sessionManager.LoadAndSave)
	r.Use(middleware.LoadUser(a.sessionManager, a.users))

	// Serve static files
	fileServer := http.FileServer(http.Dir("./static"))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	r.Handle("/metrics", a.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   a.cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		a.apiRoutes(r)
	})

	r.Get("/tournaments/{id}/live", func(w http.ResponseWriter, r *http.Request) {
		id, ok := tournamentID(w, r)
		if !ok {
			return
		}
		a.live.Serve(w, r, id.String())
	})

	r.Get("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := tournamentID(w, r)
		if !ok {
			return
		}
		data, err := a.tournaments.GetTournamentData(r.Context(), id)
		if err != nil {
			httputil.Error(w, "Failed to get tournament", err)
			return
		}
		views.Render(w, r, views.TournamentView(data))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			tournaments, err := a.tournaments.GetTournamentsForUser(r.Context())
			if err != nil {
				httputil.Error(w, "Failed to get tournaments", err)
				return
			}
			views.Render(w, r, views.Index(tournaments))
		})

		r.Get("/tournaments/create", func(w http.ResponseWriter, r *http.Request) {
			views.Render(w, r, views.CreateTournamentPage())
		})

		r.Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}

			input := service.CreateTournamentInput{
				Name:   r.Form.Get("name"),
				Format: r.Form.Get("format"),
				Teams:  strings.Split(strings.ReplaceAll(r.Form.Get("teams"), "\r\n", "\n"), "\n"),
			}
			if raw := r.Form.Get("start_date"); raw != "" {
				start, err := time.Parse(time.DateOnly, raw)
				if err != nil {
					httputil.BadRequest(w, "Invalid start date", err)
					return
				}
				input.StartDate = &start
			}

			id, err := a.tournaments.CreateTournament(r.Context(), input)
			if err != nil {
				httputil.Error(w, "Failed to create tournament", err)
				return
			}
			http.Redirect(w, r, fmt.Sprintf("/tournaments/%s", id), http.StatusSeeOther)
		})
	})

	r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		views.Render(w, r, views.LoginPage(a.providers))
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		if !slices.Contains(a.providers, provider) {
			httputil.NotFound(w, "Unknown login provider", nil)
			return
		}
		gothic.BeginAuthHandler(w, gothic.GetContextWithProvider(r, provider))
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		if !slices.Contains(a.providers, provider) {
			httputil.NotFound(w, "Unknown login provider", nil)
			return
		}

		gothUser, err := gothic.CompleteUserAuth(w, gothic.GetContextWithProvider(r, provider))
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		user, err := a.users.FindOrCreateUserByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create user", err)
			return
		}

		a.login(w, r, user.ID)
	})

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		user, err := a.users.EnsureGuestUser(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to login as guest", err)
			return
		}
		a.login(w, r, user.ID)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := a.sessionManager.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to log out", err)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	return r
}

func (a *app) login(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	if err := a.sessionManager.RenewToken(r.Context()); err != nil {
		httputil.InternalServerError(w, "Failed to start session", err)
		return
	}
	a.sessionManager.Put(r.Context(), middleware.SessionUserKey, userID.String())
	http.Redirect(w, r, "/", http.StatusFound)
}

func tournamentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid tournament ID", fmt.Errorf("%w: %w", bracket.ErrValidation, err))
		return uuid.Nil, false
	}
	return id, true
}

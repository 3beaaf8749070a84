package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/jovenlab/sportal/internal/elimination"
	"github.com/jovenlab/sportal/internal/httputil"
	"github.com/jovenlab/sportal/internal/middleware"
	"github.com/jovenlab/sportal/internal/service"
)

type resultRequest struct {
	service.MatchRef
	service.ResultInput
}

type countResponse struct {
	Affected int64 `json:"affected"`
}

type previewResponse struct {
	Bracket  *elimination.Bracket `json:"bracket"`
	Warnings []string             `json:"warnings,omitempty"`
}

func (a *app) apiRoutes(r chi.Router) {
	r.With(middleware.RequireAPIAuth, middleware.RateLimit(a.limiter)).Post("/tournaments", a.apiCreateTournament)

	r.Route("/tournaments/{id}", func(r chi.Router) {
		r.Get("/matches", a.apiMatches)
		r.Get("/standings", a.apiStandings)
		r.Get("/bracket", a.apiBracket)
		r.Get("/preview", a.apiPreview)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIAuth)
			r.Use(middleware.RateLimit(a.limiter))

			r.Post("/generate", a.apiGenerate)
			r.Post("/results", a.apiUpdateResult)
			r.Post("/reset", a.apiReset)
			r.Delete("/matches", a.apiDeleteMatches)
		})
	})
}

// apiTournamentID parses the {id} path parameter for JSON handlers.
func apiTournamentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.JSONError(w, "invalid tournament id", fmt.Errorf("%w: invalid tournament id", bracket.ErrValidation))
		return uuid.Nil, false
	}
	return id, true
}

func (a *app) apiCreateTournament(w http.ResponseWriter, r *http.Request) {
	var input service.CreateTournamentInput
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.JSONError(w, "create tournament", err)
		return
	}
	id, err := a.tournaments.CreateTournament(r.Context(), input)
	if err != nil {
		httputil.JSONError(w, "create tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id})
}

func (a *app) apiGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := apiTournamentID(w, r)
	if !ok {
		return
	}
	var opts service.GenerateOptions
	if err := httputil.ReadJSON(w, r, &opts); err != nil {
		httputil.JSONError(w, "generate matches", err)
		return
	}
	result, err := a.progression.Generate(r.Context(), id, opts)
	if err != nil {
		httputil.JSONError(w, "generate matches", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (a *app) apiUpdateResult(w http.ResponseWriter, r *http.Request) {
	id, ok := apiTournamentID(w, r)
	if !ok {
		return
	}
	var req resultRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.JSONError(w, "update result", err)
		return
	}
	outcome, err := a.progression.UpdateResult(r.Context(), id, req.MatchRef, req.ResultInput)
	if err != nil {
		httputil.JSONError(w, "update result", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

func (a *app) apiReset(w http.ResponseWriter, r *http.Request) {
	id, ok := apiTournamentID(w, r)
	if !ok {
		return
	}
	n, err := a.progression.Reset(r.Context(), id)
	if err != nil {
		httputil.JSONError(w, "reset tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, countResponse{Affected: n})
}

func (a *app) apiDeleteMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := apiTournamentID(w, r)
	if !ok {
		return
	}
	n, err := a.progression.DeleteMatches(r.Context(), id)
	if err != nil {
		httputil.JSONError(w, "delete matches", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, countResponse{Affected: n})
}

func (a *app) apiMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := apiTournamentID(w, r)
	if !ok {
		return
	}
	matches, err := a.progression.Matches(r.Context(), id)
	if err != nil {
		httputil.JSONError(w, "list matches", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, matches)
}

func (a *app) apiStandings(w http.ResponseWriter, r *http.Request) {
	id, ok := apiTournamentID(w, r)
	if !ok {
		return
	}
	standings, err := a.progression.Standings(r.Context(), id)
	if err != nil {
		httputil.JSONError(w, "standings", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, standings)
}

func (a *app) apiBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := apiTournamentID(w, r)
	if !ok {
		return
	}
	b, err := a.progression.Bracket(r.Context(), id)
	if err != nil {
		httputil.JSONError(w, "bracket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

// apiPreview takes the selected bye teams as repeated ?bye= parameters.
func (a *app) apiPreview(w http.ResponseWriter, r *http.Request) {
	id, ok := apiTournamentID(w, r)
	if !ok {
		return
	}
	b, warnings, err := a.progression.PreviewBracket(r.Context(), id, r.URL.Query()["bye"])
	if err != nil {
		httputil.JSONError(w, "preview bracket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, previewResponse{Bracket: b, Warnings: warnings})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/jovenlab/sportal/internal/elimination"
	"github.com/jovenlab/sportal/internal/middleware"
	"github.com/jovenlab/sportal/internal/roundrobin"
	"github.com/jovenlab/sportal/internal/store"
	"golang.org/x/sync/errgroup"
)

type TournamentService struct {
	db    *sqlx.DB
	store *store.TournamentStore
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore) *TournamentService {
	return &TournamentService{db: db, store: store}
}

type CreateTournamentInput struct {
	Name      string     `json:"name"`
	Format    string     `json:"format"`
	StartDate *time.Time `json:"start_date,omitempty"`
	Teams     []string   `json:"teams"`
}

type TournamentData struct {
	Tournament    *bracket.Tournament
	Registrations []bracket.Registration
	Matches       []bracket.Match
	Standings     []roundrobin.Standing
	Bracket       *elimination.Bracket
	IsOwner       bool
}

// CreateTournament stores a tournament owned by the caller together with its
// roster. Teams are seeded in the order given.
func (s *TournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (uuid.UUID, error) {
	ownerID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, ErrSignInRequired
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("%w: tournament name is required", bracket.ErrValidation)
	}
	format, err := bracket.ParseFormat(input.Format)
	if err != nil {
		return uuid.Nil, err
	}
	teams, err := cleanRoster(input.Teams)
	if err != nil {
		return uuid.Nil, err
	}

	startDate := time.Now().UTC()
	if input.StartDate != nil {
		startDate = input.StartDate.UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, classify(err)
	}
	defer tx.Rollback()

	tournament := bracket.Tournament{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		Format:    format,
		StartDate: startDate,
	}
	if err := s.store.CreateTournament(ctx, tx, &tournament); err != nil {
		return uuid.Nil, classify(err)
	}

	registrations := make([]bracket.Registration, len(teams))
	for i, team := range teams {
		registrations[i] = bracket.Registration{
			ID:           uuid.New(),
			TournamentID: tournament.ID,
			TeamName:     team,
			Seed:         i + 1,
		}
	}
	if err := s.store.CreateRegistrations(ctx, tx, registrations); err != nil {
		return uuid.Nil, classify(err)
	}

	return tournament.ID, classify(tx.Commit())
}

// cleanRoster trims names and drops empty lines. Reserved placeholders and
// exact duplicates are rejected; teams that differ only in case are kept.
func cleanRoster(raw []string) ([]string, error) {
	teams := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if bracket.IsReservedName(name) {
			return nil, fmt.Errorf("%w: %q is reserved and cannot be a team name", bracket.ErrValidation, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: team %q is listed twice", bracket.ErrValidation, name)
		}
		seen[name] = struct{}{}
		teams = append(teams, name)
	}
	if len(teams) < 2 {
		return nil, fmt.Errorf("%w: at least two teams are required", bracket.ErrValidation)
	}
	return teams, nil
}

// GetTournamentData loads everything the tournament page shows. The
// standings or the bracket are derived from the loaded matches.
func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	data := &TournamentData{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data.Tournament, err = s.store.GetTournament(gctx, s.db, id)
		return err
	})
	g.Go(func() error {
		var err error
		data.Registrations, err = s.store.FindRegistrations(gctx, s.db, id)
		return err
	})
	g.Go(func() error {
		var err error
		data.Matches, err = s.store.FindMatches(gctx, s.db, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, classify(err)
	}

	if userID, ok := middleware.GetUserIDFromContext(ctx); ok {
		data.IsOwner = userID == data.Tournament.OwnerID
	}

	if len(data.Matches) == 0 {
		return data, nil
	}

	switch data.Tournament.Format {
	case bracket.RoundRobin:
		teams := make([]string, len(data.Registrations))
		for i, r := range data.Registrations {
			teams[i] = r.TeamName
		}
		data.Standings = roundrobin.ComputeStandings(teams, data.Matches)
	case bracket.SingleElimination:
		b, err := elimination.FromMatches(data.Matches)
		if err != nil && !errors.Is(err, elimination.ErrNotStarted) {
			return nil, err
		}
		data.Bracket = b
	}
	return data, nil
}

func (s *TournamentService) GetTournamentsForUser(ctx context.Context) ([]bracket.Tournament, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrSignInRequired
	}
	tournaments, err := s.store.GetTournamentsByOwner(ctx, s.db, userID)
	if err != nil {
		return nil, classify(err)
	}
	return tournaments, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/jovenlab/sportal/internal/elimination"
	"github.com/jovenlab/sportal/internal/live"
	"github.com/jovenlab/sportal/internal/metrics"
	"github.com/jovenlab/sportal/internal/middleware"
	"github.com/jovenlab/sportal/internal/roundrobin"
)

var (
	ErrAlreadyGenerated = fmt.Errorf("%w: matches were already generated, pass force to regenerate", bracket.ErrConflict)
	ErrNotOrganizer     = fmt.Errorf("%w: only the organizer can change this tournament", bracket.ErrForbidden)
	ErrSignInRequired   = fmt.Errorf("%w: sign in required", bracket.ErrForbidden)
	ErrWrongFormat      = fmt.Errorf("%w: operation does not apply to this tournament format", bracket.ErrValidation)
)

// MatchStore is the persistence the progression operations need. Every call
// runs on the executor it is given, normally the operation's transaction.
type MatchStore interface {
	GetTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Tournament, error)
	UpdateTournamentStartDate(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, startDate time.Time) error
	FindRoster(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]string, error)
	FindMatches(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Match, error)
	CreateMatches(ctx context.Context, q sqlx.ExtContext, matches []bracket.Match) error
	UpdateMatch(ctx context.Context, q sqlx.ExtContext, match *bracket.Match) error
	DeleteMatches(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (int64, error)
	ResetMatchResults(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (int64, error)
	ClaimGeneration(ctx context.Context, q sqlx.ExtContext, tournamentID, userID uuid.UUID) error
	ReleaseGeneration(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) error
	HasGeneration(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (bool, error)
}

// Notifier tells live clients that a tournament changed.
type Notifier interface {
	Publish(msg live.Message)
}

type ProgressionService struct {
	db       *sqlx.DB
	store    MatchStore
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewProgressionService wires the controller. notifier and m may be nil.
func NewProgressionService(db *sqlx.DB, store MatchStore, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *ProgressionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressionService{
		db:       db,
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type GenerateOptions struct {
	Force    bool     `json:"force"`
	ByeSeeds []string `json:"bye_seeds"`
}

type GenerateResult struct {
	Matches  []bracket.Match      `json:"matches"`
	Warnings []string             `json:"warnings,omitempty"`
	Bracket  *elimination.Bracket `json:"bracket,omitempty"`
}

// MatchRef picks a match either by id or by the two teams that play it.
type MatchRef struct {
	MatchID *uuid.UUID `json:"match_id,omitempty"`
	TeamA   string     `json:"team_a,omitempty"`
	TeamB   string     `json:"team_b,omitempty"`
}

// ResultInput is a result as entered by the organizer: a keyword
// (PENDING, ONGOING, DRAW), the winning team's name, or WIN with a slot.
type ResultInput struct {
	Result     string `json:"result"`
	WinnerSlot *int   `json:"winner_slot,omitempty"`
}

type UpdateOutcome struct {
	Matches         []bracket.Match                     `json:"matches"`
	Stale           []elimination.StaleDownstreamResult `json:"stale,omitempty"`
	Champion        string                              `json:"champion,omitempty"`
	NeedsResolution bool                                `json:"needs_resolution,omitempty"`
}

// operation is the state a mutating call works on: the caller, the freshly
// loaded tournament and the transaction everything runs in.
type operation struct {
	tx         *sqlx.Tx
	tournament *bracket.Tournament
	userID     uuid.UUID
	event      string
}

// mutate is the single gate for every change to a tournament's matches. It
// loads the tournament inside the transaction, checks the caller owns it,
// runs fn, commits and then notifies live clients.
func (s *ProgressionService) mutate(ctx context.Context, name string, tournamentID uuid.UUID, fn func(op *operation) error) (err error) {
	started := time.Now()
	format := ""
	defer func() {
		s.metrics.ObserveOperation(name, format, started, err)
		if err != nil {
			s.logger.Warn("progression operation failed", "operation", name, "tournament_id", tournamentID, "error", err)
		}
	}()

	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return ErrSignInRequired
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournament(ctx, tx, tournamentID)
	if err != nil {
		return classify(err)
	}
	format = string(tournament.Format)

	if tournament.OwnerID != userID {
		return fmt.Errorf("%w (tournament %s)", ErrNotOrganizer, tournamentID)
	}

	op := &operation{tx: tx, tournament: tournament, userID: userID, event: live.MatchesUpdated}
	if err := fn(op); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}

	s.logger.Info("progression operation applied", "operation", name, "tournament_id", tournamentID, "format", format)
	s.publish(tournamentID, name, op.event)
	return nil
}

func (s *ProgressionService) publish(tournamentID uuid.UUID, operation, event string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(live.Message{
		Type:    event,
		RoomID:  tournamentID.String(),
		Payload: map[string]string{"operation": operation},
	})
	s.metrics.Broadcast(event)
}

// classify keeps classified errors as they are and marks everything else as
// a storage failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range []error{
		bracket.ErrValidation,
		bracket.ErrForbidden,
		bracket.ErrConflict,
		bracket.ErrNotFound,
		bracket.ErrPersistence,
	} {
		if errors.Is(err, class) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", bracket.ErrPersistence, err)
}

// Generate creates the matches of a tournament from its roster. It refuses
// when matches already exist unless opts.Force is set, in which case the old
// matches are deleted first, all in one transaction.
func (s *ProgressionService) Generate(ctx context.Context, tournamentID uuid.UUID, opts GenerateOptions) (*GenerateResult, error) {
	var result *GenerateResult
	err := s.mutate(ctx, "generate", tournamentID, func(op *operation) error {
		existing, err := s.store.FindMatches(ctx, op.tx, tournamentID)
		if err != nil {
			return err
		}
		claimed, err := s.store.HasGeneration(ctx, op.tx, tournamentID)
		if err != nil {
			return err
		}

		if len(existing) > 0 || claimed {
			if !opts.Force {
				return ErrAlreadyGenerated
			}
			deleted, err := s.store.DeleteMatches(ctx, op.tx, tournamentID)
			if err != nil {
				return err
			}
			if err := s.store.ReleaseGeneration(ctx, op.tx, tournamentID); err != nil {
				return err
			}
			s.metrics.MatchesWritten("deleted", int(deleted))
		}

		teams, err := s.store.FindRoster(ctx, op.tx, tournamentID)
		if err != nil {
			return err
		}

		result, err = buildMatches(op.tournament, teams, opts.ByeSeeds)
		if err != nil {
			return err
		}

		if err := s.store.ClaimGeneration(ctx, op.tx, tournamentID, op.userID); err != nil {
			return err
		}
		if err := s.store.CreateMatches(ctx, op.tx, result.Matches); err != nil {
			return err
		}
		s.metrics.MatchesWritten("created", len(result.Matches))

		now := s.now()
		if op.tournament.StartDate.After(now) {
			if err := s.store.UpdateTournamentStartDate(ctx, op.tx, tournamentID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func buildMatches(tournament *bracket.Tournament, teams []string, byeSeeds []string) (*GenerateResult, error) {
	switch tournament.Format {
	case bracket.RoundRobin:
		if len(byeSeeds) > 0 {
			return nil, fmt.Errorf("%w: byes only exist in elimination brackets", ErrWrongFormat)
		}
		matches, err := roundrobin.Generate(tournament.ID, teams)
		if err != nil {
			return nil, err
		}
		return &GenerateResult{Matches: matches}, nil

	case bracket.SingleElimination:
		b, warnings, err := elimination.Build(teams, byeSeeds)
		if err != nil {
			return nil, err
		}
		return &GenerateResult{
			Matches:  b.Materialize(tournament.ID),
			Warnings: warnings,
			Bracket:  b,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", bracket.ErrValidation, tournament.Format)
}

// UpdateResult records a result. In a round robin every stored row of the
// pair is updated; in an elimination bracket the correction is carried
// forward and the results it invalidated are returned as stale.
func (s *ProgressionService) UpdateResult(ctx context.Context, tournamentID uuid.UUID, ref MatchRef, input ResultInput) (*UpdateOutcome, error) {
	var outcome *UpdateOutcome
	err := s.mutate(ctx, "update_result", tournamentID, func(op *operation) error {
		matches, err := s.store.FindMatches(ctx, op.tx, tournamentID)
		if err != nil {
			return err
		}

		switch op.tournament.Format {
		case bracket.RoundRobin:
			outcome, err = updateRoundRobin(matches, ref, input)
		case bracket.SingleElimination:
			outcome, err = updateElimination(matches, ref, input)
		default:
			err = fmt.Errorf("%w: unknown format %q", bracket.ErrValidation, op.tournament.Format)
		}
		if err != nil {
			return err
		}

		for i := range outcome.Matches {
			if err := s.store.UpdateMatch(ctx, op.tx, &outcome.Matches[i]); err != nil {
				return err
			}
		}
		s.metrics.MatchesWritten("updated", len(outcome.Matches))
		s.metrics.StaleResults(len(outcome.Stale))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func updateRoundRobin(matches []bracket.Match, ref MatchRef, input ResultInput) (*UpdateOutcome, error) {
	// A winner slot is read against the row the caller referenced.
	var referenced *bracket.Match
	var targets []*bracket.Match
	if ref.MatchID != nil {
		for i := range matches {
			if matches[i].ID == *ref.MatchID {
				referenced = &matches[i]
				targets = roundrobin.FindPair(matches, referenced.TeamA, referenced.TeamB)
				break
			}
		}
	} else {
		if ref.TeamA == "" || ref.TeamB == "" {
			return nil, fmt.Errorf("%w: a match id or both team names are required", bracket.ErrValidation)
		}
		targets = roundrobin.FindPair(matches, ref.TeamA, ref.TeamB)
		if len(targets) > 0 {
			referenced = &bracket.Match{TeamA: ref.TeamA, TeamB: ref.TeamB}
		}
	}
	if len(targets) == 0 {
		return nil, roundrobin.ErrMatchNotFound
	}

	r, err := resolveResult(input, referenced)
	if err != nil {
		return nil, err
	}
	winner := referenced.Team(r.Slot)

	outcome := &UpdateOutcome{}
	for _, m := range targets {
		updated := *m
		switch {
		case r.Status != bracket.ResultWin:
			updated.SetResult(r)
		case updated.TeamA == winner:
			updated.SetResult(bracket.Win(1))
		default:
			updated.SetResult(bracket.Win(2))
		}
		outcome.Matches = append(outcome.Matches, updated)
	}
	return outcome, nil
}

func updateElimination(matches []bracket.Match, ref MatchRef, input ResultInput) (*UpdateOutcome, error) {
	b, err := elimination.FromMatches(matches)
	if err != nil {
		return nil, err
	}

	var game *elimination.Game
	if ref.MatchID != nil {
		game, err = b.GameForMatch(*ref.MatchID)
	} else {
		game, err = findGame(b, ref.TeamA, ref.TeamB)
	}
	if err != nil {
		return nil, err
	}

	r, err := resolveResult(input, &bracket.Match{TeamA: game.Teams[0], TeamB: game.Teams[1]})
	if err != nil {
		return nil, err
	}

	out, err := b.UpdateMatchResult(game.ID, r)
	if err != nil {
		return nil, err
	}

	return &UpdateOutcome{
		Matches:         b.Changed(matches),
		Stale:           out.Stale,
		Champion:        out.Champion,
		NeedsResolution: out.NeedsResolution,
	}, nil
}

func findGame(b *elimination.Bracket, a, c string) (*elimination.Game, error) {
	if a == "" || c == "" {
		return nil, fmt.Errorf("%w: a match id or both team names are required", bracket.ErrValidation)
	}
	for i := range b.Games {
		g := &b.Games[i]
		if g.MatchID == nil {
			continue
		}
		if (g.Teams[0] == a && g.Teams[1] == c) || (g.Teams[0] == c && g.Teams[1] == a) {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: no game between %q and %q", elimination.ErrGameNotFound, a, c)
}

func resolveResult(input ResultInput, m *bracket.Match) (bracket.Result, error) {
	if input.WinnerSlot != nil {
		if input.Result != "" && !strings.EqualFold(input.Result, string(bracket.ResultWin)) {
			return bracket.Result{}, fmt.Errorf("%w: winner_slot only goes with a WIN result", bracket.ErrValidation)
		}
		r := bracket.Win(*input.WinnerSlot)
		return r, r.Validate()
	}
	return bracket.ParseResult(input.Result, m)
}

// Reset clears results. A round robin keeps its matches with every result
// back to pending; an elimination bracket is deleted and must be generated
// again.
func (s *ProgressionService) Reset(ctx context.Context, tournamentID uuid.UUID) (int64, error) {
	var affected int64
	err := s.mutate(ctx, "reset", tournamentID, func(op *operation) error {
		var err error
		switch op.tournament.Format {
		case bracket.RoundRobin:
			affected, err = s.store.ResetMatchResults(ctx, op.tx, tournamentID)
			s.metrics.MatchesWritten("updated", int(affected))
			return err
		default:
			affected, err = s.deleteAll(ctx, op)
			return err
		}
	})
	return affected, err
}

// DeleteMatches removes every match of the tournament and releases the
// generation claim.
func (s *ProgressionService) DeleteMatches(ctx context.Context, tournamentID uuid.UUID) (int64, error) {
	var deleted int64
	err := s.mutate(ctx, "delete_matches", tournamentID, func(op *operation) error {
		var err error
		deleted, err = s.deleteAll(ctx, op)
		return err
	})
	return deleted, err
}

func (s *ProgressionService) deleteAll(ctx context.Context, op *operation) (int64, error) {
	deleted, err := s.store.DeleteMatches(ctx, op.tx, op.tournament.ID)
	if err != nil {
		return 0, err
	}
	if err := s.store.ReleaseGeneration(ctx, op.tx, op.tournament.ID); err != nil {
		return 0, err
	}
	s.metrics.MatchesWritten("deleted", int(deleted))
	op.event = live.MatchesDeleted
	return deleted, nil
}

func (s *ProgressionService) load(ctx context.Context, tournamentID uuid.UUID) (*bracket.Tournament, []bracket.Match, error) {
	tournament, err := s.store.GetTournament(ctx, s.db, tournamentID)
	if err != nil {
		return nil, nil, classify(err)
	}
	matches, err := s.store.FindMatches(ctx, s.db, tournamentID)
	if err != nil {
		return nil, nil, classify(err)
	}
	return tournament, matches, nil
}

func (s *ProgressionService) Matches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	_, matches, err := s.load(ctx, tournamentID)
	return matches, err
}

// Standings are computed from the stored results on every call.
func (s *ProgressionService) Standings(ctx context.Context, tournamentID uuid.UUID) ([]roundrobin.Standing, error) {
	tournament, matches, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Format != bracket.RoundRobin {
		return nil, fmt.Errorf("%w: standings are kept for round robin tournaments", ErrWrongFormat)
	}
	teams, err := s.store.FindRoster(ctx, s.db, tournamentID)
	if err != nil {
		return nil, classify(err)
	}
	return roundrobin.ComputeStandings(teams, matches), nil
}

func (s *ProgressionService) Bracket(ctx context.Context, tournamentID uuid.UUID) (*elimination.Bracket, error) {
	tournament, matches, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Format != bracket.SingleElimination {
		return nil, fmt.Errorf("%w: round robin tournaments have no bracket", ErrWrongFormat)
	}
	return elimination.FromMatches(matches)
}

// PreviewBracket builds the bracket the roster would produce with the given
// byes without saving anything.
func (s *ProgressionService) PreviewBracket(ctx context.Context, tournamentID uuid.UUID, byeSeeds []string) (*elimination.Bracket, []string, error) {
	tournament, err := s.store.GetTournament(ctx, s.db, tournamentID)
	if err != nil {
		return nil, nil, classify(err)
	}
	if tournament.Format != bracket.SingleElimination {
		return nil, nil, fmt.Errorf("%w: round robin tournaments have no bracket", ErrWrongFormat)
	}
	teams, err := s.store.FindRoster(ctx, s.db, tournamentID)
	if err != nil {
		return nil, nil, classify(err)
	}
	return elimination.Build(teams, byeSeeds)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// TournamentStore persists tournaments, their rosters and their matches.
// Every method takes the executor to run on, so callers decide whether a
// call joins a transaction.
type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) DB() *sqlx.DB {
	return s.db
}

const (
	createTournamentQuery = `INSERT INTO tournaments (id, owner_id, name, format, start_date, created_at)
		VALUES (:id, :owner_id, :name, :format, :start_date, :created_at)`
	createRegistrationsQuery = `INSERT INTO registrations (id, tournament_id, team_name, seed, created_at)
		VALUES (:id, :tournament_id, :team_name, :seed, :created_at)`
	createMatchesQuery = `INSERT INTO matches (id, tournament_id, team_a, team_b, result, winner_slot, round, position, created_at, updated_at)
		VALUES (:id, :tournament_id, :team_a, :team_b, :result, :winner_slot, :round, :position, :created_at, :updated_at)`
	updateMatchQuery = `UPDATE matches SET
		team_a = :team_a,
		team_b = :team_b,
		result = :result,
		winner_slot = :winner_slot,
		updated_at = :updated_at
		WHERE id = :id AND tournament_id = :tournament_id`
)

func (s *TournamentStore) CreateTournament(ctx context.Context, q sqlx.ExtContext, tournament *bracket.Tournament) error {
	if tournament.CreatedAt.IsZero() {
		tournament.CreatedAt = time.Now().UTC()
	}
	_, err := sqlx.NamedExecContext(ctx, q, createTournamentQuery, tournament)
	return mapError(err)
}

func (s *TournamentStore) CreateRegistrations(ctx context.Context, q sqlx.ExtContext, registrations []bracket.Registration) error {
	if len(registrations) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range registrations {
		if registrations[i].CreatedAt.IsZero() {
			registrations[i].CreatedAt = now
		}
	}
	_, err := sqlx.NamedExecContext(ctx, q, createRegistrationsQuery, registrations)
	return mapError(err)
}

func (s *TournamentStore) GetTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := sqlx.GetContext(ctx, q, &tournament, q.Rebind("SELECT * FROM tournaments WHERE id = ?"), id)
	if err != nil {
		return nil, mapError(err)
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentsByOwner(ctx context.Context, q sqlx.ExtContext, ownerID uuid.UUID) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := sqlx.SelectContext(ctx, q, &tournaments,
		q.Rebind("SELECT * FROM tournaments WHERE owner_id = ? ORDER BY created_at DESC"), ownerID)
	return tournaments, mapError(err)
}

func (s *TournamentStore) UpdateTournamentStartDate(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, startDate time.Time) error {
	res, err := q.ExecContext(ctx, q.Rebind("UPDATE tournaments SET start_date = ? WHERE id = ?"), startDate, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res, "tournament", id)
}

func (s *TournamentStore) FindRegistrations(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Registration, error) {
	var registrations []bracket.Registration
	err := sqlx.SelectContext(ctx, q, &registrations,
		q.Rebind("SELECT * FROM registrations WHERE tournament_id = ? ORDER BY seed ASC"), tournamentID)
	return registrations, mapError(err)
}

// FindRoster returns the team names of a tournament in seed order.
func (s *TournamentStore) FindRoster(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]string, error) {
	var teams []string
	err := sqlx.SelectContext(ctx, q, &teams,
		q.Rebind("SELECT team_name FROM registrations WHERE tournament_id = ? ORDER BY seed ASC"), tournamentID)
	return teams, mapError(err)
}

func (s *TournamentStore) FindMatches(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, q, &matches,
		q.Rebind("SELECT * FROM matches WHERE tournament_id = ? ORDER BY round ASC, position ASC"), tournamentID)
	return matches, mapError(err)
}

func (s *TournamentStore) GetMatch(ctx context.Context, q sqlx.ExtContext, tournamentID, matchID uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := sqlx.GetContext(ctx, q, &match,
		q.Rebind("SELECT * FROM matches WHERE id = ? AND tournament_id = ?"), matchID, tournamentID)
	if err != nil {
		return nil, mapError(err)
	}
	return &match, nil
}

func (s *TournamentStore) CreateMatch(ctx context.Context, q sqlx.ExtContext, match *bracket.Match) error {
	stampMatch(match, time.Now().UTC())
	_, err := sqlx.NamedExecContext(ctx, q, createMatchesQuery, match)
	return mapError(err)
}

func (s *TournamentStore) CreateMatches(ctx context.Context, q sqlx.ExtContext, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range matches {
		stampMatch(&matches[i], now)
	}
	_, err := sqlx.NamedExecContext(ctx, q, createMatchesQuery, matches)
	return mapError(err)
}

func stampMatch(m *bracket.Match, now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
}

// UpdateMatch writes the teams and result of an existing match.
func (s *TournamentStore) UpdateMatch(ctx context.Context, q sqlx.ExtContext, match *bracket.Match) error {
	match.UpdatedAt = time.Now().UTC()
	res, err := sqlx.NamedExecContext(ctx, q, updateMatchQuery, match)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res, "match", match.ID)
}

func (s *TournamentStore) DeleteMatches(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind("DELETE FROM matches WHERE tournament_id = ?"), tournamentID)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// ResetMatchResults sets every result of the tournament back to pending.
func (s *TournamentStore) ResetMatchResults(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (int64, error) {
	res, err := q.ExecContext(ctx,
		q.Rebind("UPDATE matches SET result = ?, winner_slot = NULL, updated_at = ? WHERE tournament_id = ?"),
		bracket.ResultPending, time.Now().UTC(), tournamentID)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// ClaimGeneration records that matches were generated for the tournament.
// A second claim fails with bracket.ErrConflict.
func (s *TournamentStore) ClaimGeneration(ctx context.Context, q sqlx.ExtContext, tournamentID, userID uuid.UUID) error {
	_, err := q.ExecContext(ctx,
		q.Rebind("INSERT INTO match_generations (tournament_id, generated_by, created_at) VALUES (?, ?, ?)"),
		tournamentID, userID, time.Now().UTC())
	return mapError(err)
}

func (s *TournamentStore) ReleaseGeneration(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) error {
	_, err := q.ExecContext(ctx, q.Rebind("DELETE FROM match_generations WHERE tournament_id = ?"), tournamentID)
	return mapError(err)
}

func (s *TournamentStore) HasGeneration(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		q.Rebind("SELECT COUNT(*) FROM match_generations WHERE tournament_id = ?"), tournamentID)
	return count > 0, mapError(err)
}

func requireAffected(res sql.Result, kind string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", bracket.ErrNotFound, kind, id)
	}
	return nil
}

// mapError translates driver errors into the bracket error classes.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %w", bracket.ErrNotFound, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", bracket.ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

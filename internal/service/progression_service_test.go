package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/jovenlab/sportal/internal/db/dbtest"
	"github.com/jovenlab/sportal/internal/elimination"
	"github.com/jovenlab/sportal/internal/live"
	"github.com/jovenlab/sportal/internal/metrics"
	"github.com/jovenlab/sportal/internal/middleware"
	"github.com/jovenlab/sportal/internal/store"
	"github.com/jovenlab/sportal/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []live.Message
}

func (n *recordingNotifier) Publish(msg live.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.messages {
		out = append(out, m.Type)
	}
	return out
}

type progressionFixture struct {
	db       *sqlx.DB
	store    *store.TournamentStore
	service  *ProgressionService
	notifier *recordingNotifier
	owner    uuid.UUID
	ctx      context.Context
}

func setupProgression(t *testing.T) *progressionFixture {
	t.Helper()
	conn := dbtest.New(t)
	owner := uuid.MustParse(middleware.SuperUserID)
	dbtest.CreateUser(t, conn, owner)

	tournamentStore := store.NewTournamentStore(conn)
	notifier := &recordingNotifier{}
	return &progressionFixture{
		db:       conn,
		store:    tournamentStore,
		service:  NewProgressionService(conn, tournamentStore, notifier, metrics.New(), nil),
		notifier: notifier,
		owner:    owner,
		ctx:      middleware.WithUserID(context.Background(), owner),
	}
}

func (f *progressionFixture) tournament(t *testing.T, format bracket.TournamentFormat, teams ...string) uuid.UUID {
	t.Helper()
	tournament := &bracket.Tournament{
		ID:        uuid.New(),
		OwnerID:   f.owner,
		Name:      "Spring Cup",
		Format:    format,
		StartDate: time.Now().UTC().Add(72 * time.Hour),
	}
	require.NoError(t, f.store.CreateTournament(f.ctx, f.db, tournament))

	registrations := make([]bracket.Registration, len(teams))
	for i, team := range teams {
		registrations[i] = bracket.Registration{ID: uuid.New(), TournamentID: tournament.ID, TeamName: team, Seed: i + 1}
	}
	require.NoError(t, f.store.CreateRegistrations(f.ctx, f.db, registrations))
	return tournament.ID
}

func TestProgression_OwnerGate(t *testing.T) {
	f := setupProgression(t)
	id := f.tournament(t, bracket.RoundRobin, "A", "B", "C")

	stranger := uuid.New()
	dbtest.CreateUser(t, f.db, stranger)

	tests := []struct {
		name    string
		ctx     context.Context
		id      uuid.UUID
		wantErr error
	}{
		{"anonymous", context.Background(), id, bracket.ErrForbidden},
		{"not the organizer", middleware.WithUserID(context.Background(), stranger), id, bracket.ErrForbidden},
		{"unknown tournament", f.ctx, uuid.New(), bracket.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Generate(tt.ctx, tt.id, GenerateOptions{})
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = f.service.Reset(tt.ctx, tt.id)
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = f.service.DeleteMatches(tt.ctx, tt.id)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	matches, err := f.service.Matches(f.ctx, id)
	require.NoError(t, err)
	assert.Empty(t, matches, "rejected calls must not write")
	assert.Empty(t, f.notifier.types())
}

func TestProgression_GenerateRoundRobin(t *testing.T) {
	f := setupProgression(t)
	id := f.tournament(t, bracket.RoundRobin, "A", "B", "C", "D")

	result, err := f.service.Generate(f.ctx, id, GenerateOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Matches, 6)
	assert.Nil(t, result.Bracket)

	tournament, err := f.store.GetTournament(f.ctx, f.db, id)
	require.NoError(t, err)
	assert.False(t, tournament.StartDate.After(time.Now().UTC()), "a future start date moves to the generation time")

	_, err = f.service.Generate(f.ctx, id, GenerateOptions{})
	assert.ErrorIs(t, err, bracket.ErrConflict)

	again, err := f.service.Generate(f.ctx, id, GenerateOptions{Force: true})
	require.NoError(t, err)
	require.Len(t, again.Matches, 6)
	assert.NotEqual(t, result.Matches[0].ID, again.Matches[0].ID)

	stored, err := f.service.Matches(f.ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored, 6, "forced generation replaces the old matches")

	_, err = f.service.Generate(f.ctx, id, GenerateOptions{Force: true, ByeSeeds: []string{"A"}})
	assert.ErrorIs(t, err, bracket.ErrValidation)

	assert.Equal(t, []string{live.MatchesUpdated, live.MatchesUpdated}, f.notifier.types())
}

func TestProgression_GenerateRejectsBadRoster(t *testing.T) {
	f := setupProgression(t)

	single := f.tournament(t, bracket.RoundRobin, "A")
	_, err := f.service.Generate(f.ctx, single, GenerateOptions{})
	assert.ErrorIs(t, err, bracket.ErrValidation)

	crowded := make([]string, elimination.MaxTeams+1)
	for i := range crowded {
		crowded[i] = uuid.NewString()[:8]
	}
	big := f.tournament(t, bracket.SingleElimination, crowded...)
	_, err = f.service.Generate(f.ctx, big, GenerateOptions{})
	assert.ErrorIs(t, err, bracket.ErrValidation)

	has, err := f.store.HasGeneration(f.ctx, f.db, big)
	require.NoError(t, err)
	assert.False(t, has, "a failed generation leaves no claim behind")
}

func TestProgression_RoundRobinResults(t *testing.T) {
	f := setupProgression(t)
	id := f.tournament(t, bracket.RoundRobin, "A", "B", "C")
	_, err := f.service.Generate(f.ctx, id, GenerateOptions{})
	require.NoError(t, err)

	_, err = f.service.UpdateResult(f.ctx, id, MatchRef{TeamA: "B", TeamB: "A"}, ResultInput{Result: "A"})
	require.NoError(t, err)
	_, err = f.service.UpdateResult(f.ctx, id, MatchRef{TeamA: "A", TeamB: "C"}, ResultInput{Result: "draw"})
	require.NoError(t, err)

	matches, err := f.service.Matches(f.ctx, id)
	require.NoError(t, err)
	var bc *bracket.Match
	for i := range matches {
		if matches[i].Involves("B", "C") {
			bc = &matches[i]
		}
	}
	require.NotNil(t, bc)

	_, err = f.service.UpdateResult(f.ctx, id, MatchRef{MatchID: &bc.ID}, ResultInput{Result: "WIN", WinnerSlot: utils.Ptr(2)})
	require.NoError(t, err)

	standings, err := f.service.Standings(f.ctx, id)
	require.NoError(t, err)
	require.Len(t, standings, 3)

	points := map[string]int{}
	for _, s := range standings {
		points[s.Team] = s.Points
	}
	want := map[string]int{"A": 4, "B": 0, "C": 1}
	want[bc.TeamB] += 3
	assert.Equal(t, want, points)

	tests := []struct {
		name    string
		ref     MatchRef
		input   ResultInput
		wantErr error
	}{
		{"unknown pair", MatchRef{TeamA: "A", TeamB: "Z"}, ResultInput{Result: "A"}, bracket.ErrNotFound},
		{"missing team", MatchRef{TeamA: "A"}, ResultInput{Result: "A"}, bracket.ErrValidation},
		{"winner outside match", MatchRef{TeamA: "A", TeamB: "B"}, ResultInput{Result: "C"}, bracket.ErrValidation},
		{"slot with draw", MatchRef{TeamA: "A", TeamB: "B"}, ResultInput{Result: "DRAW", WinnerSlot: utils.Ptr(1)}, bracket.ErrValidation},
		{"slot out of range", MatchRef{TeamA: "A", TeamB: "B"}, ResultInput{WinnerSlot: utils.Ptr(3)}, bracket.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.UpdateResult(f.ctx, id, tt.ref, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = f.service.Bracket(f.ctx, id)
	assert.ErrorIs(t, err, bracket.ErrValidation)
}

func TestProgression_RoundRobinUpdatesEveryRowOfPair(t *testing.T) {
	f := setupProgression(t)
	id := f.tournament(t, bracket.RoundRobin, "A", "B")
	_, err := f.service.Generate(f.ctx, id, GenerateOptions{})
	require.NoError(t, err)

	reversed := bracket.Match{ID: uuid.New(), TournamentID: id, TeamA: "B", TeamB: "A", Round: 2, Position: 0}
	reversed.SetResult(bracket.Pending)
	require.NoError(t, f.store.CreateMatch(f.ctx, f.db, &reversed))

	outcome, err := f.service.UpdateResult(f.ctx, id, MatchRef{TeamA: "A", TeamB: "B"}, ResultInput{Result: "B"})
	require.NoError(t, err)
	require.Len(t, outcome.Matches, 2)

	for _, m := range outcome.Matches {
		assert.Equal(t, "B", m.Winner(), "match %s", m.ID)
	}

	standings, err := f.service.Standings(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "B", standings[0].Team)
	assert.Equal(t, 1, standings[0].Games, "a pair counts once")

	// Slot 1 of the reversed row is B, so A's row must record slot 2.
	outcome, err = f.service.UpdateResult(f.ctx, id, MatchRef{MatchID: &reversed.ID}, ResultInput{Result: "WIN", WinnerSlot: utils.Ptr(1)})
	require.NoError(t, err)
	require.Len(t, outcome.Matches, 2)
	for _, m := range outcome.Matches {
		assert.Equal(t, "B", m.Winner(), "match %s", m.ID)
		if m.ID == reversed.ID {
			assert.Equal(t, bracket.Win(1), m.Result())
		} else {
			assert.Equal(t, bracket.Win(2), m.Result())
		}
	}

	// By team names the slot follows the order the caller gave.
	outcome, err = f.service.UpdateResult(f.ctx, id, MatchRef{TeamA: "A", TeamB: "B"}, ResultInput{WinnerSlot: utils.Ptr(1)})
	require.NoError(t, err)
	for _, m := range outcome.Matches {
		assert.Equal(t, "A", m.Winner(), "match %s", m.ID)
	}
}

func TestProgression_ConcurrentGenerateClaimsOnce(t *testing.T) {
	f := setupProgression(t)
	id := f.tournament(t, bracket.RoundRobin, "A", "B", "C", "D")

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Generate(f.ctx, id, GenerateOptions{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, bracket.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, conflicts)

	matches, err := f.service.Matches(f.ctx, id)
	require.NoError(t, err)
	assert.Len(t, matches, 6, "only one generation is stored")
}

func TestProgression_EliminationFlow(t *testing.T) {
	f := setupProgression(t)
	id := f.tournament(t, bracket.SingleElimination, "A", "B", "C", "D", "E")

	result, err := f.service.Generate(f.ctx, id, GenerateOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.Bracket)
	assert.Equal(t, 8, result.Bracket.Size)

	b, err := f.service.Bracket(f.ctx, id)
	require.NoError(t, err)

	// Play every ready game with the first team winning until a champion exists.
	for b.Champion == "" {
		var next *elimination.Game
		for i := range b.Games {
			if b.Games[i].State() == elimination.Ready {
				next = &b.Games[i]
				break
			}
		}
		require.NotNil(t, next, "bracket stalled without a champion")

		_, err := f.service.UpdateResult(f.ctx, id, MatchRef{MatchID: next.MatchID}, ResultInput{Result: next.Teams[0]})
		require.NoError(t, err)

		b, err = f.service.Bracket(f.ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, "A", b.Champion)

	// Correct a semi-final: the final's result no longer applies.
	semi, err := b.At(b.Rounds-1, 0)
	require.NoError(t, err)
	outcome, err := f.service.UpdateResult(f.ctx, id, MatchRef{TeamA: semi.Teams[0], TeamB: semi.Teams[1]}, ResultInput{Result: semi.Teams[1]})
	require.NoError(t, err)
	require.Len(t, outcome.Stale, 1)
	assert.Equal(t, b.Rounds, outcome.Stale[0].Round)
	assert.Empty(t, outcome.Champion)

	b, err = f.service.Bracket(f.ctx, id)
	require.NoError(t, err)
	assert.Empty(t, b.Champion)
	assert.Equal(t, semi.Teams[1], b.Final().Teams[0])
	assert.Equal(t, bracket.Pending, b.Final().Result)

	_, err = f.service.Standings(f.ctx, id)
	assert.ErrorIs(t, err, bracket.ErrValidation)
}

func TestProgression_EliminationRejects(t *testing.T) {
	f := setupProgression(t)
	id := f.tournament(t, bracket.SingleElimination, "A", "B", "C", "D")
	_, err := f.service.Generate(f.ctx, id, GenerateOptions{})
	require.NoError(t, err)

	b, err := f.service.Bracket(f.ctx, id)
	require.NoError(t, err)
	final := b.Final()

	_, err = f.service.UpdateResult(f.ctx, id, MatchRef{MatchID: final.MatchID}, ResultInput{Result: "DRAW"})
	assert.ErrorIs(t, err, elimination.ErrGameNotReady)

	missing := uuid.New()
	_, err = f.service.UpdateResult(f.ctx, id, MatchRef{MatchID: &missing}, ResultInput{Result: "DRAW"})
	assert.ErrorIs(t, err, bracket.ErrNotFound)

	_, err = f.service.UpdateResult(f.ctx, id, MatchRef{TeamA: "A", TeamB: "C"}, ResultInput{Result: "A"})
	assert.ErrorIs(t, err, bracket.ErrNotFound)
}

func TestProgression_ResetAndDelete(t *testing.T) {
	f := setupProgression(t)

	rr := f.tournament(t, bracket.RoundRobin, "A", "B", "C")
	_, err := f.service.Generate(f.ctx, rr, GenerateOptions{})
	require.NoError(t, err)
	_, err = f.service.UpdateResult(f.ctx, rr, MatchRef{TeamA: "A", TeamB: "B"}, ResultInput{Result: "A"})
	require.NoError(t, err)

	reset, err := f.service.Reset(f.ctx, rr)
	require.NoError(t, err)
	assert.EqualValues(t, 3, reset)

	matches, err := f.service.Matches(f.ctx, rr)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.Equal(t, bracket.Pending, m.Result())
	}

	se := f.tournament(t, bracket.SingleElimination, "A", "B", "C", "D")
	_, err = f.service.Generate(f.ctx, se, GenerateOptions{})
	require.NoError(t, err)

	removed, err := f.service.Reset(f.ctx, se)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	_, err = f.service.Bracket(f.ctx, se)
	assert.ErrorIs(t, err, bracket.ErrNotFound)

	_, err = f.service.Generate(f.ctx, se, GenerateOptions{})
	require.NoError(t, err, "a reset bracket can be generated again without force")

	deleted, err := f.service.DeleteMatches(f.ctx, rr)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	types := f.notifier.types()
	require.NotEmpty(t, types)
	assert.Equal(t, live.MatchesDeleted, types[len(types)-1])
}

func TestProgression_PreviewBracketWritesNothing(t *testing.T) {
	f := setupProgression(t)
	id := f.tournament(t, bracket.SingleElimination, "A", "B", "C", "D", "E", "F")

	b, warnings, err := f.service.PreviewBracket(f.ctx, id, []string{"C", "F"})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 8, b.Size)

	matches, err := f.service.Matches(f.ctx, id)
	require.NoError(t, err)
	assert.Empty(t, matches)

	rr := f.tournament(t, bracket.RoundRobin, "A", "B")
	_, _, err = f.service.PreviewBracket(f.ctx, rr, nil)
	assert.ErrorIs(t, err, bracket.ErrValidation)
}

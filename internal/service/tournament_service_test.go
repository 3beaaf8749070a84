package service

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/jovenlab/sportal/internal/db/dbtest"
	"github.com/jovenlab/sportal/internal/middleware"
	"github.com/jovenlab/sportal/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTournament(t *testing.T) {
	db := dbtest.New(t)
	owner := uuid.MustParse(middleware.SuperUserID)
	dbtest.CreateUser(t, db, owner)

	tournamentStore := store.NewTournamentStore(db)
	tournamentService := NewTournamentService(db, tournamentStore)
	ctx := middleware.WithUserID(context.Background(), owner)

	id, err := tournamentService.CreateTournament(ctx, CreateTournamentInput{
		Name:   "  Summer League ",
		Format: string(bracket.RoundRobin),
		Teams:  []string{"Lions", "", " Tigers ", "lions"},
	})
	require.NoError(t, err)

	tournament, err := tournamentStore.GetTournament(ctx, db, id)
	require.NoError(t, err)
	assert.Equal(t, "Summer League", tournament.Name)
	assert.Equal(t, owner, tournament.OwnerID)

	roster, err := tournamentStore.FindRoster(ctx, db, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lions", "Tigers", "lions"}, roster)

	tests := []struct {
		name    string
		ctx     context.Context
		input   CreateTournamentInput
		wantErr error
	}{
		{"anonymous", context.Background(), CreateTournamentInput{Name: "x", Teams: []string{"a", "b"}}, bracket.ErrForbidden},
		{"no name", ctx, CreateTournamentInput{Name: " ", Teams: []string{"a", "b"}}, bracket.ErrValidation},
		{"unknown format", ctx, CreateTournamentInput{Name: "x", Format: "swiss", Teams: []string{"a", "b"}}, bracket.ErrValidation},
		{"one team", ctx, CreateTournamentInput{Name: "x", Teams: []string{"a", " "}}, bracket.ErrValidation},
		{"duplicate", ctx, CreateTournamentInput{Name: "x", Teams: []string{"a", "b", "a"}}, bracket.ErrValidation},
		{"reserved", ctx, CreateTournamentInput{Name: "x", Teams: []string{"a", "bye"}}, bracket.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tournamentService.CreateTournament(tt.ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	mine, err := tournamentService.GetTournamentsForUser(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 1, "rejected inputs must not create tournaments")
}

func TestGetTournamentData(t *testing.T) {
	db := dbtest.New(t)
	owner := uuid.MustParse(middleware.SuperUserID)
	dbtest.CreateUser(t, db, owner)

	tournamentStore := store.NewTournamentStore(db)
	tournamentService := NewTournamentService(db, tournamentStore)
	progression := NewProgressionService(db, tournamentStore, nil, nil, nil)
	ctx := middleware.WithUserID(context.Background(), owner)

	f := gofakeit.New(11)
	seen := map[string]bool{}
	var teams []string
	for len(teams) < 6 {
		name := f.Company()
		if !seen[name] && !bracket.IsReservedName(name) {
			seen[name] = true
			teams = append(teams, name)
		}
	}

	t.Run("round robin", func(t *testing.T) {
		id, err := tournamentService.CreateTournament(ctx, CreateTournamentInput{Name: "League", Format: string(bracket.RoundRobin), Teams: teams})
		require.NoError(t, err)

		data, err := tournamentService.GetTournamentData(ctx, id)
		require.NoError(t, err)
		assert.True(t, data.IsOwner)
		assert.Len(t, data.Registrations, 6)
		assert.Empty(t, data.Matches)
		assert.Nil(t, data.Standings)

		_, err = progression.Generate(ctx, id, GenerateOptions{})
		require.NoError(t, err)

		data, err = tournamentService.GetTournamentData(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, data.IsOwner)
		assert.Len(t, data.Matches, 15)
		assert.Len(t, data.Standings, 6)
		assert.Nil(t, data.Bracket)
	})

	t.Run("single elimination", func(t *testing.T) {
		id, err := tournamentService.CreateTournament(ctx, CreateTournamentInput{Name: "Cup", Format: string(bracket.SingleElimination), Teams: teams})
		require.NoError(t, err)
		_, err = progression.Generate(ctx, id, GenerateOptions{})
		require.NoError(t, err)

		data, err := tournamentService.GetTournamentData(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, data.Bracket)
		assert.Equal(t, 8, data.Bracket.Size)
		assert.Nil(t, data.Standings)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := tournamentService.GetTournamentData(ctx, uuid.New())
		assert.ErrorIs(t, err, bracket.ErrNotFound)
	})
}

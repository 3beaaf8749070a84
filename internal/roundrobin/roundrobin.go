// Package roundrobin generates all-pairs schedules and computes league
// standings from stored match results.
package roundrobin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jovenlab/sportal/internal/bracket"
)

var (
	ErrInsufficientTeams = fmt.Errorf("%w: at least two teams are required", bracket.ErrValidation)
	ErrDuplicateTeam     = errors.New("duplicate team name")
	ErrMatchNotFound     = fmt.Errorf("%w: no match between these teams", bracket.ErrNotFound)
)

// Generate pairs every team with every other team exactly once. All matches
// are in round 1 and start out pending.
func Generate(tournamentID uuid.UUID, teams []string) ([]bracket.Match, error) {
	if len(teams) < 2 {
		return nil, ErrInsufficientTeams
	}
	if err := validateRoster(teams); err != nil {
		return nil, err
	}

	matches := make([]bracket.Match, 0, len(teams)*(len(teams)-1)/2)
	for i := 0; i < len(teams); i++ {
		for j := i + 1; j < len(teams); j++ {
			matches = append(matches, bracket.Match{
				ID:           uuid.New(),
				TournamentID: tournamentID,
				TeamA:        teams[i],
				TeamB:        teams[j],
				Status:       bracket.ResultPending,
				Round:        1,
				Position:     len(matches),
			})
		}
	}

	return matches, nil
}

func validateRoster(teams []string) error {
	seen := make(map[string]struct{}, len(teams))
	for _, team := range teams {
		if strings.TrimSpace(team) == "" {
			return fmt.Errorf("%w: team name is required", bracket.ErrValidation)
		}
		if bracket.IsReservedName(team) {
			return fmt.Errorf("%w: %q is a reserved name", bracket.ErrValidation, team)
		}
		if _, ok := seen[team]; ok {
			return fmt.Errorf("%w: %w %q", bracket.ErrValidation, ErrDuplicateTeam, team)
		}
		seen[team] = struct{}{}
	}
	return nil
}

// FindPair returns every stored match between a and b, whichever way round
// the teams were recorded.
func FindPair(matches []bracket.Match, a, b string) []*bracket.Match {
	var found []*bracket.Match
	for i := range matches {
		if matches[i].Involves(a, b) {
			found = append(found, &matches[i])
		}
	}
	return found
}

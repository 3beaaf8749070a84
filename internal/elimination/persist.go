package elimination

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jovenlab/sportal/internal/bracket"
)

// FromMatches rebuilds the bracket view from stored match rows. Round-1 bye
// games are never stored; their team is read back from the round-2 slot
// they feed.
func FromMatches(matches []bracket.Match) (*Bracket, error) {
	if len(matches) == 0 {
		return nil, ErrNotStarted
	}

	rounds := 0
	for _, m := range matches {
		rounds = max(rounds, m.Round)
	}
	size := 1 << rounds
	if rounds < 1 || size > MaxTeams {
		return nil, fmt.Errorf("%w: %d rounds", ErrInconsistent, rounds)
	}

	b := newBracket(size)
	for _, m := range matches {
		g, err := b.At(m.Round, m.Position)
		if err != nil {
			return nil, fmt.Errorf("%w: match %s at round %d position %d", ErrInconsistent, m.ID, m.Round, m.Position)
		}
		if g.MatchID != nil {
			return nil, fmt.Errorf("%w: two matches at round %d position %d", ErrInconsistent, m.Round, m.Position)
		}
		id := m.ID
		g.MatchID = &id
		g.Teams = [2]string{slotName(m.TeamA), slotName(m.TeamB)}
		g.Result = m.Result()
		g.Locked = g.Result.Terminal()
	}

	for r := 2; r <= b.Rounds; r++ {
		for _, g := range b.Round(r) {
			if g.MatchID == nil {
				return nil, fmt.Errorf("%w: missing match at round %d position %d", ErrInconsistent, r, g.Position)
			}
		}
	}

	for _, g := range b.Round(1) {
		if g.MatchID != nil {
			continue
		}
		if b.Rounds == 1 {
			return nil, fmt.Errorf("%w: missing final", ErrInconsistent)
		}
		bye := &b.Games[g.ID]
		idx, err := b.feederIndex(bye)
		if err != nil {
			return nil, err
		}
		team := b.Games[*bye.NextGameID].Teams[idx]
		bye.Teams = [2]string{team, bracket.Bye}
		if team != "" {
			bye.Result = bracket.Win(1)
			bye.Locked = true
		}
	}

	b.Champion = b.Final().Winner()
	return b, nil
}

func slotName(team string) string {
	if team == bracket.TBD {
		return ""
	}
	return team
}

func storedName(team string) string {
	if team == "" {
		return bracket.TBD
	}
	return team
}

// Materialize creates the match rows for a freshly built bracket: every
// game past round 1 and every round-1 game that is not a bye. Unknown teams
// are stored as TBD. The games are bound to the new match ids.
func (b *Bracket) Materialize(tournamentID uuid.UUID) []bracket.Match {
	now := time.Now().UTC()
	matches := make([]bracket.Match, 0, len(b.Games))
	for i := range b.Games {
		g := &b.Games[i]
		if g.Round == 1 && g.IsBye() {
			continue
		}
		id := uuid.New()
		g.MatchID = &id

		m := bracket.Match{
			ID:           id,
			TournamentID: tournamentID,
			TeamA:        storedName(g.Teams[0]),
			TeamB:        storedName(g.Teams[1]),
			Round:        g.Round,
			Position:     g.Position,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		m.SetResult(g.Result)
		matches = append(matches, m)
	}
	return matches
}

// Changed returns copies of the stored rows whose teams or result differ
// from the bracket.
func (b *Bracket) Changed(stored []bracket.Match) []bracket.Match {
	var changed []bracket.Match
	for _, m := range stored {
		g, err := b.At(m.Round, m.Position)
		if err != nil {
			continue
		}
		teamA, teamB := storedName(g.Teams[0]), storedName(g.Teams[1])
		if m.TeamA == teamA && m.TeamB == teamB && m.Result() == g.Result {
			continue
		}
		m.TeamA, m.TeamB = teamA, teamB
		m.SetResult(g.Result)
		changed = append(changed, m)
	}
	return changed
}

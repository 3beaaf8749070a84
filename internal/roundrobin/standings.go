package roundrobin

import (
	"sort"

	"github.com/jovenlab/sportal/internal/bracket"
)

const (
	pointsPerWin  = 3
	pointsPerDraw = 1
)

type Standing struct {
	Team   string `json:"team"`
	Games  int    `json:"games"`
	Wins   int    `json:"wins"`
	Draws  int    `json:"draws"`
	Losses int    `json:"losses"`
	Points int    `json:"points"`
}

type pairKey [2]string

func keyFor(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a, b}
}

// ComputeStandings ranks teams by points, then wins, then the result of the
// match between the tied teams. Teams that remain level keep roster order.
//
// Every unordered pair counts once even when several rows describe it; a
// recorded result beats a pending one and the latest update wins among
// recorded results.
func ComputeStandings(teams []string, matches []bracket.Match) []Standing {
	rows := make([]Standing, len(teams))
	index := make(map[string]*Standing, len(teams))
	for i, team := range teams {
		rows[i] = Standing{Team: team}
		index[team] = &rows[i]
	}

	pairs := dedupePairs(index, matches)

	for _, m := range pairs {
		r := m.Result()
		if !r.Terminal() {
			continue
		}
		a, b := index[m.TeamA], index[m.TeamB]
		a.Games++
		b.Games++

		if r.Status == bracket.ResultDraw {
			a.Draws++
			b.Draws++
			continue
		}
		winner, loser := a, b
		if r.Slot == 2 {
			winner, loser = b, a
		}
		winner.Wins++
		loser.Losses++
	}

	for i := range rows {
		rows[i].Points = rows[i].Wins*pointsPerWin + rows[i].Draws*pointsPerDraw
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		m, ok := pairs[keyFor(rows[i].Team, rows[j].Team)]
		if !ok {
			return false
		}
		return m.Winner() == rows[i].Team
	})

	return rows
}

func dedupePairs(index map[string]*Standing, matches []bracket.Match) map[pairKey]*bracket.Match {
	pairs := make(map[pairKey]*bracket.Match)
	for i := range matches {
		m := &matches[i]
		if m.TeamA == m.TeamB {
			continue
		}
		if index[m.TeamA] == nil || index[m.TeamB] == nil {
			continue
		}

		key := keyFor(m.TeamA, m.TeamB)
		current, ok := pairs[key]
		if !ok || prefer(current, m) {
			pairs[key] = m
		}
	}
	return pairs
}

func prefer(current, candidate *bracket.Match) bool {
	ct, cand := current.Result().Terminal(), candidate.Result().Terminal()
	if ct != cand {
		return cand
	}
	return ct && candidate.UpdatedAt.After(current.UpdatedAt)
}

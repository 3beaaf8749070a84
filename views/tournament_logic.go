package views

import (
	"fmt"

	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/jovenlab/sportal/internal/elimination"
)

type BracketColumn struct {
	Title string
	Games []GameCard
}

// GameCard is one game as the bracket page shows it.
type GameCard struct {
	Teams  [2]string
	Winner int
	Status string
	Bye    bool
}

type BracketData struct {
	Columns  []BracketColumn
	Champion string
}

func PrepareBracketData(b *elimination.Bracket) BracketData {
	if b == nil {
		return BracketData{}
	}

	data := BracketData{Champion: b.Champion}
	for r := 1; r <= b.Rounds; r++ {
		column := BracketColumn{Title: roundTitle(r, b.Rounds)}
		for _, g := range b.Round(r) {
			card := GameCard{Bye: g.IsBye()}
			for i, team := range g.Teams {
				card.Teams[i] = team
				if team == "" {
					card.Teams[i] = bracket.TBD
				}
			}
			if g.Result.Status == bracket.ResultWin {
				card.Winner = g.Result.Slot
			}
			card.Status = gameStatus(&g)
			column.Games = append(column.Games, card)
		}
		data.Columns = append(data.Columns, column)
	}
	return data
}

func roundTitle(round, rounds int) string {
	switch rounds - round {
	case 0:
		return "Final"
	case 1:
		return "Semi-finals"
	case 2:
		return "Quarter-finals"
	}
	return fmt.Sprintf("Round %d", round)
}

func gameStatus(g *elimination.Game) string {
	switch {
	case g.IsBye():
		return "Bye"
	case g.Result.Status == bracket.ResultDraw:
		return "Draw, replay needed"
	case g.Result.Status == bracket.ResultOngoing:
		return "In progress"
	case g.State() == elimination.Unresolved:
		return "Waiting"
	case g.State() == elimination.Locked:
		return "Final"
	}
	return "Ready"
}

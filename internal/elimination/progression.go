package elimination

import (
	"fmt"

	"github.com/jovenlab/sportal/internal/bracket"
)

// StaleDownstreamResult describes a recorded result that was discarded
// because a correction upstream changed one of the game's teams.
type StaleDownstreamResult struct {
	GameID   int            `json:"game_id"`
	Round    int            `json:"round"`
	Position int            `json:"position"`
	Teams    [2]string      `json:"teams"`
	Previous bracket.Result `json:"previous"`
}

func (s StaleDownstreamResult) Error() string {
	return fmt.Sprintf("round %d game %d: result %s between %q and %q no longer applies",
		s.Round, s.Position+1, s.Previous, s.Teams[0], s.Teams[1])
}

// Outcome is what a result update did to the bracket.
type Outcome struct {
	Game     Game                    `json:"game"`
	Stale    []StaleDownstreamResult `json:"stale,omitempty"`
	Champion string                  `json:"champion,omitempty"`

	// Draws cannot advance anyone; the game stays locked until it is
	// replayed or corrected.
	NeedsResolution bool `json:"needs_resolution,omitempty"`
}

// AdvanceTeam locks the game with slot as the winner and writes the winning
// team into the parent. It refuses to overwrite a parent slot that already
// holds a different team; use UpdateMatchResult to correct results.
func (b *Bracket) AdvanceTeam(gameID, slot int) error {
	g, err := b.Game(gameID)
	if err != nil {
		return err
	}
	r := bracket.Win(slot)
	if err := r.Validate(); err != nil {
		return err
	}
	if !g.Playable() {
		return fmt.Errorf("%w: game %d", ErrGameNotReady, g.ID)
	}

	prevResult, prevLocked := g.Result, g.Locked
	g.Result = r
	g.Locked = true
	if err := b.place(g, g.Winner()); err != nil {
		g.Result, g.Locked = prevResult, prevLocked
		return err
	}
	return nil
}

func (b *Bracket) place(g *Game, team string) error {
	if g.NextGameID == nil {
		b.Champion = team
		return nil
	}
	idx, err := b.feederIndex(g)
	if err != nil {
		return err
	}
	parent := &b.Games[*g.NextGameID]
	switch parent.Teams[idx] {
	case "", team:
		parent.Teams[idx] = team
		return nil
	}
	return fmt.Errorf("%w: game %d slot %d holds %q", ErrSlotOccupied, parent.ID, idx+1, parent.Teams[idx])
}

// UpdateMatchResult records r on the game and carries the consequences
// forward: a new winner replaces the old one in the next round, and any
// later result that involved the replaced team is reset to pending and
// reported as stale. A pending or ongoing result unlocks the game and
// withdraws its winner from later rounds.
func (b *Bracket) UpdateMatchResult(gameID int, r bracket.Result) (*Outcome, error) {
	g, err := b.Game(gameID)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if g.IsBye() {
		return nil, fmt.Errorf("%w: game %d", ErrByeGame, g.ID)
	}
	if r.Status != bracket.ResultPending && !g.Playable() {
		return nil, fmt.Errorf("%w: game %d", ErrGameNotReady, g.ID)
	}

	previous := g.Winner()
	g.Result = r
	g.Locked = r.Terminal()

	out := &Outcome{NeedsResolution: r.Status == bracket.ResultDraw}
	if err := b.propagate(g, previous, out); err != nil {
		return nil, err
	}
	out.Game = *g
	out.Champion = b.Champion
	return out, nil
}

// propagate moves the current winner of g into its parent slot, replacing
// previous, and invalidates the parent when its teams changed.
func (b *Bracket) propagate(g *Game, previous string, out *Outcome) error {
	next := g.Winner()
	if next == previous {
		return nil
	}
	if g.NextGameID == nil {
		b.Champion = next
		return nil
	}

	idx, err := b.feederIndex(g)
	if err != nil {
		return err
	}
	parent := &b.Games[*g.NextGameID]
	if parent.Teams[idx] == next {
		return nil
	}

	before := parent.Teams
	parent.Teams[idx] = next

	switch {
	case parent.Result.Terminal():
		out.Stale = append(out.Stale, StaleDownstreamResult{
			GameID:   parent.ID,
			Round:    parent.Round,
			Position: parent.Position,
			Teams:    before,
			Previous: parent.Result,
		})
		stale := winnerOf(before, parent.Result)
		parent.Result = bracket.Pending
		parent.Locked = false
		return b.propagate(parent, stale, out)
	case parent.Result.Status == bracket.ResultOngoing:
		parent.Result = bracket.Pending
	}
	return nil
}

func winnerOf(teams [2]string, r bracket.Result) string {
	if r.Status != bracket.ResultWin || r.Slot < 1 || r.Slot > 2 {
		return ""
	}
	return teams[r.Slot-1]
}

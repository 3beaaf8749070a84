// Package elimination builds single-elimination brackets and keeps them
// consistent while results are recorded and corrected.
//
// A Bracket is a projection of the stored matches. Games live in a slice
// indexed by id (ids run round by round, position by position) and point at
// their parent through NextGameID, so the view can be rebuilt from match rows
// on every read.
package elimination

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jovenlab/sportal/internal/bracket"
)

const (
	MinTeams = 2
	MaxTeams = 32
)

var knownBracketSizes = []int{2, 4, 8, 16, 32}

var (
	ErrTeamCount     = fmt.Errorf("%w: a bracket needs between %d and %d teams", bracket.ErrValidation, MinTeams, MaxTeams)
	ErrByeSeeds      = fmt.Errorf("%w: invalid bye selection", bracket.ErrValidation)
	ErrGameNotFound  = fmt.Errorf("%w: game not found", bracket.ErrNotFound)
	ErrGameNotReady  = fmt.Errorf("%w: both teams must be known before the game can be played", bracket.ErrValidation)
	ErrByeGame       = fmt.Errorf("%w: bye games are resolved automatically", bracket.ErrValidation)
	ErrSlotOccupied  = fmt.Errorf("%w: slot already holds a different team", bracket.ErrConflict)
	ErrNotStarted    = fmt.Errorf("%w: bracket has not been generated", bracket.ErrNotFound)
	ErrInconsistent  = fmt.Errorf("%w: stored matches do not form a bracket", bracket.ErrPersistence)
	errUnknownFeeder = errors.New("game does not feed its parent")
)

type GameState string

const (
	// Unresolved games are still waiting for at least one team.
	Unresolved GameState = "unresolved"
	Ready      GameState = "ready"
	Locked     GameState = "locked"
)

type Game struct {
	ID       int `json:"id"`
	Round    int `json:"round"`
	Position int `json:"position"`

	// "" is an undetermined slot, bracket.Bye an empty one.
	Teams      [2]string      `json:"teams"`
	NextGameID *int           `json:"next_game_id"`
	Result     bracket.Result `json:"result"`
	Locked     bool           `json:"locked"`

	MatchID *uuid.UUID `json:"match_id,omitempty"`
}

func (g *Game) IsBye() bool {
	return g.Teams[0] == bracket.Bye || g.Teams[1] == bracket.Bye
}

// Playable reports whether both teams are known and real.
func (g *Game) Playable() bool {
	return g.Teams[0] != "" && g.Teams[1] != "" && !g.IsBye()
}

func (g *Game) State() GameState {
	switch {
	case g.Locked:
		return Locked
	case g.Playable():
		return Ready
	}
	return Unresolved
}

// Winner is the team that advances out of g, or "" if nobody does yet.
func (g *Game) Winner() string {
	return winnerOf(g.Teams, g.Result)
}

type Bracket struct {
	Size     int    `json:"size"`
	Rounds   int    `json:"rounds"`
	Games    []Game `json:"games"`
	Champion string `json:"champion,omitempty"`
}

// bracketSize returns the smallest supported bracket that fits n teams.
func bracketSize(n int) int {
	for _, size := range knownBracketSizes {
		if size >= n {
			return size
		}
	}
	return 0
}

// newBracket lays out every game of a size-team bracket and links games
// {2k, 2k+1} of each round to game k of the next.
func newBracket(size int) *Bracket {
	rounds := int(math.Ceil(math.Log2(float64(size))))
	b := &Bracket{
		Size:   size,
		Rounds: rounds,
		Games:  make([]Game, 0, size-1),
	}

	for r := 1; r <= rounds; r++ {
		for p := 0; p < size>>r; p++ {
			b.Games = append(b.Games, Game{
				ID:       len(b.Games),
				Round:    r,
				Position: p,
				Result:   bracket.Pending,
			})
		}
	}

	for i := range b.Games {
		g := &b.Games[i]
		if g.Round == rounds {
			continue
		}
		next := b.offset(g.Round+1) + g.Position/2
		g.NextGameID = &next
	}

	return b
}

// offset is the id of the first game in round r.
func (b *Bracket) offset(r int) int {
	return b.Size - b.Size>>(r-1)
}

// At returns the game at the given round and position.
func (b *Bracket) At(round, position int) (*Game, error) {
	if round < 1 || round > b.Rounds || position < 0 || position >= b.Size>>round {
		return nil, fmt.Errorf("%w: round %d position %d", ErrGameNotFound, round, position)
	}
	return &b.Games[b.offset(round)+position], nil
}

func (b *Bracket) Game(id int) (*Game, error) {
	if id < 0 || id >= len(b.Games) {
		return nil, fmt.Errorf("%w: id %d", ErrGameNotFound, id)
	}
	return &b.Games[id], nil
}

// GameForMatch finds the game backed by the stored match id.
func (b *Bracket) GameForMatch(matchID uuid.UUID) (*Game, error) {
	for i := range b.Games {
		if b.Games[i].MatchID != nil && *b.Games[i].MatchID == matchID {
			return &b.Games[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no game for match %s", ErrGameNotFound, matchID)
}

func (b *Bracket) Round(r int) []Game {
	if r < 1 || r > b.Rounds {
		return nil
	}
	start := b.offset(r)
	return b.Games[start : start+b.Size>>r]
}

func (b *Bracket) Final() *Game {
	return &b.Games[len(b.Games)-1]
}

// feederIndex returns which parent slot g writes its winner into: 0 when g
// is the first of the parent's feeders, 1 for the second. The order of the
// feeders decides, not the parity of their ids.
func (b *Bracket) feederIndex(g *Game) (int, error) {
	if g.NextGameID == nil {
		return 0, errUnknownFeeder
	}
	idx := 0
	for _, other := range b.Round(g.Round) {
		if other.NextGameID == nil || *other.NextGameID != *g.NextGameID {
			continue
		}
		if other.ID == g.ID {
			return idx, nil
		}
		idx++
	}
	return 0, errUnknownFeeder
}

// Build seeds teams into the smallest bracket that fits them. byeSeeds names
// the teams that receive a bye; when empty the first teams of the roster
// (the top seeds) get them. Case-insensitive duplicate names are reported as
// warnings and otherwise allowed.
func Build(teams []string, byeSeeds []string) (*Bracket, []string, error) {
	if len(teams) < MinTeams || len(teams) > MaxTeams {
		return nil, nil, fmt.Errorf("%w (got %d)", ErrTeamCount, len(teams))
	}
	for _, team := range teams {
		if strings.TrimSpace(team) == "" {
			return nil, nil, fmt.Errorf("%w: team name is required", bracket.ErrValidation)
		}
		if bracket.IsReservedName(team) {
			return nil, nil, fmt.Errorf("%w: %q is a reserved name", bracket.ErrValidation, team)
		}
	}

	warnings := duplicateWarnings(teams)

	size := bracketSize(len(teams))
	byes := size - len(teams)
	seeds, err := resolveByeSeeds(teams, byeSeeds, byes)
	if err != nil {
		return nil, nil, err
	}

	slots := seedSlots(teams, seeds, size)

	b := newBracket(size)
	for i, g := range b.Round(1) {
		b.Games[g.ID].Teams = [2]string{slots[2*i], slots[2*i+1]}
	}

	for _, g := range b.Round(1) {
		if g.IsBye() {
			if err := b.resolveBye(&b.Games[g.ID]); err != nil {
				return nil, nil, err
			}
		}
	}

	return b, warnings, nil
}

func duplicateWarnings(teams []string) []string {
	var warnings []string
	seen := make(map[string]string, len(teams))
	reported := make(map[string]bool)
	for _, team := range teams {
		key := strings.ToLower(strings.TrimSpace(team))
		first, ok := seen[key]
		if !ok {
			seen[key] = team
			continue
		}
		if !reported[key] {
			reported[key] = true
			warnings = append(warnings, fmt.Sprintf("team names %q and %q look like duplicates", first, team))
		}
	}
	return warnings
}

func resolveByeSeeds(teams, byeSeeds []string, byes int) (map[string]int, error) {
	if byes == 0 {
		if len(byeSeeds) > 0 {
			return nil, fmt.Errorf("%w: %d teams fill the bracket, no byes to assign", ErrByeSeeds, len(teams))
		}
		return nil, nil
	}
	if len(byeSeeds) == 0 {
		byeSeeds = teams[:byes]
	}
	if len(byeSeeds) != byes {
		return nil, fmt.Errorf("%w: %d byes needed, %d teams selected", ErrByeSeeds, byes, len(byeSeeds))
	}

	available := make(map[string]int, len(teams))
	for _, team := range teams {
		available[team]++
	}
	selected := make(map[string]int, byes)
	for _, seed := range byeSeeds {
		selected[seed]++
		if selected[seed] > available[seed] {
			return nil, fmt.Errorf("%w: %q is not on the roster or was selected twice", ErrByeSeeds, seed)
		}
	}
	return selected, nil
}

// seedSlots lays out the first round: every selected team is immediately
// followed by its bye, the others are paired in roster order and trailing
// byes pad the list to size.
func seedSlots(teams []string, selected map[string]int, size int) []string {
	slots := make([]string, 0, size)
	var waiting string
	hasWaiting := false

	for _, team := range teams {
		if selected[team] > 0 {
			selected[team]--
			slots = append(slots, team, bracket.Bye)
			continue
		}
		if !hasWaiting {
			waiting, hasWaiting = team, true
			continue
		}
		slots = append(slots, waiting, team)
		hasWaiting = false
	}
	if hasWaiting {
		slots = append(slots, waiting)
	}
	for len(slots) < size {
		slots = append(slots, bracket.Bye)
	}
	return slots
}

// resolveBye locks a bye game and moves its real team into the parent.
func (b *Bracket) resolveBye(g *Game) error {
	g.Locked = true
	for i, team := range g.Teams {
		if team != bracket.Bye && team != "" {
			g.Result = bracket.Win(i + 1)
			return b.place(g, team)
		}
	}
	g.Result = bracket.Pending
	return nil
}

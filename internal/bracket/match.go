package bracket

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Bye fills an empty bracket slot; the opposing team advances without playing.
	Bye = "BYE"
	// TBD marks an elimination slot whose team is not known yet.
	TBD = "TBD"
)

type ResultStatus string

const (
	ResultPending ResultStatus = "PENDING"
	ResultOngoing ResultStatus = "ONGOING"
	ResultDraw    ResultStatus = "DRAW"
	ResultWin     ResultStatus = "WIN"
)

// Result is the outcome of a match. A win names the winning side by slot
// (1 for team A, 2 for team B), never by team name.
type Result struct {
	Status ResultStatus `json:"status"`
	Slot   int          `json:"winner_slot,omitempty"`
}

var Pending = Result{Status: ResultPending}

func Win(slot int) Result {
	return Result{Status: ResultWin, Slot: slot}
}

// Terminal reports whether the result is a recorded outcome (a draw or a win).
func (r Result) Terminal() bool {
	return r.Status == ResultDraw || r.Status == ResultWin
}

func (r Result) Validate() error {
	switch r.Status {
	case ResultPending, ResultOngoing, ResultDraw:
		if r.Slot != 0 {
			return fmt.Errorf("%w: %s result cannot name a winner", ErrValidation, r.Status)
		}
		return nil
	case ResultWin:
		if r.Slot != 1 && r.Slot != 2 {
			return fmt.Errorf("%w: winner slot must be 1 or 2, got %d", ErrValidation, r.Slot)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown result %q", ErrValidation, r.Status)
}

func (r Result) String() string {
	if r.Status == ResultWin {
		return fmt.Sprintf("WIN:%d", r.Slot)
	}
	return string(r.Status)
}

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	TeamA string `db:"team_a" json:"team_a"`
	TeamB string `db:"team_b" json:"team_b"`

	Status     ResultStatus `db:"result" json:"result"`
	WinnerSlot *int         `db:"winner_slot" json:"winner_slot,omitempty"`

	// Position in the tournament for reconstructing the view
	Round    int `db:"round" json:"round"`
	Position int `db:"position" json:"position"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (m *Match) Result() Result {
	r := Result{Status: m.Status}
	if m.Status == ResultWin && m.WinnerSlot != nil {
		r.Slot = *m.WinnerSlot
	}
	return r
}

func (m *Match) SetResult(r Result) {
	m.Status = r.Status
	if r.Status == ResultWin {
		slot := r.Slot
		m.WinnerSlot = &slot
	} else {
		m.WinnerSlot = nil
	}
}

func (m *Match) Team(slot int) string {
	if slot == 2 {
		return m.TeamB
	}
	return m.TeamA
}

// Winner returns the winning team's name, or "" when there is no winner.
func (m *Match) Winner() string {
	r := m.Result()
	if r.Status != ResultWin {
		return ""
	}
	return m.Team(r.Slot)
}

func (m *Match) IsWinner(slot int) bool {
	return m.Status == ResultWin && m.WinnerSlot != nil && *m.WinnerSlot == slot
}

func (m *Match) IsLoser(slot int) bool {
	return m.Status == ResultWin && m.WinnerSlot != nil && *m.WinnerSlot != slot
}

// Involves reports whether the match is between a and b, in either order.
func (m *Match) Involves(a, b string) bool {
	return (m.TeamA == a && m.TeamB == b) || (m.TeamA == b && m.TeamB == a)
}

// ParseResult resolves user input against the teams of m. An exact team
// name wins over the keywords, which are matched case-insensitively, so a
// team called "Draw" can still be named as the winner.
func ParseResult(input string, m *Match) (Result, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed != "" && (trimmed == m.TeamA || trimmed == m.TeamB) {
		switch {
		case m.TeamA == m.TeamB:
			return Result{}, fmt.Errorf("%w: winner %q is ambiguous, pass a winner slot", ErrValidation, trimmed)
		case trimmed == m.TeamA:
			return Win(1), nil
		default:
			return Win(2), nil
		}
	}

	switch ResultStatus(strings.ToUpper(trimmed)) {
	case ResultPending:
		return Pending, nil
	case ResultOngoing:
		return Result{Status: ResultOngoing}, nil
	case ResultDraw:
		return Result{Status: ResultDraw}, nil
	}

	if trimmed == "" {
		return Result{}, fmt.Errorf("%w: result is required", ErrValidation)
	}
	return Result{}, fmt.Errorf("%w: %q is neither a result nor a team of this match", ErrValidation, trimmed)
}

// IsReservedName reports whether name collides with a bracket placeholder.
func IsReservedName(name string) bool {
	upper := strings.ToUpper(strings.TrimSpace(name))
	return upper == Bye || upper == TBD
}

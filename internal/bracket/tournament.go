package bracket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TournamentFormat string

const (
	RoundRobin        TournamentFormat = "round_robin"
	SingleElimination TournamentFormat = "single_elimination"
)

func ParseFormat(s string) (TournamentFormat, error) {
	switch TournamentFormat(s) {
	case RoundRobin, SingleElimination:
		return TournamentFormat(s), nil
	case "":
		return RoundRobin, nil
	}
	return "", fmt.Errorf("%w: unknown tournament format %q", ErrValidation, s)
}

type Tournament struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	OwnerID   uuid.UUID        `db:"owner_id" json:"owner_id"`
	Name      string           `db:"name" json:"name"`
	Format    TournamentFormat `db:"format" json:"format"`
	StartDate time.Time        `db:"start_date" json:"start_date"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// Registration is a team signed up for a tournament. The roster of a
// tournament is the ordered list of its registrations' team names.
type Registration struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	TeamName     string    `db:"team_name" json:"team_name"`
	Seed         int       `db:"seed" json:"seed"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

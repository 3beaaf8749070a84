package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/jovenlab/sportal/internal/middleware"
	users "github.com/jovenlab/sportal/internal/user"
)

func GetUser(ctx context.Context) *users.User {
	return middleware.GetAuthenticatedUser(ctx)
}

// resultLabel describes a match result for display.
func resultLabel(m *bracket.Match) string {
	switch m.Status {
	case bracket.ResultWin:
		return fmt.Sprintf("%s won", m.Winner())
	case bracket.ResultDraw:
		return "Draw"
	case bracket.ResultOngoing:
		return "In progress"
	}
	return "Pending"
}

func formatLabel(f bracket.TournamentFormat) string {
	if f == bracket.SingleElimination {
		return "Single elimination"
	}
	return "Round robin"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package users

import (
	"time"

	"github.com/google/uuid"
)

type ContextKey string

// UserKey holds the signed-in *User in a request context.
const UserKey ContextKey = "user"

// User is an organizer account. OAuth users carry their provider identity;
// the shared guest account has none.
type User struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Email      string    `db:"email" json:"-"`
	Username   string    `db:"username" json:"username"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	Provider   *string   `db:"provider" json:"provider,omitempty"`
	ProviderID *string   `db:"provider_id" json:"-"`
	AvatarURL  *string   `db:"avatar_url" json:"avatar_url,omitempty"`
}

func (u *User) IsGuest() bool {
	return u.Provider == nil
}

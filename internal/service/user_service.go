package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/jovenlab/sportal/internal/middleware"
	"github.com/jovenlab/sportal/internal/store"
	users "github.com/jovenlab/sportal/internal/user"
	"github.com/jovenlab/sportal/internal/utils"
	"github.com/markbates/goth"
)

type UserService struct {
	db    *sqlx.DB
	store *store.UserStore
}

func NewUserService(db *sqlx.DB, store *store.UserStore) *UserService {
	return &UserService{db: db, store: store}
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	return s.store.GetUser(ctx, id)
}

// FindOrCreateUserByProvider returns the local account for an OAuth login,
// creating it on first sight and refreshing the name and avatar afterwards.
func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	name := displayName(gothUser)

	user, err := s.store.GetUserByProvider(ctx, gothUser.Provider, gothUser.UserID)
	if err == nil {
		if utils.OrZero(user.AvatarURL) != gothUser.AvatarURL || user.Username != name {
			user.Username = name
			user.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			if err := s.store.UpdateUserNameAndAvatar(ctx, user); err != nil {
				// A stale avatar is not worth failing the login over
				slog.WarnContext(ctx, "failed to refresh user profile", "user_id", user.ID, "error", err)
			}
		}
		return user, nil
	}

	if !errors.Is(err, bracket.ErrNotFound) {
		return nil, err
	}

	newUser := &users.User{
		ID:         uuid.New(),
		Email:      gothUser.Email,
		Username:   name,
		Provider:   utils.Ptr(gothUser.Provider),
		ProviderID: utils.Ptr(gothUser.UserID),
		AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
	}
	if err := s.store.CreateUser(ctx, newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

func displayName(gothUser goth.User) string {
	for _, candidate := range []string{gothUser.NickName, gothUser.Name, gothUser.Email} {
		if candidate != "" {
			return candidate
		}
	}
	return "player"
}

// EnsureGuestUser returns the shared guest account, creating it on first use.
func (s *UserService) EnsureGuestUser(ctx context.Context) (*users.User, error) {
	guestID := uuid.MustParse(middleware.SuperUserID)
	user, err := s.store.GetUser(ctx, guestID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, bracket.ErrNotFound) {
		return nil, err
	}

	guest := &users.User{
		ID:       guestID,
		Email:    "guest@sportal.local",
		Username: "Guest Organizer",
	}
	if err := s.store.CreateUser(ctx, guest); err != nil {
		return nil, err
	}
	return guest, nil
}

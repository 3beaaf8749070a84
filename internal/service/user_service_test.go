package service

import (
	"context"
	"testing"

	"github.com/jovenlab/sportal/internal/db/dbtest"
	"github.com/jovenlab/sportal/internal/middleware"
	"github.com/jovenlab/sportal/internal/store"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateUserByProvider(t *testing.T) {
	db := dbtest.New(t)
	userService := NewUserService(db, store.NewUserStore(db))
	ctx := context.Background()

	login := goth.User{Provider: "discord", UserID: "42", Email: "p@example.com", NickName: "pat"}

	created, err := userService.FindOrCreateUserByProvider(ctx, login)
	require.NoError(t, err)
	assert.Equal(t, "pat", created.Username)
	assert.Nil(t, created.AvatarURL)

	login.NickName = "patricia"
	login.AvatarURL = "https://cdn.example.com/p.png"
	again, err := userService.FindOrCreateUserByProvider(ctx, login)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	reloaded, err := userService.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "patricia", reloaded.Username)
	require.NotNil(t, reloaded.AvatarURL)
	assert.Equal(t, login.AvatarURL, *reloaded.AvatarURL)
}

func TestEnsureGuestUser(t *testing.T) {
	db := dbtest.New(t)
	userService := NewUserService(db, store.NewUserStore(db))

	guest, err := userService.EnsureGuestUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, middleware.SuperUserID, guest.ID.String())

	again, err := userService.EnsureGuestUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, guest.ID, again.ID)
}

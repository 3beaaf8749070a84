package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/jovenlab/sportal/internal/bracket"
	users "github.com/jovenlab/sportal/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[uuid.UUID]*users.User

func (f fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*users.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, bracket.ErrNotFound
}

func TestLoadUser(t *testing.T) {
	sessionManager := scs.New()
	known := &users.User{ID: uuid.New(), Username: "organizer"}
	loader := fakeUsers{known.ID: known}

	mux := http.NewServeMux()
	mux.HandleFunc("/as/", func(w http.ResponseWriter, r *http.Request) {
		sessionManager.Put(r.Context(), SessionUserKey, r.URL.Path[len("/as/"):])
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		name := ""
		if u := GetAuthenticatedUser(r.Context()); u != nil {
			name = u.Username
		}
		w.Write([]byte(id.String() + "|" + name))
	})
	handler := sessionManager.LoadAndSave(LoadUser(sessionManager, loader)(mux))

	request := func(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("anonymous", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, request("/me", nil).Code)
	})

	t.Run("known user", func(t *testing.T) {
		login := request("/as/"+known.ID.String(), nil)
		require.NotEmpty(t, login.Result().Cookies())

		rec := request("/me", login.Result().Cookies())
		assert.Equal(t, known.ID.String()+"|organizer", rec.Body.String())
	})

	t.Run("deleted user keeps id only", func(t *testing.T) {
		ghost := uuid.New()
		login := request("/as/"+ghost.String(), nil)

		rec := request("/me", login.Result().Cookies())
		assert.Equal(t, ghost.String()+"|", rec.Body.String())
	})

	t.Run("garbage id is dropped", func(t *testing.T) {
		login := request("/as/not-a-uuid", nil)

		rec := request("/me", login.Result().Cookies())
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRequireAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	rec := httptest.NewRecorder()
	RequireAuth(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	RequireAPIAuth(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tournaments/x/reset", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), uuid.New()))
	rec = httptest.NewRecorder()
	RequireAuth(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

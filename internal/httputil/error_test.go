package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jovenlab/sportal/internal/bracket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err      error
		expected int
	}{
		{fmt.Errorf("%w: bad roster", bracket.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("wrapped twice: %w", fmt.Errorf("%w: not yours", bracket.ErrForbidden)), http.StatusForbidden},
		{bracket.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: already generated", bracket.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: disk full", bracket.ErrPersistence), http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.expected, StatusFor(tc.err))
		})
	}
}

func TestJSONError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, "update result", errors.New("connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	JSONError(rec, "update result", fmt.Errorf("%w: match not found", bracket.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "match not found")
}

func TestReadJSON(t *testing.T) {
	var body struct {
		Force bool `json:"force"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"force": true}`))
	require.NoError(t, ReadJSON(httptest.NewRecorder(), req, &body))
	assert.True(t, body.Force)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, ReadJSON(httptest.NewRecorder(), req, &body))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"forse": true}`))
	assert.ErrorIs(t, ReadJSON(httptest.NewRecorder(), req, &body), bracket.ErrValidation)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/jovenlab/sportal/internal/config"
	"github.com/jovenlab/sportal/internal/db/dbtest"
	"github.com/jovenlab/sportal/internal/live"
	"github.com/jovenlab/sportal/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := live.NewHub(nil)
	go hub.Run(ctx)

	cfg := &config.Config{MutationRate: 100, MutationBurst: 100}
	a := newApp(cfg, dbtest.New(t), scs.New(), hub, metrics.New(), []string{"discord"}, slog.Default())
	server := httptest.NewServer(newRouter(a))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return server
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func call(t *testing.T, client *http.Client, method, url string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestAPI_AnonymousMutationsRejected(t *testing.T) {
	server := newTestServer(t)
	client := newClient(t)
	id := "00000000-0000-0000-0000-0000000000aa"

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/tournaments"},
		{http.MethodPost, "/api/tournaments/" + id + "/generate"},
		{http.MethodPost, "/api/tournaments/" + id + "/results"},
		{http.MethodPost, "/api/tournaments/" + id + "/reset"},
		{http.MethodDelete, "/api/tournaments/" + id + "/matches"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			status, _ := call(t, client, tt.method, server.URL+tt.path, nil)
			assert.Equal(t, http.StatusUnauthorized, status)
		})
	}

	status, body := call(t, client, http.MethodGet, server.URL+"/api/tournaments/"+id+"/matches", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "error")

	status, _ = call(t, client, http.MethodGet, server.URL+"/api/tournaments/not-a-uuid/matches", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_RoundRobinFlow(t *testing.T) {
	server := newTestServer(t)
	client := newClient(t)

	resp, err := client.Post(server.URL+"/auth/guest", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "guest lands on the index page")

	status, body := call(t, client, http.MethodPost, server.URL+"/api/tournaments", map[string]any{
		"name":   "Office League",
		"format": "round_robin",
		"teams":  []string{"Ants", "Bees", "Crows"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	base := server.URL + "/api/tournaments/" + created.ID

	status, body = call(t, client, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusCreated, status, string(body))

	status, _ = call(t, client, http.MethodPost, base+"/generate", map[string]any{"force": false})
	assert.Equal(t, http.StatusConflict, status)

	status, body = call(t, client, http.MethodPost, base+"/results", map[string]any{
		"team_a": "Bees", "team_b": "Ants", "result": "Bees",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, _ = call(t, client, http.MethodPost, base+"/results", map[string]any{
		"team_a": "Bees", "team_b": "Ants", "result": "Wasps",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, client, http.MethodPost, base+"/results", map[string]any{"bogus": true})
	assert.Equal(t, http.StatusBadRequest, status, "unknown fields are rejected")

	status, body = call(t, client, http.MethodGet, base+"/standings", nil)
	require.Equal(t, http.StatusOK, status)
	var standings []struct {
		Team   string `json:"team"`
		Points int    `json:"points"`
	}
	require.NoError(t, json.Unmarshal(body, &standings))
	require.Len(t, standings, 3)
	assert.Equal(t, "Bees", standings[0].Team)
	assert.Equal(t, 3, standings[0].Points)

	status, _ = call(t, client, http.MethodGet, base+"/bracket", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, client, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"affected":3}`, string(body))

	page, err := client.Get(server.URL + "/tournaments/" + created.ID)
	require.NoError(t, err)
	html, _ := io.ReadAll(page.Body)
	page.Body.Close()
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(html), "Office League")

	metricsResp, err := client.Get(server.URL + "/metrics")
	require.NoError(t, err)
	exposition, _ := io.ReadAll(metricsResp.Body)
	metricsResp.Body.Close()
	assert.True(t, strings.Contains(string(exposition), "sportal_"), "progression metrics are exposed")
}

func TestAPI_EliminationPreviewAndBracket(t *testing.T) {
	server := newTestServer(t)
	client := newClient(t)

	resp, err := client.Post(server.URL+"/auth/guest", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	status, body := call(t, client, http.MethodPost, server.URL+"/api/tournaments", map[string]any{
		"name":   "Cup",
		"format": "single_elimination",
		"teams":  []string{"A", "B", "C", "D", "E"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	base := server.URL + "/api/tournaments/" + created.ID

	status, body = call(t, client, http.MethodGet, base+"/preview?bye=B&bye=C&bye=D", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var preview struct {
		Bracket struct {
			Size int `json:"size"`
		} `json:"bracket"`
	}
	require.NoError(t, json.Unmarshal(body, &preview))
	assert.Equal(t, 8, preview.Bracket.Size)

	status, _ = call(t, client, http.MethodGet, base+"/preview?bye=Z", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, client, http.MethodPost, base+"/generate", map[string]any{"bye_seeds": []string{"B", "C", "D"}})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = call(t, client, http.MethodGet, base+"/bracket", nil)
	require.Equal(t, http.StatusOK, status)
	var b struct {
		Rounds int `json:"rounds"`
	}
	require.NoError(t, json.Unmarshal(body, &b))
	assert.Equal(t, 3, b.Rounds)

	status, body = call(t, client, http.MethodDelete, base+"/matches", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, `{"affected":0}`, strings.TrimSpace(string(body)))
}

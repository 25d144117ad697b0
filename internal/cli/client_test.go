package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, serverURL string) *Config {
	t.Helper()
	return &Config{
		ServerURL: serverURL + "/",
		TokenFile: filepath.Join(t.TempDir(), "fairmatch", "token"),
		Output:    "text",
	}
}

func TestClientSendsConfiguredToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/queue", r.URL.Path)
		auth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(QueueSize{Size: 3})
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Token = "tok-1"

	size, err := NewClient(cfg).QueueSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, size.Size)
	assert.Equal(t, "Bearer tok-1", auth)
}

func TestClientRequiresTokenForPlayerCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(t, srv.URL)).Me(context.Background())
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegisterSavesTokenForLaterCalls(t *testing.T) {
	var meAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/players":
			assert.Empty(t, r.Header.Get("Authorization"))
			var req map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "alice", req["player_id"])
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(AuthResult{PlayerID: "alice", SessionToken: "tok-alice"})
		case "/api/v1/players/me":
			meAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(Status{PlayerID: "alice"})
		}
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	client := NewClient(cfg)

	result, err := client.Register(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", result.PlayerID)

	saved, err := os.ReadFile(cfg.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, "tok-alice", string(saved))

	_, err = client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-alice", meAuth)
}

func TestLoadTokenFromFile(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	require.NoError(t, cfg.LoadToken())
	assert.Empty(t, cfg.Token)

	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.TokenFile), 0700))
	require.NoError(t, os.WriteFile(cfg.TokenFile, []byte("tok-2\n"), 0600))
	require.NoError(t, cfg.LoadToken())
	assert.Equal(t, "tok-2", cfg.Token)

	cfg.Token = "from-flag"
	require.NoError(t, cfg.LoadToken())
	assert.Equal(t, "from-flag", cfg.Token)
}

func TestClientDecodesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":{"code":"ALREADY_QUEUED","message":"player is already queued"}}`)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Token = "tok-1"

	_, err := NewClient(cfg).JoinQueue(context.Background(), []byte{0x01})
	require.Error(t, err)
	assert.True(t, IsAPIError(err, "ALREADY_QUEUED"))
	assert.EqualError(t, err, "player is already queued (ALREADY_QUEUED)")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestClientEscapesIDs(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(Proposal{ID: "p/1"})
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Token = "tok-1"

	_, err := NewClient(cfg).RespondToProposal(context.Background(), "p/1", false)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/proposals/p%2F1/decline", path)
}

func TestOpenStreamSendsResumePoint(t *testing.T) {
	var since, lastEventID, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		since = r.URL.Query().Get("since")
		lastEventID = r.Header.Get("Last-Event-ID")
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: connected\ndata: {}\n\n")
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Token = "tok-1"
	client := NewClient(cfg)

	at := time.Date(2024, 1, 1, 12, 0, 0, 500, time.UTC)
	body, err := client.OpenStream(context.Background(), "/api/v1/events", StreamOptions{Since: at})
	require.NoError(t, err)
	_ = body.Close()
	assert.Equal(t, "2024-01-01T12:00:00.0000005Z", since)
	assert.Empty(t, lastEventID)
	assert.Equal(t, "text/event-stream", accept)

	body, err = client.OpenStream(context.Background(), "/api/v1/events", StreamOptions{LastEventID: "abc"})
	require.NoError(t, err)
	_ = body.Close()
	assert.Empty(t, since)
	assert.Equal(t, "abc", lastEventID)
}

func TestOpenStreamRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"INVALID_REQUEST","message":"since must be an RFC3339 timestamp"}}`)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Token = "tok-1"

	_, err := NewClient(cfg).OpenStream(context.Background(), "/api/v1/events", StreamOptions{})
	assert.True(t, IsAPIError(err, "INVALID_REQUEST"))
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/fairmatch/internal/api/apierr"
	"github.com/mcoot/fairmatch/internal/api/request"
	"github.com/mcoot/fairmatch/internal/api/response"
	"github.com/mcoot/fairmatch/internal/api/sse"
	"github.com/mcoot/fairmatch/internal/dependencies/mocks"
	"github.com/mcoot/fairmatch/internal/factory"
	"github.com/mcoot/fairmatch/internal/testutil"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(func() { app.Close(testutil.NopLogger()) })

	return &testServer{
		handler: app.Router(testutil.NopLogger()),
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func registerPlayer(t *testing.T, ts *testServer, id string) string {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/players", request.RegisterRequest{PlayerID: id}, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	return decode[response.AuthResponse](t, rr).SessionToken
}

func joinQueue(t *testing.T, ts *testServer, token string, value int) *httptest.ResponseRecorder {
	t.Helper()
	return ts.request(http.MethodPost, "/api/v1/queue", request.EnqueueRequest{Rating: mocks.PlainRating(value)}, token)
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apierr.ErrorResponse](t, rr).Error.Code
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "fairmatch_queue_size")
}

func TestRegisterPlayer(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players", request.RegisterRequest{PlayerID: "alice"}, "")
	assert.Equal(t, http.StatusCreated, rr.Code)

	resp := decode[response.AuthResponse](t, rr)
	assert.Equal(t, "alice", resp.PlayerID)
	assert.NotEmpty(t, resp.SessionToken)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	// Same id again
	rr = ts.request(http.MethodPost, "/api/v1/players", request.RegisterRequest{PlayerID: "alice"}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeAlreadyRegistered, errorCode(t, rr))
}

func TestRegisterGeneratesID(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players", nil, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotEmpty(t, decode[response.AuthResponse](t, rr).PlayerID)
}

func TestGetMe(t *testing.T) {
	ts := newTestServer(t)
	token := registerPlayer(t, ts, "bob")

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)

	me := decode[response.Status](t, rr)
	assert.Equal(t, "bob", me.PlayerID)
	assert.Equal(t, "registered", me.State)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = joinQueue(t, ts, "", 1000)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/queue", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestQueueJoinAndLeave(t *testing.T) {
	ts := newTestServer(t)
	token := registerPlayer(t, ts, "alice")

	rr := joinQueue(t, ts, token, 1500)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "alice", decode[response.QueueEntry](t, rr).PlayerID)

	rr = joinQueue(t, ts, token, 1500)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeAlreadyQueued, errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/queue", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[response.QueueSize](t, rr).Size)

	rr = ts.request(http.MethodDelete, "/api/v1/queue", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "registered", decode[response.LeaveResponse](t, rr).State)

	rr = ts.request(http.MethodGet, "/api/v1/queue", nil, token)
	assert.Equal(t, 0, decode[response.QueueSize](t, rr).Size)
}

func TestQueueJoinRequiresRating(t *testing.T) {
	ts := newTestServer(t)
	token := registerPlayer(t, ts, "alice")

	rr := ts.request(http.MethodPost, "/api/v1/queue", map[string]string{}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}

func TestFullMatchFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := registerPlayer(t, ts, "alice")
	bob := registerPlayer(t, ts, "bob")
	carol := registerPlayer(t, ts, "carol")

	require.Equal(t, http.StatusCreated, joinQueue(t, ts, alice, 1500).Code)
	ts.app.MockClock.Advance(time.Second)
	require.Equal(t, http.StatusCreated, joinQueue(t, ts, bob, 1520).Code)

	result, err := ts.app.Matcher.RunCycle(t.Context())
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)
	proposalID := string(result.Proposals[0].ID)

	// Status shows the open proposal
	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, alice)
	me := decode[response.Status](t, rr)
	assert.Equal(t, "proposed", me.State)
	require.NotNil(t, me.Proposal)
	assert.Equal(t, proposalID, me.Proposal.ID)

	// Outsiders cannot see or act on it
	rr = ts.request(http.MethodGet, "/api/v1/proposals/"+proposalID, nil, carol)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeNotAParticipant, errorCode(t, rr))
	rr = ts.request(http.MethodPost, "/api/v1/proposals/"+proposalID+"/accept", nil, carol)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/proposals/"+proposalID+"/accept", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	p := decode[response.Proposal](t, rr)
	assert.Equal(t, "open", p.Status)
	assert.Equal(t, [2]bool{true, false}, p.Accepted)

	rr = ts.request(http.MethodPost, "/api/v1/proposals/"+proposalID+"/accept", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	p = decode[response.Proposal](t, rr)
	assert.Equal(t, "committed", p.Status)
	require.NotEmpty(t, p.MatchID)

	rr = ts.request(http.MethodGet, "/api/v1/matches/"+p.MatchID, nil, carol)
	require.Equal(t, http.StatusOK, rr.Code)
	m := decode[response.Match](t, rr)
	assert.Equal(t, [2]string{"alice", "bob"}, m.Players)
	assert.Equal(t, proposalID, m.ProposalID)

	// In a match: cannot queue or leave
	rr = joinQueue(t, ts, alice, 1500)
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = ts.request(http.MethodDelete, "/api/v1/queue", nil, alice)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeInMatch, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/matches/"+p.MatchID+"/complete", nil, carol)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = ts.request(http.MethodPost, "/api/v1/matches/"+p.MatchID+"/complete", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, alice)
	assert.Equal(t, "registered", decode[response.Status](t, rr).State)
}

func TestDeclineRequeuesOther(t *testing.T) {
	ts := newTestServer(t)
	alice := registerPlayer(t, ts, "alice")
	bob := registerPlayer(t, ts, "bob")

	require.Equal(t, http.StatusCreated, joinQueue(t, ts, alice, 1000).Code)
	require.Equal(t, http.StatusCreated, joinQueue(t, ts, bob, 1000).Code)

	result, err := ts.app.Matcher.RunCycle(t.Context())
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)
	proposalID := string(result.Proposals[0].ID)

	rr := ts.request(http.MethodPost, "/api/v1/proposals/"+proposalID+"/decline", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	p := decode[response.Proposal](t, rr)
	assert.Equal(t, "cancelled", p.Status)
	assert.Equal(t, "bob", p.DeclinedBy)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, alice)
	assert.Equal(t, "queued", decode[response.Status](t, rr).State)

	// Resolved proposals reject further actions
	rr = ts.request(http.MethodPost, "/api/v1/proposals/"+proposalID+"/accept", nil, alice)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeUnknownProposal, errorCode(t, rr))
}

func TestAcceptAfterDeadline(t *testing.T) {
	ts := newTestServer(t)
	alice := registerPlayer(t, ts, "alice")
	bob := registerPlayer(t, ts, "bob")

	require.Equal(t, http.StatusCreated, joinQueue(t, ts, alice, 1000).Code)
	require.Equal(t, http.StatusCreated, joinQueue(t, ts, bob, 1000).Code)

	result, err := ts.app.Matcher.RunCycle(t.Context())
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)
	proposalID := string(result.Proposals[0].ID)

	ts.app.MockClock.Advance(ts.app.Coordinator.Config().AcceptWindow)

	rr := ts.request(http.MethodPost, "/api/v1/proposals/"+proposalID+"/accept", nil, alice)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeUnknownProposal, errorCode(t, rr))

	// Neither accepted, so both are back in the queue
	rr = ts.request(http.MethodGet, "/api/v1/queue", nil, alice)
	assert.Equal(t, 2, decode[response.QueueSize](t, rr).Size)
}

func TestUnknownMatchAndProposal(t *testing.T) {
	ts := newTestServer(t)
	token := registerPlayer(t, ts, "alice")

	rr := ts.request(http.MethodGet, "/api/v1/matches/nope", nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeMatchNotFound, errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/proposals/nope", nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeUnknownProposal, errorCode(t, rr))
}

// commitMatch pairs two fresh players and has both accept
func commitMatch(t *testing.T, ts *testServer, a, b string) string {
	t.Helper()
	tokenA := registerPlayer(t, ts, a)
	tokenB := registerPlayer(t, ts, b)
	require.Equal(t, http.StatusCreated, joinQueue(t, ts, tokenA, 1500).Code)
	require.Equal(t, http.StatusCreated, joinQueue(t, ts, tokenB, 1500).Code)

	result, err := ts.app.Matcher.RunCycle(t.Context())
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)
	path := "/api/v1/proposals/" + string(result.Proposals[0].ID) + "/accept"

	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, path, nil, tokenA).Code)
	rr := ts.request(http.MethodPost, path, nil, tokenB)
	require.Equal(t, http.StatusOK, rr.Code)
	return decode[response.Proposal](t, rr).MatchID
}

// stream opens an SSE request and returns what was written before the
// connection was cut
func (ts *testServer) stream(t *testing.T, path, token string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func TestEventsReplaySince(t *testing.T) {
	ts := newTestServer(t)
	start := ts.app.MockClock.Now()
	first := commitMatch(t, ts, "alice", "bob")
	ts.app.MockClock.Advance(time.Minute)
	second := commitMatch(t, ts, "carol", "dave")
	watcher := registerPlayer(t, ts, "watcher")

	rr := ts.stream(t, "/api/v1/events?since="+start.Format(time.RFC3339Nano), watcher, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: connected\n"))
	require.Contains(t, body, first)
	require.Contains(t, body, second)
	assert.Less(t, strings.Index(body, first), strings.Index(body, second))
	assert.Contains(t, body, "id: "+sse.MatchEventID(start)+"\n")
}

func TestEventsResumeFromLastEventID(t *testing.T) {
	ts := newTestServer(t)
	first := commitMatch(t, ts, "alice", "bob")
	ts.app.MockClock.Advance(time.Minute)
	resumeAt := ts.app.MockClock.Now()
	second := commitMatch(t, ts, "carol", "dave")
	watcher := registerPlayer(t, ts, "watcher")

	header := http.Header{"Last-Event-ID": []string{sse.MatchEventID(resumeAt)}}
	rr := ts.stream(t, "/api/v1/events", watcher, header)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), first)
	assert.Contains(t, rr.Body.String(), second)
}

func TestEventsWithoutResumeHasNoBacklog(t *testing.T) {
	ts := newTestServer(t)
	matchID := commitMatch(t, ts, "alice", "bob")
	watcher := registerPlayer(t, ts, "watcher")

	rr := ts.stream(t, "/api/v1/events", watcher, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), matchID)
}

func TestEventsRejectsBadSince(t *testing.T) {
	ts := newTestServer(t)
	watcher := registerPlayer(t, ts, "watcher")

	rr := ts.request(http.MethodGet, "/api/v1/events?since=yesterday", nil, watcher)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}
